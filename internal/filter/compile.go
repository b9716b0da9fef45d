package filter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// checkMode controls how the compiler reacts to a problem.
type checkMode int

const (
	// failFast stops at the first problem.
	failFast checkMode = iota
	// collectAll records every problem and keeps going.
	collectAll
)

// Compile translates expr into a predicate tree for the document store.
//
// Field paths of nested objects are flattened to dotted keys, operators on
// one field are combined in a single operator map (all must hold), and
// And/Or become $and/$or lists. An empty expression compiles to an empty
// predicate. Nil values are treated as absent.
//
// The expression is checked against the grammar while compiling; the first
// non-conforming key is returned as a *Error and no predicate is produced.
// Compile does not touch the grammar and is safe for concurrent use.
func Compile(g *Grammar, expr Expression) (bson.M, error) {
	acc := bson.M{}
	if err := CompileInto(g, expr, "", acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// CompileInto compiles expr into acc with every field path prefixed by
// scope. Predicates already in acc are kept; operators for a path that is
// already present are merged into its operator map.
//
// On error acc may hold a partial result.
func CompileInto(g *Grammar, expr Expression, scope string, acc bson.M) error {
	c := &compiler{mode: failFast}
	c.compile(g, expr, scope, "", acc)
	if len(c.problems) > 0 {
		return c.problems[0]
	}
	return nil
}

// Check reports every way expr fails to conform to g, as Problems, or nil.
func Check(g *Grammar, expr Expression) error {
	c := &compiler{mode: collectAll}
	c.compile(g, expr, "", "", bson.M{})
	if len(c.problems) > 0 {
		return c.problems
	}
	return nil
}

// compiler walks an expression alongside its grammar.
type compiler struct {
	mode     checkMode
	problems Problems
}

func (c *compiler) fail(at, format string, args ...any) {
	c.problems = append(c.problems, &Error{Path: at, Reason: fmt.Sprintf(format, args...)})
}

func (c *compiler) stop() bool {
	return c.mode == failFast && len(c.problems) > 0
}

// compile adds the predicates of expr to acc. scope is the store path of
// expr, at is its position in the original expression for error reports.
func (c *compiler) compile(g *Grammar, expr map[string]any, scope, at string, acc bson.M) {
	for _, key := range sortedKeys(expr) {
		if c.stop() {
			return
		}
		value := expr[key]
		if value == nil {
			continue
		}
		here := joinPath(at, key)

		isLogical := key == LogicalAnd || key == LogicalOr
		if isLogical && g.Logical {
			if group := c.logical(g, value, scope, here); len(group) > 0 {
				acc["$"+strings.ToLower(key)] = group
			}
			continue
		}

		// Below the top level And and Or are ordinary field names.
		node, ok := g.Node(key)
		if !ok {
			if isLogical {
				c.fail(here, "%s is only allowed at the top level of an entity filter", key)
			} else {
				c.fail(here, "unknown field %q in %s", key, g.Name)
			}
			continue
		}
		sub, ok := asMap(value)
		if !ok {
			c.fail(here, "expected an object, got %s", describe(value))
			continue
		}

		path := joinPath(scope, key)
		switch node.Kind {
		case NodeNested:
			c.compile(node.Nested, sub, path, here, acc)
		case NodeOperators:
			if ops := c.operators(node, sub, here); len(ops) > 0 {
				merge(acc, path, ops)
			}
		}
	}
}

// logical compiles every element of an And/Or list against the same scope
// and keeps the non-empty ones.
func (c *compiler) logical(g *Grammar, value any, scope, at string) bson.A {
	items, ok := asList(value)
	if !ok {
		c.fail(at, "expected a list of filters, got %s", describe(value))
		return nil
	}

	var group bson.A
	for i, item := range items {
		if item == nil {
			continue
		}
		here := fmt.Sprintf("%s[%d]", at, i)
		sub, ok := asMap(item)
		if !ok {
			c.fail(here, "expected a filter object, got %s", describe(item))
			continue
		}
		pred := bson.M{}
		c.compile(g, sub, scope, here, pred)
		if len(pred) > 0 {
			group = append(group, pred)
		}
	}
	return group
}

// operators translates one field's operator object.
func (c *compiler) operators(node Node, expr map[string]any, at string) bson.M {
	out := bson.M{}
	for _, key := range sortedKeys(expr) {
		if c.stop() {
			return nil
		}
		value := expr[key]
		if value == nil {
			continue
		}
		here := joinPath(at, key)

		op := Operator(key)
		if !node.Offers(op) {
			c.fail(here, "operator %s is not available for %s fields", key, node.Scalar)
			continue
		}

		switch {
		case op == OpExists:
			b, ok := value.(bool)
			if !ok {
				c.fail(here, "expected a boolean, got %s", describe(value))
				continue
			}
			out[storeOperators[op]] = b

		case op == OpRegEx:
			pattern, ok := value.(string)
			if !ok {
				c.fail(here, "expected a pattern string, got %s", describe(value))
				continue
			}
			if _, err := regexp.Compile(pattern); err != nil {
				c.fail(here, "invalid pattern: %v", err)
				continue
			}
			out["$regex"] = pattern
			out["$options"] = "i"

		case op.IsList():
			items, ok := asList(value)
			if !ok {
				c.fail(here, "expected a list, got %s", describe(value))
				continue
			}
			values := make(bson.A, 0, len(items))
			for i, item := range items {
				v, err := coerce(node, item)
				if err != nil {
					c.fail(fmt.Sprintf("%s[%d]", here, i), "%v", err)
					continue
				}
				values = append(values, v)
			}
			out[storeOperators[op]] = values

		default:
			v, err := coerce(node, value)
			if err != nil {
				c.fail(here, "%v", err)
				continue
			}
			out[storeOperators[op]] = v
		}
	}
	return out
}

// merge adds ops under path, combining with operators already there.
func merge(acc bson.M, path string, ops bson.M) {
	existing, ok := acc[path].(bson.M)
	if !ok {
		acc[path] = ops
		return
	}
	for k, v := range ops {
		existing[k] = v
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
