package filter

import (
	"slices"
	"sync"

	"github.com/roach88/shapeql/internal/schema"
)

// NodeKind tags what a grammar node filters.
type NodeKind int

const (
	// NodeOperators is a scalar or enum field filtered with an operator set.
	NodeOperators NodeKind = iota
	// NodeNested is a nested object field filtered with its own grammar.
	NodeNested
)

func (k NodeKind) String() string {
	switch k {
	case NodeOperators:
		return "operators"
	case NodeNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Node is the filter grammar of one field.
//
// Exactly one of Operators or Nested is meaningful, selected by Kind.
type Node struct {
	Field string
	Kind  NodeKind

	// NodeOperators
	Scalar    schema.Kind
	Operators []Operator
	EnumName  string
	Values    []string // allowed enum values

	// List is set when the field is a list; operators then match if any
	// stored element satisfies them.
	List bool

	// NodeNested
	Nested *Grammar
}

// Offers reports whether op is allowed on the node.
func (n Node) Offers(op Operator) bool {
	return slices.Contains(n.Operators, op)
}

// Grammar is the filter descriptor derived from a Record.
//
// Every field of a grammar is optional in a filter expression. Logical is
// set only on top-level entity grammars, which then also accept And and Or
// lists of expressions of the same grammar.
type Grammar struct {
	Name    string
	Logical bool
	Nodes   []Node

	index map[string]int

	recordOnce sync.Once
	record     *schema.Record
}

// Options control grammar generation.
type Options struct {
	// Prefix is prepended to the generated grammar name. Nested grammars
	// receive their enclosing path so that one record type reused at
	// different depths yields distinct grammar names.
	Prefix string
	// Logical attaches the And/Or combinators.
	Logical bool
}

// ForEntity generates the top-level grammar of an entity.
func ForEntity(rec *schema.Record) *Grammar {
	return Generate(rec, Options{Logical: true})
}

// Generate derives the filter grammar of rec.
//
// List fields are unwrapped to their element, so tags: [String] filters
// like a String field. Nested records recurse with Logical off and the
// enclosing name appended to the prefix. Unknown kinds have no operators
// and are left out.
func Generate(rec *schema.Record, opts Options) *Grammar {
	g := &Grammar{
		Name:    opts.Prefix + rec.Name() + "Filter",
		Logical: opts.Logical,
		index:   make(map[string]int),
	}

	nestedPrefix := opts.Prefix + rec.Name()
	for _, entry := range rec.Fields() {
		elem, isList := schema.Element(entry.Member)

		node := Node{Field: entry.Name, List: isList}
		if nested, ok := schema.AsRecord(elem); ok {
			node.Kind = NodeNested
			node.Nested = Generate(nested, Options{Prefix: nestedPrefix})
		} else {
			node.Operators = OperatorsFor(elem.Kind())
			if node.Operators == nil {
				continue
			}
			node.Kind = NodeOperators
			node.Scalar = elem.Kind()
			if f, ok := elem.(schema.Field); ok && elem.Kind() == schema.KindEnum {
				node.EnumName = f.EnumName()
				node.Values = f.EnumValues()
			}
		}

		g.index[node.Field] = len(g.Nodes)
		g.Nodes = append(g.Nodes, node)
	}

	return g
}

// Node returns the node for field.
func (g *Grammar) Node(field string) (Node, bool) {
	i, ok := g.index[field]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Record returns the grammar's own input shape as a record without
// validation. And/Or are lists of references back to the grammar.
func (g *Grammar) Record() *schema.Record {
	g.recordOnce.Do(func() {
		g.record = g.buildRecord()
	})
	return g.record
}

func (g *Grammar) buildRecord() *schema.Record {
	layout := make(schema.Layout, 0, len(g.Nodes)+2)
	for _, node := range g.Nodes {
		switch node.Kind {
		case NodeNested:
			layout = append(layout, schema.Named(node.Field, schema.Optional(node.Nested.Record())))
		case NodeOperators:
			layout = append(layout, schema.Named(node.Field, schema.Optional(operatorRecord(node))))
		}
	}
	if g.Logical {
		self := schema.ListOf(schema.Reference(g.Name)).Nullable()
		layout = append(layout,
			schema.Named(LogicalAnd, self),
			schema.Named(LogicalOr, self),
		)
	}
	return schema.Compose(g.Name, layout, schema.Options{NoValidation: true})
}

// operatorRecord is the input shape of one operator set, e.g.
// StringOperators{Eq: String, In: [String!], Exists: Boolean, ...}.
func operatorRecord(node Node) *schema.Record {
	value := scalarMember(node)

	layout := make(schema.Layout, 0, len(node.Operators))
	for _, op := range node.Operators {
		var m schema.Field
		switch {
		case op == OpExists:
			m = schema.Boolean().Nullable()
		case op.IsList():
			m = schema.ListOf(value).Nullable()
		default:
			m = value.Nullable()
		}
		layout = append(layout, schema.Named(string(op), m))
	}
	return schema.Compose(operatorTypeName(node), layout, schema.Options{NoValidation: true})
}

func operatorTypeName(node Node) string {
	if node.Scalar == schema.KindEnum && node.EnumName != "" {
		return node.EnumName + "Operators"
	}
	return scalarMember(node).ReadType().Name + "Operators"
}

func scalarMember(node Node) schema.Field {
	switch node.Scalar {
	case schema.KindInt:
		return schema.Int()
	case schema.KindFloat:
		return schema.Float()
	case schema.KindBoolean:
		return schema.Boolean()
	case schema.KindEnum:
		return schema.Enum(node.EnumName, node.Values...)
	default:
		return schema.String()
	}
}
