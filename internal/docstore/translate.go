package docstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrUnsupported is returned for predicate shapes the store cannot run.
var ErrUnsupported = errors.New("unsupported predicate")

// Translate converts a predicate tree into a parameterized SQL condition
// over the documents.body column. Values are always parameters, never
// interpolated. An empty predicate translates to "1".
func Translate(pred bson.M) (string, []any, error) {
	t := &translator{}
	cond, err := t.predicate(pred)
	if err != nil {
		return "", nil, err
	}
	return cond, t.params, nil
}

type translator struct {
	params []any
}

func (t *translator) bind(values ...any) {
	t.params = append(t.params, values...)
}

// predicate translates one predicate object: every key must hold.
func (t *translator) predicate(pred map[string]any) (string, error) {
	if len(pred) == 0 {
		return "1", nil
	}

	keys := make([]string, 0, len(pred))
	for k := range pred {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make([]string, 0, len(keys))
	for _, key := range keys {
		var cond string
		var err error
		switch key {
		case "$and":
			cond, err = t.logical(pred[key], " AND ", "1")
		case "$or":
			cond, err = t.logical(pred[key], " OR ", "0")
		default:
			if strings.HasPrefix(key, "$") {
				return "", fmt.Errorf("%w: top-level operator %s", ErrUnsupported, key)
			}
			cond, err = t.field(key, pred[key])
		}
		if err != nil {
			return "", err
		}
		conds = append(conds, cond)
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

func (t *translator) logical(value any, sep, empty string) (string, error) {
	items, ok := value.(bson.A)
	if !ok {
		if plain, isSlice := value.([]any); isSlice {
			items = plain
		} else {
			return "", fmt.Errorf("%w: combinator needs a list, got %T", ErrUnsupported, value)
		}
	}
	if len(items) == 0 {
		return empty, nil
	}

	conds := make([]string, len(items))
	for i, item := range items {
		sub, ok := asPredicate(item)
		if !ok {
			return "", fmt.Errorf("%w: combinator element %T", ErrUnsupported, item)
		}
		cond, err := t.predicate(sub)
		if err != nil {
			return "", err
		}
		conds[i] = cond
	}
	return "(" + strings.Join(conds, sep) + ")", nil
}

// field translates the conditions on one dotted path.
func (t *translator) field(path string, value any) (string, error) {
	ops, ok := asPredicate(value)
	if !ok {
		return t.compare(path, "=", value), nil
	}

	keys := make([]string, 0, len(ops))
	for k := range ops {
		if k == "$options" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "1", nil
	}

	conds := make([]string, 0, len(keys))
	for _, op := range keys {
		v := ops[op]
		var cond string
		switch op {
		case "$eq":
			cond = t.compare(path, "=", v)
		case "$ne":
			cond = "NOT " + t.compare(path, "=", v)
		case "$gt":
			cond = t.compare(path, ">", v)
		case "$gte":
			cond = t.compare(path, ">=", v)
		case "$lt":
			cond = t.compare(path, "<", v)
		case "$lte":
			cond = t.compare(path, "<=", v)
		case "$in", "$nin":
			values, ok := asValues(v)
			if !ok {
				return "", fmt.Errorf("%w: %s on %s needs a list", ErrUnsupported, op, path)
			}
			cond = t.membership(path, values, op == "$nin")
		case "$exists":
			b, ok := v.(bool)
			if !ok {
				return "", fmt.Errorf("%w: $exists on %s needs a boolean", ErrUnsupported, path)
			}
			t.bind(jsonPath(path))
			if b {
				cond = "json_type(body, ?) IS NOT NULL"
			} else {
				cond = "json_type(body, ?) IS NULL"
			}
		case "$regex":
			pattern, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("%w: $regex on %s needs a string", ErrUnsupported, path)
			}
			if options, _ := ops["$options"].(string); strings.Contains(options, "i") {
				pattern = "(?i)" + pattern
			}
			t.bind(jsonPath(path), pattern)
			cond = "EXISTS (SELECT 1 FROM json_each(body, ?) WHERE CASE WHEN type = 'text' THEN value REGEXP ? ELSE 0 END)"
		default:
			return "", fmt.Errorf("%w: operator %s on %s", ErrUnsupported, op, path)
		}
		conds = append(conds, cond)
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return "(" + strings.Join(conds, " AND ") + ")", nil
}

// compare matches when the value at path, or any element of it when it is
// an array, compares to v.
func (t *translator) compare(path, op string, v any) string {
	t.bind(jsonPath(path), v)
	return "EXISTS (SELECT 1 FROM json_each(body, ?) WHERE value " + op + " ?)"
}

func (t *translator) membership(path string, values []any, negate bool) string {
	if len(values) == 0 {
		if negate {
			return "1"
		}
		return "0"
	}

	t.bind(jsonPath(path))
	t.bind(values...)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	cond := "EXISTS (SELECT 1 FROM json_each(body, ?) WHERE value IN (" + placeholders + "))"
	if negate {
		return "NOT " + cond
	}
	return cond
}

func asPredicate(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case bson.M:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

func asValues(v any) ([]any, bool) {
	switch l := v.(type) {
	case bson.A:
		return l, true
	case []any:
		return l, true
	default:
		return nil, false
	}
}

// jsonPath converts a dotted field path to an SQLite JSON path with every
// segment quoted: address.city -> $."address"."city".
func jsonPath(path string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range strings.Split(path, ".") {
		b.WriteString(`."`)
		b.WriteString(strings.ReplaceAll(seg, `"`, `\"`))
		b.WriteString(`"`)
	}
	return b.String()
}
