package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeql/internal/schema"
)

// Expression is a filter value supplied at request time: field names map to
// operator objects or nested expressions, And/Or map to lists of
// expressions.
type Expression map[string]any

// ParseJSON decodes a JSON filter expression. Numbers are kept exact until
// they are coerced to the field's kind. Empty input and null decode to an
// empty expression.
func ParseJSON(data []byte) (Expression, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Expression{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var expr Expression
	if err := dec.Decode(&expr); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if expr == nil {
		expr = Expression{}
	}
	return expr, nil
}

// ParseYAML decodes a YAML filter expression. JSON is valid YAML, so this
// also accepts JSON input.
func ParseYAML(data []byte) (Expression, error) {
	var expr Expression
	if err := yaml.Unmarshal(data, &expr); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if expr == nil {
		expr = Expression{}
	}
	return expr, nil
}

// asMap returns v as an expression object.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Expression:
		return m, true
	case bson.M:
		return m, true
	default:
		return nil, false
	}
}

// asList returns v as a slice of elements. Any Go slice or array is
// accepted so callers can pass typed slices.
func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case bson.A:
		return l, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// coerce converts a filter operand to the Go type the store expects for
// the node's kind: int64, float64, string or bool.
func coerce(node Node, v any) (any, error) {
	switch node.Scalar {
	case schema.KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %s", describe(v))
		}
		return s, nil

	case schema.KindEnum:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected an enum value, got %s", describe(v))
		}
		if !slices.Contains(node.Values, s) {
			return nil, fmt.Errorf("%q is not a value of %s", s, node.EnumName)
		}
		return s, nil

	case schema.KindBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean, got %s", describe(v))
		}
		return b, nil

	case schema.KindInt:
		return toInt(v)

	case schema.KindFloat:
		return toFloat(v)

	default:
		return nil, fmt.Errorf("%s values cannot be filtered", node.Scalar)
	}
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case float32:
		return integral(float64(n))
	case float64:
		return integral(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n.String())
		}
		return integral(f)
	default:
		return 0, fmt.Errorf("expected an integer, got %s", describe(v))
	}
}

func integral(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", n.String())
		}
		return f, nil
	}
	if i, err := toInt(v); err == nil {
		return float64(i), nil
	}
	return 0, fmt.Errorf("expected a number, got %s", describe(v))
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return "a number"
	}
	if _, ok := asMap(v); ok {
		return "an object"
	}
	if _, ok := asList(v); ok {
		return "a list"
	}
	return fmt.Sprintf("%T", v)
}
