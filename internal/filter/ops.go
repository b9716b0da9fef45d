package filter

import "github.com/roach88/shapeql/internal/schema"

// Operator is a filter operator name as it appears in filter expressions.
//
// Operator names are capitalized reserved words. Field names cannot collide
// with them because the compiler dispatches on the grammar's node tags, not
// on key names.
type Operator string

const (
	OpEq     Operator = "Eq"
	OpNeq    Operator = "Neq"
	OpGt     Operator = "Gt"
	OpGte    Operator = "Gte"
	OpLt     Operator = "Lt"
	OpLte    Operator = "Lte"
	OpIn     Operator = "In"
	OpNin    Operator = "Nin"
	OpExists Operator = "Exists"
	OpRegEx  Operator = "RegEx" // string fields only
)

// Logical combinator keys. Only top-level grammars accept them.
const (
	LogicalAnd = "And"
	LogicalOr  = "Or"
)

// standardOperators is the operator set every scalar and enum kind offers.
var standardOperators = []Operator{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpExists}

// storeOperators maps filter operators to document-store query operators.
// RegEx is handled separately because it also emits $options.
var storeOperators = map[Operator]string{
	OpEq:     "$eq",
	OpNeq:    "$ne",
	OpGt:     "$gt",
	OpGte:    "$gte",
	OpLt:     "$lt",
	OpLte:    "$lte",
	OpIn:     "$in",
	OpNin:    "$nin",
	OpExists: "$exists",
}

// OperatorsFor returns the operators offered for a scalar or enum kind, or
// nil when values of kind cannot be filtered on.
func OperatorsFor(kind schema.Kind) []Operator {
	switch kind {
	case schema.KindString:
		ops := append([]Operator(nil), standardOperators...)
		return append(ops, OpRegEx)
	case schema.KindInt, schema.KindFloat, schema.KindBoolean, schema.KindEnum:
		return append([]Operator(nil), standardOperators...)
	default:
		return nil
	}
}

// IsList reports whether op takes a list of values.
func (op Operator) IsList() bool {
	return op == OpIn || op == OpNin
}
