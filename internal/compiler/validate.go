package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/shapeql/internal/filter"
	"github.com/roach88/shapeql/internal/schema"
)

// Validation error codes (E120-E129)
const (
	ErrEmptyRecord       = "E120" // record has no fields
	ErrInvalidPattern    = "E121" // pattern is not a valid regular expression
	ErrInvertedBounds    = "E122" // min is greater than max
	ErrDuplicateEnum     = "E123" // enum lists a value twice
	ErrConflictingType   = "E124" // one type name used for different shapes
	ErrNegativeBound     = "E125" // length or item bound below zero
	ErrNothingFilterable = "E126" // entity has no filterable field
	ErrReservedField     = "E127" // top-level field named like a filter combinator
)

// ValidationError represents a layout validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled entity for layouts that compose but cannot
// behave: bad patterns, inverted bounds, duplicate enum values, and type
// names reused for different shapes. Top-level entity fields may not be
// named And or Or.
// Returns all errors found (does not fail-fast).
func Validate(rec *schema.Record) []ValidationError {
	v := &validator{types: make(map[string]string)}
	v.validateRecord(rec.Name(), rec)

	if !rec.IsArgs() {
		if !hasFilterable(rec) {
			v.add(rec.Name(), ErrNothingFilterable, "no field can be filtered on")
		}
		for _, entry := range rec.Fields() {
			if entry.Name == filter.LogicalAnd || entry.Name == filter.LogicalOr {
				v.add(rec.Name()+"."+entry.Name, ErrReservedField,
					"field name %s is reserved for the entity filter combinator", entry.Name)
			}
		}
	}
	return v.errs
}

// validator accumulates errors during traversal.
type validator struct {
	errs []ValidationError
	// types maps each object type name to the shape it was first seen with.
	types map[string]string
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
	})
}

func (v *validator) validateRecord(path string, rec *schema.Record) {
	shape := shapeOf(rec.ReadType())
	if seen, ok := v.types[rec.Name()]; ok && seen != shape {
		v.add(path, ErrConflictingType, "type %s is already defined with a different shape", rec.Name())
	}
	v.types[rec.Name()] = shape

	fields := rec.Fields()
	if len(fields) == 0 {
		v.add(path, ErrEmptyRecord, "record %s has no fields", rec.Name())
	}

	for _, entry := range fields {
		fieldPath := path + "." + entry.Name
		elem, isList := schema.Element(entry.Member)
		if isList {
			v.validateRules(fieldPath, entry.Member.Rules())
		}
		if nested, ok := schema.AsRecord(elem); ok {
			v.validateRecord(fieldPath, nested)
			continue
		}
		v.validateRules(fieldPath, elem.Rules())
	}
}

func (v *validator) validateRules(path string, rules schema.Rules) {
	for _, rule := range rules {
		if rule.Pattern != "" {
			if _, err := regexp.Compile(rule.Pattern); err != nil {
				v.add(path, ErrInvalidPattern, "invalid pattern %q: %v", rule.Pattern, err)
			}
		}

		if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
			v.add(path, ErrInvertedBounds, "min %v is greater than max %v", *rule.Min, *rule.Max)
		}
		if rule.Type == schema.RuleString || rule.Type == schema.RuleArray {
			if (rule.Min != nil && *rule.Min < 0) || (rule.Max != nil && *rule.Max < 0) {
				v.add(path, ErrNegativeBound, "length bounds must not be negative")
			}
		}

		if rule.Type == schema.RuleEnum {
			seen := make(map[string]bool, len(rule.Values))
			for _, value := range rule.Values {
				if seen[value] {
					v.add(path, ErrDuplicateEnum, "duplicate enum value %q", value)
				}
				seen[value] = true
			}
		}
	}
}

// shapeOf renders the field names and types of an object type so shapes
// can be compared.
func shapeOf(t *schema.Type) string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + ":" + f.Type.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func hasFilterable(rec *schema.Record) bool {
	for _, entry := range rec.Fields() {
		elem, _ := schema.Element(entry.Member)
		if nested, ok := schema.AsRecord(elem); ok {
			if hasFilterable(nested) {
				return true
			}
			continue
		}
		if filter.OperatorsFor(elem.Kind()) != nil {
			return true
		}
	}
	return false
}
