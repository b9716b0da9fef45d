package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/shapeql/internal/schema"
)

// Field type names accepted in layouts.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeEnum    = "enum"
	TypeObject  = "object"
	TypeList    = "list"
	TypeUnknown = "unknown"
)

// typeAliases maps alternative spellings to their canonical type name.
var typeAliases = map[string]string{
	"bool": TypeBoolean,
	"json": TypeUnknown,
}

// fieldKeys is the set of keys a field description may use.
var fieldKeys = map[string]bool{
	"type":     true,
	"nullable": true,
	"optional": true,
	"sortable": true,
	"computed": true,
	"min":      true,
	"max":      true,
	"pattern":  true,
	"values":   true,
	"name":     true,
	"of":       true,
	"fields":   true,
}

// CompileEntities compiles every entity declared under "entity" in root,
// in declaration order.
//
//	entity: User: {
//		fields: {
//			name: {type: "string", sortable: true, min: 2}
//			tags: {type: "list", of: {type: "string"}}
//		}
//	}
func CompileEntities(root cue.Value) ([]*schema.Record, error) {
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	entities := root.LookupPath(cue.ParsePath("entity"))
	if !entities.Exists() {
		return nil, nil
	}

	iter, err := entities.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var records []*schema.Record
	for iter.Next() {
		rec, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// CompileEntity compiles one entity struct into a Record. The entity name
// is the struct's label.
//
// Recognized entity keys are fields (required), args and no_validation.
func CompileEntity(v cue.Value) (*schema.Record, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var name string
	selectors := v.Path().Selectors()
	if len(selectors) > 0 {
		name = unquote(selectors[len(selectors)-1].String())
	}
	if name == "" {
		return nil, &CompileError{Field: "entity", Message: "entity must be a labelled struct", Pos: v.Pos()}
	}

	args, _, err := lookupBool(v, "args")
	if err != nil {
		return nil, err
	}
	noValidation, _, err := lookupBool(v, "no_validation")
	if err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "entity." + name + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	layout, err := compileLayout(name, fieldsVal)
	if err != nil {
		return nil, err
	}

	return schema.Compose(name, layout, schema.Options{Args: args, NoValidation: noValidation}), nil
}

// compileLayout compiles a struct of field descriptions. path is used in
// error reports.
func compileLayout(path string, v cue.Value) (schema.Layout, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var layout schema.Layout
	for iter.Next() {
		label := iter.Label()
		member, err := compileMember(path+"."+label, label, iter.Value())
		if err != nil {
			return nil, err
		}
		layout = append(layout, schema.Named(label, member))
	}
	return layout, nil
}

// compileMember compiles one field description.
func compileMember(path, label string, v cue.Value) (schema.Member, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: path, Message: "field description must be a struct", Pos: v.Pos()}
	}
	if err := checkKeys(path, v); err != nil {
		return nil, err
	}

	typeName, err := fieldType(path, v)
	if err != nil {
		return nil, err
	}

	nullable, _, err := lookupBool(v, "nullable")
	if err != nil {
		return nil, err
	}

	if typeName == TypeObject {
		return compileObject(path, label, v, nullable)
	}

	var f schema.Field
	switch typeName {
	case TypeString:
		f = schema.String()
	case TypeInt:
		f = schema.Int()
	case TypeFloat:
		f = schema.Float()
	case TypeBoolean:
		f = schema.Boolean()
	case TypeUnknown:
		f = schema.Unknown()
	case TypeEnum:
		f, err = compileEnum(path, label, v)
	case TypeList:
		f, err = compileList(path, label, v)
	}
	if err != nil {
		return nil, err
	}

	return applyModifiers(path, f, v, nullable)
}

// fieldType returns the canonical type of a field description. A
// description with fields and no type is an object.
func fieldType(path string, v cue.Value) (string, error) {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		if v.LookupPath(cue.ParsePath("fields")).Exists() {
			return TypeObject, nil
		}
		return "", &CompileError{Field: path + ".type", Message: "type is required", Pos: v.Pos()}
	}

	name, err := typeVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	if alias, ok := typeAliases[name]; ok {
		name = alias
	}

	switch name {
	case TypeString, TypeInt, TypeFloat, TypeBoolean, TypeEnum, TypeObject, TypeList, TypeUnknown:
		return name, nil
	default:
		return "", &CompileError{
			Field:   path + ".type",
			Message: fmt.Sprintf("unsupported type %q", name),
			Pos:     typeVal.Pos(),
		}
	}
}

func compileObject(path, label string, v cue.Value, nullable bool) (schema.Member, error) {
	name, err := typeNameFor(path, label, v)
	if err != nil {
		return nil, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{Field: path + ".fields", Message: "object fields are required", Pos: v.Pos()}
	}
	for _, key := range []string{"min", "max", "pattern", "values", "of", "sortable", "computed"} {
		if v.LookupPath(cue.ParsePath(key)).Exists() {
			return nil, &CompileError{
				Field:   path + "." + key,
				Message: fmt.Sprintf("%s does not apply to objects", key),
				Pos:     v.Pos(),
			}
		}
	}

	layout, err := compileLayout(path, fieldsVal)
	if err != nil {
		return nil, err
	}

	rec := schema.Compose(name, layout, schema.Options{})
	if nullable {
		return schema.Optional(rec), nil
	}
	return rec, nil
}

func compileEnum(path, label string, v cue.Value) (schema.Field, error) {
	name, err := typeNameFor(path, label, v)
	if err != nil {
		return schema.Field{}, err
	}

	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return schema.Field{}, &CompileError{Field: path + ".values", Message: "enum values are required", Pos: v.Pos()}
	}
	values, err := stringList(valuesVal)
	if err != nil {
		return schema.Field{}, err
	}
	if len(values) == 0 {
		return schema.Field{}, &CompileError{Field: path + ".values", Message: "enum needs at least one value", Pos: valuesVal.Pos()}
	}
	return schema.Enum(name, values...), nil
}

func compileList(path, label string, v cue.Value) (schema.Field, error) {
	ofVal := v.LookupPath(cue.ParsePath("of"))
	if !ofVal.Exists() {
		return schema.Field{}, &CompileError{Field: path + ".of", Message: "list element type is required", Pos: v.Pos()}
	}
	elem, err := compileMember(path+".of", label, ofVal)
	if err != nil {
		return schema.Field{}, err
	}
	return schema.ListOf(elem), nil
}

// applyModifiers applies the shared field keys to f.
func applyModifiers(path string, f schema.Field, v cue.Value, nullable bool) (schema.Member, error) {
	if nullable {
		f = f.Nullable()
	}

	if optional, ok, err := lookupBool(v, "optional"); err != nil {
		return nil, err
	} else if ok {
		f = f.WithOptional(optional)
	}

	if computed, _, err := lookupBool(v, "computed"); err != nil {
		return nil, err
	} else if computed {
		f = f.Computed()
	}

	if sortVal := v.LookupPath(cue.ParsePath("sortable")); sortVal.Exists() {
		switch sortVal.IncompleteKind() {
		case cue.BoolKind:
			sortable, err := sortVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			if sortable {
				f = f.Sortable()
			}
		case cue.ListKind:
			subpaths, err := stringList(sortVal)
			if err != nil {
				return nil, err
			}
			f = f.SortableBy(subpaths...)
		default:
			return nil, &CompileError{
				Field:   path + ".sortable",
				Message: "sortable must be a boolean or a list of sub-paths",
				Pos:     sortVal.Pos(),
			}
		}
	}

	if minVal := v.LookupPath(cue.ParsePath("min")); minVal.Exists() {
		n, err := minVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f = f.Min(n)
	}
	if maxVal := v.LookupPath(cue.ParsePath("max")); maxVal.Exists() {
		n, err := maxVal.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f = f.Max(n)
	}

	if patternVal := v.LookupPath(cue.ParsePath("pattern")); patternVal.Exists() {
		if f.Kind() != schema.KindString {
			return nil, &CompileError{
				Field:   path + ".pattern",
				Message: "pattern only applies to strings",
				Pos:     patternVal.Pos(),
			}
		}
		pattern, err := patternVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f = f.Pattern(pattern)
	}

	return f, nil
}

// typeNameFor returns the declared "name" of an object or enum, or the
// field label in title case: billing_address -> BillingAddress.
func typeNameFor(path, label string, v cue.Value) (string, error) {
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		if name == "" {
			return "", &CompileError{Field: path + ".name", Message: "name must not be empty", Pos: nameVal.Pos()}
		}
		return name, nil
	}
	return TitleName(label), nil
}

// TitleName converts a field label to a type name.
func TitleName(label string) string {
	caser := cases.Title(language.Und, cases.NoLower)
	parts := strings.FieldsFunc(label, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		parts[i] = caser.String(p)
	}
	return strings.Join(parts, "")
}

func checkKeys(path string, v cue.Value) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		key := iter.Label()
		if !fieldKeys[key] {
			return &CompileError{
				Field:   path + "." + key,
				Message: fmt.Sprintf("unknown field key %q", key),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// lookupBool reads an optional boolean key. ok reports whether it was set.
func lookupBool(v cue.Value, key string) (value, ok bool, err error) {
	val := v.LookupPath(cue.ParsePath(key))
	if !val.Exists() {
		return false, false, nil
	}
	b, err := val.Bool()
	if err != nil {
		return false, false, formatCUEError(err)
	}
	return b, true, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// unquote strips the quotes CUE puts around labels that are not
// identifiers, such as "first-name".
func unquote(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
