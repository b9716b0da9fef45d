package schema

// TypeKind classifies a wire type node.
type TypeKind int

const (
	TypeScalar TypeKind = iota
	TypeEnum
	TypeObject
	TypeList
	TypeRef // reference to a named type defined elsewhere (self-references)
)

// Scalar type names used in wire types.
const (
	ScalarString  = "String"
	ScalarInt     = "Int"
	ScalarFloat   = "Float"
	ScalarBoolean = "Boolean"
	ScalarJSON    = "JSON"
)

// Type is a node in the wire type graph handed to API-schema assembly.
//
// NonNull marks the value as required. List types carry their element in
// Elem; object types carry ordered Fields; enum types carry Values.
// Types are treated as immutable: Nullable and NonNullable return copies.
type Type struct {
	Kind    TypeKind
	Name    string
	NonNull bool
	Elem    *Type
	Fields  []TypeField
	Values  []string
}

// TypeField is one named field of an object type.
type TypeField struct {
	Name string
	Type *Type
}

// Scalar returns a nullable scalar type with the given name.
func Scalar(name string) *Type {
	return &Type{Kind: TypeScalar, Name: name}
}

// ListType returns a nullable list of elem.
func ListType(elem *Type) *Type {
	return &Type{Kind: TypeList, Elem: elem}
}

// RefType returns a nullable reference to the named type.
func RefType(name string) *Type {
	return &Type{Kind: TypeRef, Name: name}
}

// Nullable returns a copy of t that accepts null.
func (t *Type) Nullable() *Type {
	c := *t
	c.NonNull = false
	return &c
}

// NonNullable returns a copy of t that rejects null.
func (t *Type) NonNullable() *Type {
	c := *t
	c.NonNull = true
	return &c
}

// Field returns the named field of an object type.
func (t *Type) Field(name string) (*Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// String renders t in GraphQL notation, e.g. "String!", "[Int!]", "User".
func (t *Type) String() string {
	var s string
	if t.Kind == TypeList {
		s = "[" + t.Elem.String() + "]"
	} else {
		s = t.Name
	}
	if t.NonNull {
		s += "!"
	}
	return s
}
