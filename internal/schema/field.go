package schema

// Member is anything that can appear in a layout: a Field, a *Record, or
// a Record wrapped by Optional.
//
// This is a sealed interface - only types in this package implement it.
type Member interface {
	Kind() Kind
	IsNullable() bool
	IsComputed() bool
	ReadType() *Type
	CreateType() *Type
	UpdateType() *Type
	// Rules returns the creation-time validation rules. The slice is a
	// fresh copy on every call.
	Rules() Rules

	sortSpec() (self bool, subpaths []string)
}

// Field describes one scalar, enum, list or opaque value.
//
// Field is an immutable value: every builder method returns a modified
// copy and leaves the receiver untouched.
type Field struct {
	kind     Kind
	elem     Member
	enumName string
	values   []string
	nullable bool
	sortable bool
	subpaths []string
	computed bool
	rules    Rules
	read     *Type
	create   *Type
}

// FieldConfig is the explicit form of a field description.
type FieldConfig struct {
	Kind     Kind
	Rule     Rule
	Nullable bool
	Sortable bool
	// Subpaths lists dotted sub-paths that are individually sortable.
	Subpaths []string
	Computed bool
	// Read is the base read type; nullability is applied by ReadType.
	Read *Type
	// Create defaults to Read.
	Create *Type
}

// NewField builds a field from an explicit configuration.
func NewField(cfg FieldConfig) Field {
	read := cfg.Read
	if read == nil {
		read = Scalar(ScalarJSON)
	}
	rule := cfg.Rule
	if rule.Type == "" {
		rule.Type = RuleAny
	}
	return Field{
		kind:     cfg.Kind,
		nullable: cfg.Nullable,
		sortable: cfg.Sortable,
		subpaths: append([]string(nil), cfg.Subpaths...),
		computed: cfg.Computed,
		rules:    Rules{rule},
		read:     read,
		create:   cfg.Create,
	}
}

func scalarField(kind Kind, typeName string, ruleType RuleType) Field {
	return Field{
		kind:  kind,
		rules: Rules{{Type: ruleType}},
		read:  Scalar(typeName),
	}
}

// String returns a required string field.
func String() Field { return scalarField(KindString, ScalarString, RuleString) }

// Int returns a required integer field.
func Int() Field { return scalarField(KindInt, ScalarInt, RuleInteger) }

// Float returns a required floating point field.
func Float() Field { return scalarField(KindFloat, ScalarFloat, RuleNumber) }

// Boolean returns a required boolean field.
func Boolean() Field { return scalarField(KindBoolean, ScalarBoolean, RuleBoolean) }

// Unknown returns an opaque JSON field. Unknown fields are read and
// written but cannot be filtered on.
func Unknown() Field { return scalarField(KindUnknown, ScalarJSON, RuleAny) }

// Enum returns a required field restricted to values.
func Enum(name string, values ...string) Field {
	values = append([]string(nil), values...)
	return Field{
		kind:     KindEnum,
		enumName: name,
		values:   values,
		rules:    Rules{{Type: RuleEnum, Values: values}},
		read:     &Type{Kind: TypeEnum, Name: name, Values: values},
	}
}

// ListOf returns a required list whose elements are described by elem.
func ListOf(elem Member) Field {
	return Field{
		kind:   KindList,
		elem:   elem,
		rules:  Rules{{Type: RuleArray, Items: elem.Rules()}},
		read:   ListType(elem.ReadType()),
		create: ListType(elem.CreateType()),
	}
}

// Reference returns an opaque field typed as a reference to the named type.
// It is used for self-referential shapes and carries no validation.
func Reference(name string) Field {
	return Field{
		kind:  KindUnknown,
		rules: Rules{{Type: RuleAny}},
		read:  RefType(name),
	}
}

func (f Field) Kind() Kind { return f.kind }

func (f Field) IsNullable() bool { return f.nullable }

func (f Field) IsComputed() bool { return f.computed }

func (f Field) IsSortable() bool { return f.sortable }

// EnumName returns the declared enum type name, or "" for non-enum fields.
func (f Field) EnumName() string { return f.enumName }

// EnumValues returns a copy of the allowed enum values.
func (f Field) EnumValues() []string {
	return append([]string(nil), f.values...)
}

// Elem returns the element member of a list field, or nil.
func (f Field) Elem() Member { return f.elem }

// ReadType is non-null unless the field is nullable.
func (f Field) ReadType() *Type {
	return f.withNullability(f.read)
}

// CreateType follows the same nullability as ReadType.
func (f Field) CreateType() *Type {
	if f.create == nil {
		return f.ReadType()
	}
	return f.withNullability(f.create)
}

// UpdateType is always nullable: updates are partial.
func (f Field) UpdateType() *Type {
	return f.CreateType().Nullable()
}

func (f Field) withNullability(t *Type) *Type {
	if f.nullable {
		return t.Nullable()
	}
	return t.NonNullable()
}

// Rules returns the field's validation rules with nullability applied to
// the primary rule. A nullable field also accepts absence.
func (f Field) Rules() Rules {
	rules := f.rules.clone()
	if f.nullable && len(rules) > 0 {
		rules[0].Nullable = true
		if rules[0].Optional == nil {
			rules[0].Optional = Bool(true)
		}
	}
	return rules
}

func (f Field) sortSpec() (bool, []string) {
	return f.sortable, f.subpaths
}

// Nullable returns a copy of f that accepts null and absence.
func (f Field) Nullable() Field {
	f.nullable = true
	return f
}

// Sortable returns a copy of f that can be used as a sort key.
func (f Field) Sortable() Field {
	f.sortable = true
	return f
}

// SortableBy returns a copy of f whose listed sub-paths are sort keys.
// This is meant for opaque structured values sorted by inner fields.
func (f Field) SortableBy(subpaths ...string) Field {
	f.subpaths = append([]string(nil), subpaths...)
	return f
}

// Computed returns a copy of f that is server-derived: it is part of the
// read shape but never accepted from clients.
func (f Field) Computed() Field {
	f.computed = true
	return f
}

// Min returns a copy of f with a lower bound (length, value or item count).
func (f Field) Min(n float64) Field {
	f.rules = f.rules.withPrimary(func(r *Rule) { r.Min = Number(n) })
	return f
}

// Max returns a copy of f with an upper bound (length, value or item count).
func (f Field) Max(n float64) Field {
	f.rules = f.rules.withPrimary(func(r *Rule) { r.Max = Number(n) })
	return f
}

// Pattern returns a copy of f whose string value must match the RE2 pattern.
func (f Field) Pattern(pattern string) Field {
	f.rules = f.rules.withPrimary(func(r *Rule) { r.Pattern = pattern })
	return f
}

// Constrain returns a copy of f with auxiliary rules appended.
func (f Field) Constrain(extra ...Rule) Field {
	rules := f.rules.clone()
	f.rules = append(rules, extra...)
	return f
}

// WithOptional returns a copy of f whose primary rule has an explicit
// optionality marker. WithOptional(false) survives update conversion.
func (f Field) WithOptional(optional bool) Field {
	f.rules = f.rules.withPrimary(func(r *Rule) { r.Optional = Bool(optional) })
	return f
}

// WithCreateType returns a copy of f with a distinct base create type.
func (f Field) WithCreateType(t *Type) Field {
	f.create = t
	return f
}

// Element unwraps a list member to its element. The boolean reports
// whether m was a list.
func Element(m Member) (Member, bool) {
	if f, ok := m.(Field); ok && f.kind == KindList && f.elem != nil {
		return f.elem, true
	}
	return m, false
}
