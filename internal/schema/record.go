package schema

import (
	"slices"
	"sync"
)

// Entry is one named member of a layout. A nil Member marks the entry as
// explicitly skipped.
type Entry struct {
	Name   string
	Member Member
}

// Layout is an ordered field layout. Order only affects the order of
// generated fields; duplicate names are a caller error and are not detected.
type Layout []Entry

// Named returns a layout entry.
func Named(name string, m Member) Entry {
	return Entry{Name: name, Member: m}
}

// Options control how a layout is composed.
type Options struct {
	// Args composes a flat parameter list rather than an entity: primary
	// rules that are not explicitly optional become explicitly required,
	// so update conversion keeps them required.
	Args bool
	// NoValidation suppresses all validation. Used for self-referential
	// shapes such as filter grammars.
	NoValidation bool
}

// Record is the composite descriptor of an object entity.
//
// A Record is itself a Member of kind Object, so layouts nest. Derived
// validation is computed on first access and memoized for the life of the
// Record; later calls always return the first result.
type Record struct {
	name         string
	fields       []Entry
	index        map[string]Member
	sortPaths    []string
	args         bool
	noValidation bool
	read         *Type
	create       *Type
	update       *Type

	validationOnce sync.Once
	validation     Rule

	updateOnce       sync.Once
	updateValidation Rule

	validatorOnce sync.Once
	validator     *Validator
	validatorErr  error

	updateValidatorOnce sync.Once
	updateValidator     *Validator
	updateValidatorErr  error
}

// Compose combines a layout into a Record named name.
//
// Computed members appear in the read shape only. Sort paths are the member
// name for sortable fields and "name.sub" for each sub-path a member
// declares, which for nested records is their own sort path list.
func Compose(name string, layout Layout, opts Options) *Record {
	r := &Record{
		name:         name,
		index:        make(map[string]Member, len(layout)),
		args:         opts.Args,
		noValidation: opts.NoValidation,
	}

	var readFields, createFields, updateFields []TypeField
	for _, entry := range layout {
		if entry.Member == nil {
			continue
		}
		r.fields = append(r.fields, entry)
		r.index[entry.Name] = entry.Member

		self, subpaths := entry.Member.sortSpec()
		if self {
			r.sortPaths = append(r.sortPaths, entry.Name)
		}
		for _, sub := range subpaths {
			r.sortPaths = append(r.sortPaths, entry.Name+"."+sub)
		}

		readFields = append(readFields, TypeField{Name: entry.Name, Type: entry.Member.ReadType()})
		if entry.Member.IsComputed() {
			continue
		}
		createFields = append(createFields, TypeField{Name: entry.Name, Type: entry.Member.CreateType()})
		updateFields = append(updateFields, TypeField{Name: entry.Name, Type: entry.Member.UpdateType()})
	}

	r.read = &Type{Kind: TypeObject, Name: name, Fields: readFields}
	r.create = &Type{Kind: TypeObject, Name: name + "Input", Fields: createFields}
	r.update = &Type{Kind: TypeObject, Name: name + "Update", Fields: updateFields}
	return r
}

// ComposeArgs composes a parameter list.
func ComposeArgs(name string, layout Layout) *Record {
	return Compose(name, layout, Options{Args: true})
}

func (r *Record) Name() string { return r.name }

// IsArgs reports whether r was composed as a parameter list.
func (r *Record) IsArgs() bool { return r.args }

// Fields returns the present (non-skipped) entries in layout order.
func (r *Record) Fields() []Entry {
	return slices.Clone(r.fields)
}

// Lookup returns the member registered under name.
func (r *Record) Lookup(name string) (Member, bool) {
	m, ok := r.index[name]
	return m, ok
}

// SortPaths returns the flattened dotted sortable paths.
func (r *Record) SortPaths() []string {
	return slices.Clone(r.sortPaths)
}

// IsSortable reports whether path is one of the record's sort paths.
func (r *Record) IsSortable(path string) bool {
	return slices.Contains(r.sortPaths, path)
}

func (r *Record) Kind() Kind { return KindObject }

func (r *Record) IsNullable() bool { return false }

func (r *Record) IsComputed() bool { return false }

func (r *Record) ReadType() *Type { return r.read.NonNullable() }

func (r *Record) CreateType() *Type { return r.create.NonNullable() }

func (r *Record) UpdateType() *Type { return r.update.Nullable() }

// Rules returns the record's validation as a single-rule list.
func (r *Record) Rules() Rules {
	return Rules{r.Validation()}
}

func (r *Record) sortSpec() (bool, []string) {
	return false, r.sortPaths
}

// Validation returns the strict object rule for creating an entity.
func (r *Record) Validation() Rule {
	r.validationOnce.Do(func() {
		r.validation = r.buildValidation()
	})
	return r.validation
}

// UpdateValidation returns Validation relaxed by ConvertForUpdate.
func (r *Record) UpdateValidation() Rule {
	r.updateOnce.Do(func() {
		rule := r.Validation()
		if rule.Type == RuleObject {
			rule.Properties = ConvertForUpdate(rule.Properties)
		}
		r.updateValidation = rule
	})
	return r.updateValidation
}

func (r *Record) buildValidation() Rule {
	if r.noValidation {
		return Rule{Type: RuleAny}
	}

	props := make(Properties, len(r.fields))
	for _, entry := range r.fields {
		if entry.Member.IsComputed() {
			continue
		}
		rules := entry.Member.Rules()
		if r.args && len(rules) > 0 && !rules[0].IsOptional() {
			rules[0].Optional = Bool(false)
		}
		props[entry.Name] = rules
	}

	return Rule{Type: RuleObject, Strict: true, Properties: props}
}

// Validator returns the compiled validator for Validation.
func (r *Record) Validator() (*Validator, error) {
	r.validatorOnce.Do(func() {
		r.validator, r.validatorErr = NewValidator(r.Validation())
	})
	return r.validator, r.validatorErr
}

// UpdateValidator returns the compiled validator for UpdateValidation.
func (r *Record) UpdateValidator() (*Validator, error) {
	r.updateValidatorOnce.Do(func() {
		r.updateValidator, r.updateValidatorErr = NewValidator(r.UpdateValidation())
	})
	return r.updateValidator, r.updateValidatorErr
}

// ValidateCreate checks doc against the creation validation.
func (r *Record) ValidateCreate(doc any) error {
	v, err := r.Validator()
	if err != nil {
		return err
	}
	return v.Validate(doc)
}

// ValidateUpdate checks a partial doc against the update validation.
func (r *Record) ValidateUpdate(doc any) error {
	v, err := r.UpdateValidator()
	if err != nil {
		return err
	}
	return v.Validate(doc)
}

// optional wraps a Record as a nullable member without touching it.
type optional struct {
	*Record
}

// Optional returns r as a member that accepts null and absence.
func Optional(r *Record) Member {
	return optional{Record: r}
}

func (o optional) IsNullable() bool { return true }

func (o optional) ReadType() *Type { return o.Record.read.Nullable() }

func (o optional) CreateType() *Type { return o.Record.create.Nullable() }

func (o optional) Rules() Rules {
	rules := o.Record.Rules()
	rules[0].Nullable = true
	if rules[0].Optional == nil {
		rules[0].Optional = Bool(true)
	}
	return rules
}

// AsRecord returns the Record behind m, if m is a nested record.
func AsRecord(m Member) (*Record, bool) {
	switch v := m.(type) {
	case *Record:
		return v, true
	case optional:
		return v.Record, true
	default:
		return nil, false
	}
}
