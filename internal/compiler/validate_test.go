package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/shapeql/internal/schema"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValid(t *testing.T) {
	rec := schema.Compose("User", schema.Layout{
		schema.Named("name", schema.String().Min(1).Max(10).Pattern("^[a-z]+$")),
		schema.Named("status", schema.Enum("Status", "a", "b")),
	}, schema.Options{})

	assert.Empty(t, Validate(rec))
}

func TestValidateErrors(t *testing.T) {
	testCases := []struct {
		name  string
		rec   *schema.Record
		code  string
		field string
	}{
		{
			name:  "invalid pattern",
			rec:   schema.Compose("User", schema.Layout{schema.Named("name", schema.String().Pattern("("))}, schema.Options{}),
			code:  ErrInvalidPattern,
			field: "User.name",
		},
		{
			name:  "inverted bounds",
			rec:   schema.Compose("User", schema.Layout{schema.Named("age", schema.Int().Min(10).Max(1))}, schema.Options{}),
			code:  ErrInvertedBounds,
			field: "User.age",
		},
		{
			name:  "negative length",
			rec:   schema.Compose("User", schema.Layout{schema.Named("name", schema.String().Min(-1))}, schema.Options{}),
			code:  ErrNegativeBound,
			field: "User.name",
		},
		{
			name:  "duplicate enum value",
			rec:   schema.Compose("User", schema.Layout{schema.Named("s", schema.Enum("S", "a", "a"))}, schema.Options{}),
			code:  ErrDuplicateEnum,
			field: "User.s",
		},
		{
			name: "list item bounds",
			rec: schema.Compose("User", schema.Layout{
				schema.Named("tags", schema.ListOf(schema.String()).Min(3).Max(2)),
			}, schema.Options{}),
			code:  ErrInvertedBounds,
			field: "User.tags",
		},
		{
			name: "nested record",
			rec: schema.Compose("User", schema.Layout{
				schema.Named("name", schema.String()),
				schema.Named("address", schema.Compose("Address", schema.Layout{
					schema.Named("zip", schema.String().Pattern("[")),
				}, schema.Options{})),
			}, schema.Options{}),
			code:  ErrInvalidPattern,
			field: "User.address.zip",
		},
		{
			name: "unfilterable entity",
			rec: schema.Compose("Blob", schema.Layout{
				schema.Named("data", schema.Unknown()),
			}, schema.Options{}),
			code:  ErrNothingFilterable,
			field: "Blob",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			errs := Validate(tc.rec)
			assert.Len(t, errs, 1)
			if len(errs) == 1 {
				assert.Equal(t, tc.code, errs[0].Code)
				assert.Equal(t, tc.field, errs[0].Field)
			}
		})
	}
}

func TestValidateConflictingTypeNames(t *testing.T) {
	home := schema.Compose("Address", schema.Layout{schema.Named("city", schema.String())}, schema.Options{})
	work := schema.Compose("Address", schema.Layout{schema.Named("street", schema.String())}, schema.Options{})
	rec := schema.Compose("User", schema.Layout{
		schema.Named("home", home),
		schema.Named("work", work),
	}, schema.Options{})

	errs := Validate(rec)
	assert.Equal(t, []string{ErrConflictingType}, codes(errs))
	assert.Equal(t, "User.work", errs[0].Field)

	same := schema.Compose("User", schema.Layout{
		schema.Named("home", home),
		schema.Named("again", home),
	}, schema.Options{})
	assert.Empty(t, Validate(same))
}

func TestValidateReservedFieldNames(t *testing.T) {
	rec := schema.Compose("Rule", schema.Layout{
		schema.Named("name", schema.String()),
		schema.Named("Or", schema.String()),
		schema.Named("And", schema.Int()),
	}, schema.Options{})

	errs := Validate(rec)
	assert.Equal(t, []string{ErrReservedField, ErrReservedField}, codes(errs))
	assert.Equal(t, "Rule.Or", errs[0].Field)
	assert.Equal(t, "Rule.And", errs[1].Field)

	nested := schema.Compose("Item", schema.Layout{
		schema.Named("opt", schema.Compose("Choice", schema.Layout{
			schema.Named("Or", schema.String()),
		}, schema.Options{})),
	}, schema.Options{})
	assert.Empty(t, Validate(nested))

	args := schema.ComposeArgs("PickArgs", schema.Layout{schema.Named("Or", schema.String())})
	assert.Empty(t, Validate(args))
}

func TestValidateEmptyRecord(t *testing.T) {
	rec := schema.ComposeArgs("NoArgs", nil)

	assert.Equal(t, []string{ErrEmptyRecord}, codes(Validate(rec)))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "User.name", Message: "bad", Code: ErrInvalidPattern}
	assert.Equal(t, "[E121] User.name: bad", e.Error())

	e.Line = 3
	assert.Equal(t, "[E121] line 3: User.name: bad", e.Error())
}
