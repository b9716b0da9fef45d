package sorting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/shapeql/internal/schema"
)

func testRecord() *schema.Record {
	address := schema.Compose("Address", schema.Layout{
		schema.Named("city", schema.String().Sortable()),
		schema.Named("zip", schema.String()),
	}, schema.Options{})
	return schema.Compose("User", schema.Layout{
		schema.Named("name", schema.String().Sortable()),
		schema.Named("age", schema.Int()),
		schema.Named("address", address),
	}, schema.Options{})
}

func TestBuild(t *testing.T) {
	rec := testRecord()

	testCases := []struct {
		name string
		keys []string
		want bson.D
	}{
		{name: "none", keys: nil, want: bson.D{}},
		{name: "ascending", keys: []string{"name"}, want: bson.D{{Key: "name", Value: Ascending}}},
		{name: "explicit ascending", keys: []string{"+name"}, want: bson.D{{Key: "name", Value: Ascending}}},
		{
			name: "mixed keep order",
			keys: []string{"-address.city", "name"},
			want: bson.D{{Key: "address.city", Value: Descending}, {Key: "name", Value: Ascending}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Build(rec, tc.keys...)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	rec := testRecord()

	_, err := Build(rec, "age")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotSortable))
	assert.Contains(t, err.Error(), "name, address.city")

	_, err = Build(rec, "address.zip")
	assert.True(t, errors.Is(err, ErrNotSortable))

	_, err = Build(rec, "-")
	assert.Error(t, err)

	_, err = Build(rec, "name", "-name")
	assert.ErrorContains(t, err, "duplicate")
}

func TestParse(t *testing.T) {
	rec := testRecord()

	got, err := Parse(rec, "name, -address.city")
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "name", Value: Ascending}, {Key: "address.city", Value: Descending}}, got)

	got, err = Parse(rec, "  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = Parse(rec, "name,,age")
	assert.Error(t, err)
}
