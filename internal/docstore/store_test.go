package docstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/shapeql/internal/filter"
	"github.com/roach88/shapeql/internal/schema"
	"github.com/roach88/shapeql/internal/sorting"
	"github.com/roach88/shapeql/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUsers(t *testing.T, s *Store) {
	t.Helper()
	docs := []any{
		map[string]any{"name": "Ada", "age": 36, "tags": []string{"vip", "admin"}, "address": map[string]any{"city": "London"}},
		map[string]any{"name": "Bob", "age": 17, "tags": []string{}, "address": map[string]any{"city": "Berlin"}},
		map[string]any{"name": "carol", "age": 25, "address": map[string]any{"city": "Berlin"}},
		map[string]any{"name": "Dan", "age": nil, "tags": []string{"vip"}},
	}
	_, err := s.InsertMany(context.Background(), "users", docs)
	require.NoError(t, err)
}

func names(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i], _ = d.Body["name"].(string)
	}
	return out
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Insert(context.Background(), "users", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.Insert(ctx, "users", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, err = s.Insert(ctx, "users", []int{1, 2})
	assert.Error(t, err, "documents must be objects")

	n, err := s.Count(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFind(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	testCases := []struct {
		name string
		pred bson.M
		want []string
	}{
		{name: "everything", pred: nil, want: []string{"Ada", "Bob", "carol", "Dan"}},
		{name: "equality", pred: bson.M{"name": bson.M{"$eq": "Bob"}}, want: []string{"Bob"}},
		{name: "range", pred: bson.M{"age": bson.M{"$gte": int64(18), "$lte": int64(30)}}, want: []string{"carol"}},
		{name: "nested path", pred: bson.M{"address.city": bson.M{"$eq": "Berlin"}}, want: []string{"Bob", "carol"}},
		{name: "array any", pred: bson.M{"tags": bson.M{"$in": bson.A{"vip"}}}, want: []string{"Ada", "Dan"}},
		{name: "array not in", pred: bson.M{"tags": bson.M{"$nin": bson.A{"vip"}}}, want: []string{"Bob", "carol"}},
		{name: "not equal includes missing", pred: bson.M{"address.city": bson.M{"$ne": "Berlin"}}, want: []string{"Ada", "Dan"}},
		{name: "exists counts null", pred: bson.M{"age": bson.M{"$exists": true}}, want: []string{"Ada", "Bob", "carol", "Dan"}},
		{name: "missing", pred: bson.M{"tags": bson.M{"$exists": false}}, want: []string{"carol"}},
		{name: "regex case insensitive", pred: bson.M{"name": bson.M{"$regex": "^c", "$options": "i"}}, want: []string{"carol"}},
		{name: "regex case sensitive", pred: bson.M{"name": bson.M{"$regex": "^C"}}, want: nil},
		{
			name: "or",
			pred: bson.M{"$or": bson.A{
				bson.M{"age": bson.M{"$lt": int64(18)}},
				bson.M{"tags": bson.M{"$in": bson.A{"admin"}}},
			}},
			want: []string{"Ada", "Bob"},
		},
		{
			name: "and",
			pred: bson.M{"$and": bson.A{
				bson.M{"address.city": bson.M{"$eq": "Berlin"}},
				bson.M{"age": bson.M{"$gt": int64(20)}},
			}},
			want: []string{"carol"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			docs, err := s.Find(context.Background(), "users", tc.pred, nil)
			require.NoError(t, err)
			if tc.want == nil {
				assert.Empty(t, docs)
				return
			}
			assert.Equal(t, tc.want, names(docs))
		})
	}
}

func TestFind_Sort(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	docs, err := s.Find(context.Background(), "users",
		bson.M{"age": bson.M{"$exists": true}},
		bson.D{{Key: "age", Value: -1}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "carol", "Bob", "Dan"}, names(docs))

	docs, err = s.Find(context.Background(), "users", nil, bson.D{{Key: "address.city", Value: 1}, {Key: "name", Value: -1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Dan", "carol", "Bob", "Ada"}, names(docs))
}

func TestInsert_IDGenerator(t *testing.T) {
	s, err := Open(":memory:", WithIDGenerator(testutil.NewSequentialIDs("user")))
	require.NoError(t, err)
	defer s.Close()

	ids, err := s.InsertMany(context.Background(), "users", []any{
		map[string]any{"name": "Ada"},
		map[string]any{"name": "Bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-2"}, ids)

	docs, err := s.Find(context.Background(), "users", bson.M{"name": bson.M{"$eq": "Bob"}}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, Document{ID: "user-2", Body: map[string]any{"name": "Bob"}}, docs[0])
}

func TestInsert_DuplicateID(t *testing.T) {
	s, err := Open(":memory:", WithIDGenerator(testutil.NewSequentialIDs("x")))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), "users", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	s.ids = testutil.NewSequentialIDs("x")
	_, err = s.Insert(context.Background(), "users", map[string]any{"name": "Bob"})
	assert.Error(t, err, "ids are unique across the store")
}

func TestFind_CollectionsAreSeparate(t *testing.T) {
	s := openTestStore(t)
	seedUsers(t, s)

	_, err := s.Insert(context.Background(), "products", map[string]any{"name": "Ada"})
	require.NoError(t, err)

	docs, err := s.Find(context.Background(), "products", nil, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotEmpty(t, docs[0].ID)
}

func TestFind_Unsupported(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Find(context.Background(), "users", bson.M{"a": bson.M{"$size": 1}}, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFind_CompiledFilter(t *testing.T) {
	address := schema.Compose("Address", schema.Layout{
		schema.Named("city", schema.String().Sortable()),
	}, schema.Options{})
	user := schema.Compose("User", schema.Layout{
		schema.Named("name", schema.String().Sortable()),
		schema.Named("age", schema.Int().Nullable().Sortable()),
		schema.Named("tags", schema.ListOf(schema.String())),
		schema.Named("address", schema.Optional(address)),
	}, schema.Options{})

	s := openTestStore(t)
	seedUsers(t, s)

	expr, err := filter.ParseJSON([]byte(`{
		"Or": [
			{"address": {"city": {"Eq": "Berlin"}}, "age": {"Gte": 18}},
			{"name": {"RegEx": "^A"}, "tags": {"In": ["admin"]}}
		]
	}`))
	require.NoError(t, err)

	pred, err := filter.Compile(filter.ForEntity(user), expr)
	require.NoError(t, err)

	order, err := sorting.Parse(user, "-age")
	require.NoError(t, err)

	docs, err := s.Find(context.Background(), "users", pred, order)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "carol"}, names(docs))
}
