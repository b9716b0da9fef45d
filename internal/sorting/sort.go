// Package sorting builds store sort documents from a record's sort paths.
//
// Sorting is only described here; executing it is the store's job.
package sorting

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/shapeql/internal/schema"
)

// ErrNotSortable is returned for keys that are not among a record's sort
// paths.
var ErrNotSortable = errors.New("path is not sortable")

// Direction values used in sort documents.
const (
	Ascending  = 1
	Descending = -1
)

// Build returns the sort document for keys in order. A key is a dotted
// sort path, optionally prefixed with "-" for descending or "+" for
// ascending order.
func Build(rec *schema.Record, keys ...string) (bson.D, error) {
	sort := make(bson.D, 0, len(keys))
	seen := make(map[string]bool, len(keys))

	for _, key := range keys {
		path, dir := parseKey(key)
		if path == "" {
			return nil, fmt.Errorf("empty sort key %q", key)
		}
		if !rec.IsSortable(path) {
			return nil, fmt.Errorf("%s: %w (sortable: %s)", path, ErrNotSortable, strings.Join(rec.SortPaths(), ", "))
		}
		if seen[path] {
			return nil, fmt.Errorf("duplicate sort key %q", path)
		}
		seen[path] = true
		sort = append(sort, bson.E{Key: path, Value: dir})
	}

	return sort, nil
}

// Parse splits a comma separated sort list such as "name,-address.city"
// and builds it with Build. An empty list yields an empty document.
func Parse(rec *schema.Record, list string) (bson.D, error) {
	if strings.TrimSpace(list) == "" {
		return bson.D{}, nil
	}
	keys := strings.Split(list, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return Build(rec, keys...)
}

func parseKey(key string) (string, int) {
	key = strings.TrimSpace(key)
	switch {
	case strings.HasPrefix(key, "-"):
		return key[1:], Descending
	case strings.HasPrefix(key, "+"):
		return key[1:], Ascending
	default:
		return key, Ascending
	}
}
