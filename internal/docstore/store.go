package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/shapeql/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// driverName is the sqlite3 driver with the REGEXP function registered.
const driverName = "sqlite3_shapeql"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("regexp", regexpMatch, true)
		},
	})
}

// regexpMatch implements "value REGEXP pattern".
func regexpMatch(pattern, value string) (bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(value), nil
}

// Document is one stored document.
type Document struct {
	ID   string         `json:"id"`
	Body map[string]any `json:"body"`
}

// Store is a document store over a single SQLite database.
type Store struct {
	db     *sql.DB
	logger logging.Logger
	ids    IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger logs translated queries at debug level.
func WithLogger(logger logging.Logger) Option {
	return func(s *Store) {
		s.logger = logger.Component("docstore")
	}
}

// Open creates or opens a store at path. ":memory:" gives a private
// in-memory store.
//
// SQLite only supports one writer at a time, and an in-memory database
// lives in its connection, so the pool is limited to one connection.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, logger: logging.Nop(), ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert stores doc in collection and returns its generated id. doc must
// encode to a JSON object.
func (s *Store) Insert(ctx context.Context, collection string, doc any) (string, error) {
	ids, err := s.InsertMany(ctx, collection, []any{doc})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// InsertMany stores docs in one transaction and returns their ids in order.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []any) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}

		ids[i] = s.ids.Generate()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, collection, body) VALUES (?, ?, ?)`,
			ids[i], collection, string(body),
		); err != nil {
			return nil, fmt.Errorf("insert document %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return ids, nil
}

// Find returns the documents of collection matching pred, ordered by sort
// and then by insertion order. A nil or empty pred matches everything.
func (s *Store) Find(ctx context.Context, collection string, pred bson.M, sort bson.D) ([]Document, error) {
	where, params, err := Translate(pred)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	orderBy, orderParams, err := translateSort(sort)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}

	query := "SELECT id, body FROM documents WHERE collection = ? AND (" + where + ") ORDER BY " + orderBy
	args := append([]any{collection}, params...)
	args = append(args, orderParams...)

	s.logger.Debug().Str("sql", query).Int("params", len(args)).Msg("find")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var body string
		if err := rows.Scan(&doc.ID, &body); err != nil {
			return nil, fmt.Errorf("find: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &doc.Body); err != nil {
			return nil, fmt.Errorf("find: decode %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents in collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// translateSort renders a sort document as an ORDER BY list ending with
// the insertion order tiebreaker.
func translateSort(sort bson.D) (string, []any, error) {
	var parts []string
	var params []any
	for _, e := range sort {
		dir, err := direction(e.Value)
		if err != nil {
			return "", nil, fmt.Errorf("sort %s: %w", e.Key, err)
		}
		parts = append(parts, "json_extract(body, ?) "+dir)
		params = append(params, jsonPath(e.Key))
	}
	parts = append(parts, "seq ASC")
	return strings.Join(parts, ", "), params, nil
}

func direction(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return directionOf(int64(n))
	case int32:
		return directionOf(int64(n))
	case int64:
		return directionOf(n)
	case float64:
		return directionOf(int64(n))
	default:
		return "", fmt.Errorf("%w: sort direction %v", ErrUnsupported, v)
	}
}

func directionOf(n int64) (string, error) {
	switch n {
	case 1:
		return "ASC", nil
	case -1:
		return "DESC", nil
	default:
		return "", fmt.Errorf("%w: sort direction %d", ErrUnsupported, n)
	}
}
