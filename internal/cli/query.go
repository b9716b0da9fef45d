package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/docstore"
	"github.com/roach88/shapeql/internal/filter"
)

// maxLineSize bounds one JSONL document.
const maxLineSize = 1 << 20

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Entity   string
	Data     string
	Filter   string
	Sort     string
	DB       string
	Validate bool
}

// QueryResult holds the documents a query matched.
type QueryResult struct {
	Entity    string           `json:"entity"`
	Loaded    int              `json:"loaded"`
	Count     int              `json:"count"`
	Documents []map[string]any `json:"documents"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query [layout-dir]",
		Short: "Run a filter against documents in the reference store",
		Long: `Load documents from a JSON Lines file into the SQLite reference store,
compile a filter and sort list for the entity and print the documents that
match, in order.

The store is in memory unless --db names a database file; documents are
kept in a collection named after the entity.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "entity to query (required)")
	cmd.Flags().StringVar(&opts.Data, "data", "", "JSON Lines file of documents to load")
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "filter expression, or @file")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", "comma separated sort paths, - for descending")
	cmd.Flags().StringVar(&opts.DB, "db", ":memory:", "SQLite database path")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "validate loaded documents against the creation rules")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.logger()

	loaded, err := loadEntities(opts.RootOptions, args, formatter, LoadModeFailFast)
	if err != nil {
		return err
	}
	rec, err := pickEntity(loaded, opts.Entity, formatter)
	if err != nil {
		return err
	}

	pred, order, err := compileQuery(rec, filter.ForEntity(rec), opts.Filter, opts.Sort, formatter)
	if err != nil {
		return err
	}

	var (
		docs  []any
		lines []int
	)
	if opts.Data != "" {
		docs, lines, err = readJSONLines(opts.Data)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeBadInput, err.Error(), nil)
		}
	}

	if opts.Validate {
		for i, doc := range docs {
			if err := rec.ValidateCreate(doc); err != nil {
				return formatter.fail(ExitFailure, ErrCodeInvalidDocument,
					fmt.Sprintf("%s line %d: %v", opts.Data, lines[i], err), nil)
			}
		}
	}

	store, err := docstore.Open(opts.DB, docstore.WithLogger(logger))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer store.Close()

	ctx := cmd.Context()
	if len(docs) > 0 {
		if _, err := store.InsertMany(ctx, rec.Name(), docs); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
	}
	formatter.VerboseLog("Loaded %d document(s) into %s", len(docs), rec.Name())

	found, err := store.Find(ctx, rec.Name(), pred, order)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	logger.Info().Str("entity", rec.Name()).Int("matched", len(found)).Msg("query")

	result := QueryResult{
		Entity:    rec.Name(),
		Loaded:    len(docs),
		Count:     len(found),
		Documents: make([]map[string]any, len(found)),
	}
	for i, doc := range found {
		result.Documents[i] = doc.Body
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	enc := json.NewEncoder(formatter.Writer)
	for _, doc := range result.Documents {
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	formatter.VerboseLog("%d of %d document(s) matched", result.Count, result.Loaded)
	return nil
}

// readJSONLines decodes one JSON document per non-blank line. lines holds
// the 1-based line number of each document.
func readJSONLines(path string) ([]any, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read data: %w", err)
	}
	defer f.Close()
	return decodeJSONLines(f, path)
}

func decodeJSONLines(r io.Reader, name string) ([]any, []int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		docs  []any
		lines []int
	)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()
		var doc map[string]any
		if err := dec.Decode(&doc); err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		docs = append(docs, doc)
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", name, err)
	}
	return docs, lines, nil
}
