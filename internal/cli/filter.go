package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/shapeql/internal/filter"
	"github.com/roach88/shapeql/internal/schema"
	"github.com/roach88/shapeql/internal/sorting"
)

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Entity string
	Filter string
	Sort   string
}

// FilterResult is a compiled filter.
type FilterResult struct {
	Entity    string    `json:"entity"`
	Grammar   string    `json:"grammar"`
	Predicate bson.M    `json:"predicate"`
	Sort      []SortKey `json:"sort,omitempty"`
}

// SortKey is one entry of a sort document.
type SortKey struct {
	Path      string `json:"path"`
	Direction int    `json:"direction"`
}

// FilterProblem is one way a filter expression fails its grammar.
type FilterProblem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter [layout-dir]",
		Short: "Compile a filter expression into a store predicate",
		Long: `Check a filter expression against an entity's filter grammar and print
the predicate tree it compiles to.

The expression is JSON or YAML, inline or read from a file with @path:

  shapeql filter ./layouts -e User -f '{"age": {"Gte": 18}}'
  shapeql filter ./layouts -e User -f @filter.yaml --sort -age,name`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "entity to filter (required)")
	cmd.Flags().StringVarP(&opts.Filter, "filter", "f", "", "filter expression, or @file")
	cmd.Flags().StringVarP(&opts.Sort, "sort", "s", "", "comma separated sort paths, - for descending")
	_ = cmd.MarkFlagRequired("entity")

	return cmd
}

func runFilter(opts *FilterOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadEntities(opts.RootOptions, args, formatter, LoadModeFailFast)
	if err != nil {
		return err
	}
	rec, err := pickEntity(loaded, opts.Entity, formatter)
	if err != nil {
		return err
	}

	grammar := filter.ForEntity(rec)
	pred, order, err := compileQuery(rec, grammar, opts.Filter, opts.Sort, formatter)
	if err != nil {
		return err
	}

	result := FilterResult{
		Entity:    rec.Name(),
		Grammar:   grammar.Name,
		Predicate: pred,
		Sort:      sortKeys(order),
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	data, err := json.MarshalIndent(result.Predicate, "", "  ")
	if err != nil {
		return WrapExitError(ExitFailure, "encoding predicate", err)
	}
	fmt.Fprintln(formatter.Writer, string(data))
	if len(result.Sort) > 0 {
		fmt.Fprintf(formatter.Writer, "sort: %s\n", formatSort(result.Sort))
	}
	return nil
}

// compileQuery parses and compiles a filter expression and sort list for
// rec. Every filter problem is reported, not only the first.
func compileQuery(rec *schema.Record, grammar *filter.Grammar, input, sortList string, formatter *OutputFormatter) (bson.M, bson.D, error) {
	expr, err := ParseExpression(input)
	if err != nil {
		return nil, nil, formatter.fail(ExitCommandError, ErrCodeBadInput, err.Error(), nil)
	}

	if err := filter.Check(grammar, expr); err != nil {
		return nil, nil, outputFilterProblems(formatter, err)
	}
	pred, err := filter.Compile(grammar, expr)
	if err != nil {
		return nil, nil, outputFilterProblems(formatter, err)
	}

	order, err := sorting.Parse(rec, sortList)
	if err != nil {
		return nil, nil, formatter.fail(ExitFailure, ErrCodeInvalidSort, err.Error(), rec.SortPaths())
	}
	return pred, order, nil
}

// ParseExpression reads a filter expression. A leading @ names a file.
// JSON is tried first, then YAML. An empty input is the empty filter.
func ParseExpression(input string) (filter.Expression, error) {
	data := []byte(input)
	if path, ok := strings.CutPrefix(input, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read filter: %w", err)
		}
	}

	expr, jsonErr := filter.ParseJSON(data)
	if jsonErr == nil {
		return expr, nil
	}
	expr, yamlErr := filter.ParseYAML(data)
	if yamlErr != nil {
		return nil, fmt.Errorf("filter is neither JSON (%v) nor YAML (%v)", jsonErr, yamlErr)
	}
	return expr, nil
}

func outputFilterProblems(formatter *OutputFormatter, err error) error {
	var problems []FilterProblem
	var list filter.Problems
	var single *filter.Error
	switch {
	case errors.As(err, &list):
		for _, p := range list {
			problems = append(problems, FilterProblem{Path: p.Path, Reason: p.Reason})
		}
	case errors.As(err, &single):
		problems = append(problems, FilterProblem{Path: single.Path, Reason: single.Reason})
	default:
		return formatter.fail(ExitFailure, ErrCodeInvalidFilter, err.Error(), nil)
	}

	message := fmt.Sprintf("filter rejected with %d problem(s)", len(problems))
	if err := formatter.Failure(ErrCodeInvalidFilter, message, problems); err != nil {
		return err
	}
	if !formatter.IsJSON() {
		for _, p := range problems {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", p.Path, p.Reason)
		}
	}
	return NewExitError(ExitFailure, message)
}

func sortKeys(order bson.D) []SortKey {
	if len(order) == 0 {
		return nil
	}
	keys := make([]SortKey, len(order))
	for i, e := range order {
		dir, _ := e.Value.(int)
		keys[i] = SortKey{Path: e.Key, Direction: dir}
	}
	return keys
}

func formatSort(keys []SortKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k.Direction == sorting.Descending {
			parts[i] = "-" + k.Path
		} else {
			parts[i] = k.Path
		}
	}
	return strings.Join(parts, ", ")
}
