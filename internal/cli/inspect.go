package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/compiler"
	"github.com/roach88/shapeql/internal/filter"
	"github.com/roach88/shapeql/internal/schema"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Entity string
}

// EntityInfo is the JSON view of one compiled entity.
type EntityInfo struct {
	Name      string      `json:"name"`
	Args      bool        `json:"args,omitempty"`
	Fields    []FieldInfo `json:"fields"`
	SortPaths []string    `json:"sort_paths"`
	Filter    string      `json:"filter"`
	Grammar   string      `json:"grammar"`
}

// FieldInfo lists the wire types of one field. Computed fields have no
// create or update type.
type FieldInfo struct {
	Name   string `json:"name"`
	Read   string `json:"read"`
	Create string `json:"create,omitempty"`
	Update string `json:"update,omitempty"`
}

// LayoutCheckResult holds layout check failures.
type LayoutCheckResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [layout-dir]",
		Short: "Show compiled entities, their shapes and filter grammars",
		Long: `Compile the entity layouts in a directory and show, for each entity,
the read, create and update type of every field, its sort paths and the
filter grammar generated for it.

Layouts that compile but cannot behave (bad patterns, inverted bounds,
conflicting type names) are reported as failures.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "only inspect this entity")

	return cmd
}

func runInspect(opts *InspectOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadEntities(opts.RootOptions, args, formatter, LoadModeCollectAll)
	if err != nil {
		return err
	}

	records := loaded.Entities
	if opts.Entity != "" {
		rec, err := pickEntity(loaded, opts.Entity, formatter)
		if err != nil {
			return err
		}
		records = []*schema.Record{rec}
	}

	var problems []compiler.ValidationError
	for _, rec := range records {
		formatter.VerboseLog("Checking entity: %s", rec.Name())
		problems = append(problems, compiler.Validate(rec)...)
	}
	if len(problems) > 0 {
		return outputLayoutProblems(formatter, problems)
	}

	if formatter.IsJSON() {
		infos := make([]EntityInfo, len(records))
		for i, rec := range records {
			infos[i] = describeEntity(rec)
		}
		return formatter.Success(infos)
	}

	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		writeEntity(formatter.Writer, rec)
	}
	return nil
}

func describeEntity(rec *schema.Record) EntityInfo {
	grammar := filter.ForEntity(rec)
	info := EntityInfo{
		Name:      rec.Name(),
		Args:      rec.IsArgs(),
		SortPaths: rec.SortPaths(),
		Filter:    grammar.Name,
		Grammar:   grammar.Render(),
	}
	if info.SortPaths == nil {
		info.SortPaths = []string{}
	}

	create, update := rec.CreateType(), rec.UpdateType()
	for _, f := range rec.ReadType().Fields {
		field := FieldInfo{Name: f.Name, Read: f.Type.String()}
		if t, ok := create.Field(f.Name); ok {
			field.Create = t.String()
		}
		if t, ok := update.Field(f.Name); ok {
			field.Update = t.String()
		}
		info.Fields = append(info.Fields, field)
	}
	return info
}

// writeEntity prints one entity as text:
//
//	entity Product
//	  read:   sku: String!, price: Float!
//	  create: sku: String!, price: Float!
//	  update: sku: String, price: Float
//	  sort:   sku
//
// followed by the rendered filter grammar.
func writeEntity(w io.Writer, rec *schema.Record) {
	header := "entity " + rec.Name()
	if rec.IsArgs() {
		header += " (args)"
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "  read:   %s\n", fieldList(rec.ReadType()))
	fmt.Fprintf(w, "  create: %s\n", fieldList(rec.CreateType()))
	fmt.Fprintf(w, "  update: %s\n", fieldList(rec.UpdateType()))

	sortPaths := "-"
	if paths := rec.SortPaths(); len(paths) > 0 {
		sortPaths = strings.Join(paths, ", ")
	}
	fmt.Fprintf(w, "  sort:   %s\n", sortPaths)
	fmt.Fprintln(w)
	fmt.Fprint(w, filter.ForEntity(rec).Render())
}

func fieldList(t *schema.Type) string {
	if len(t.Fields) == 0 {
		return "-"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return strings.Join(parts, ", ")
}

// outputLayoutProblems reports compiled layouts that fail the layout
// checks.
func outputLayoutProblems(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	message := fmt.Sprintf("layout check failed with %d error(s)", len(errs))

	if formatter.IsJSON() {
		if err := formatter.Failure(errs[0].Code, message, LayoutCheckResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, message)
	}

	fmt.Fprintln(formatter.Writer, "✗ Layout check failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, message)
}

// loadEntities loads the layouts for a command and reports load errors.
// With LoadModeCollectAll every compile error is printed.
func loadEntities(opts *RootOptions, args []string, formatter *OutputFormatter, mode LoadMode) (*LoadResult, error) {
	dir, err := opts.layoutDir(args)
	if err != nil {
		return nil, formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	result, loadErrors := LoadLayouts(dir, mode, opts.logger())
	if len(loadErrors) > 0 {
		var loadErr *LoadError
		if !errors.As(loadErrors[0], &loadErr) {
			return nil, formatter.fail(ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
		}

		if result == nil || len(loadErrors) == 1 {
			return nil, formatter.fail(ExitCommandError, loadErr.Code, loadErr.Error(), nil)
		}

		messages := make([]string, len(loadErrors))
		for i, e := range loadErrors {
			messages[i] = e.Error()
		}
		return nil, formatter.fail(ExitCommandError, loadErr.Code,
			fmt.Sprintf("%d layout error(s): %s", len(loadErrors), strings.Join(messages, "; ")), messages)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)
	return result, nil
}

// pickEntity finds the named entity or fails with the known names.
func pickEntity(loaded *LoadResult, name string, formatter *OutputFormatter) (*schema.Record, error) {
	if rec, ok := loaded.Entity(name); ok {
		return rec, nil
	}
	names := loaded.EntityNames()
	return nil, formatter.fail(ExitCommandError, ErrCodeUnknownEntity,
		fmt.Sprintf("unknown entity %q (known: %s)", name, strings.Join(names, ", ")), names)
}
