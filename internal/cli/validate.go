package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shapeql/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Entity string
	Doc    string
	Update bool
}

// ValidationResult holds document validation results.
type ValidationResult struct {
	Valid      bool               `json:"valid"`
	Entity     string             `json:"entity"`
	Mode       string             `json:"mode"` // "create" or "update"
	Violations []schema.Violation `json:"violations,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [layout-dir]",
		Short: "Validate a document against an entity",
		Long: `Validate a JSON or YAML document against an entity's creation rules,
or with --update against its update rules, where every field may be left
out.

The document is read from --doc, or from stdin when --doc is "-".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Entity, "entity", "e", "", "entity to validate against (required)")
	cmd.Flags().StringVarP(&opts.Doc, "doc", "d", "", "document file, - for stdin (required)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "validate as a partial update")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("doc")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := loadEntities(opts.RootOptions, args, formatter, LoadModeFailFast)
	if err != nil {
		return err
	}
	rec, err := pickEntity(loaded, opts.Entity, formatter)
	if err != nil {
		return err
	}

	doc, err := readDocument(opts.Doc, cmd.InOrStdin())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeBadInput, err.Error(), nil)
	}

	result := ValidationResult{Entity: rec.Name(), Mode: "create"}
	validate := rec.ValidateCreate
	if opts.Update {
		result.Mode = "update"
		validate = rec.ValidateUpdate
	}

	formatter.VerboseLog("Validating %s against %s (%s)", opts.Doc, rec.Name(), result.Mode)
	logger := opts.logger()
	logger.Debug().Str("entity", rec.Name()).Str("mode", result.Mode).Msg("validating document")

	if err := validate(doc); err != nil {
		var invalid *schema.ValidationError
		if !errors.As(err, &invalid) {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		result.Violations = invalid.Violations
		return outputViolations(formatter, result)
	}

	result.Valid = true
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ valid %s document (%s)\n", result.Entity, result.Mode)
	return nil
}

func outputViolations(formatter *OutputFormatter, result ValidationResult) error {
	message := fmt.Sprintf("invalid %s document (%s): %d violation(s)", result.Entity, result.Mode, len(result.Violations))
	if err := formatter.Failure(ErrCodeInvalidDocument, message, result); err != nil {
		return err
	}

	if !formatter.IsJSON() {
		fmt.Fprintln(formatter.Writer)
		for _, v := range result.Violations {
			path := v.Path
			if path == "" {
				path = "(document)"
			}
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", path, v.Message)
		}
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, message)
}

// readDocument decodes a JSON or YAML document. Files ending in .yaml or
// .yml are YAML; everything else, stdin included, is JSON.
func readDocument(path string, stdin io.Reader) (any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	return doc, nil
}
