package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shapeql/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogLevel   string
	LogFormat  string

	// Config and Logger are resolved before a subcommand runs.
	Config *Config
	Logger *logging.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the shapeql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shapeql",
		Short: "shapeql - entity shapes, validation and filters",
		Long: `Describe entities once as field layouts and derive their read, create
and update shapes, document validation, sort paths and filter grammars.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./"+DefaultConfigFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", logging.LevelWarn, "log level (debug|info|warn|error|off)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", logging.FormatText, "log format (text|json)")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// resolve builds the effective configuration and logger. A flag set on
// the command line wins, then the environment, then the config file.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := LoadConfig(o.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "loading config", err)
	}
	o.Config = cfg
	o.Format = cfg.Format
	o.LogLevel = cfg.LogLevel
	o.LogFormat = cfg.LogFormat

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	logger, err := logging.NewWithWriter(o.LogLevel, o.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return WrapExitError(ExitCommandError, "configuring logging", err)
	}
	o.Logger = &logger
	return nil
}

// logger returns the resolved logger, or a disabled one when the command
// runs without the root command.
func (o *RootOptions) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Nop()
	}
	return *o.Logger
}

// layoutDir picks the layout directory from the arguments, falling back
// to the configured one.
func (o *RootOptions) layoutDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if o.Config != nil && o.Config.Layouts != "" {
		return o.Config.Layouts, nil
	}
	return "", NewExitError(ExitCommandError, "no layout directory: pass one or set layouts in "+DefaultConfigFile)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
