package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/roach88/shapeql/internal/logging"
)

// DefaultConfigFile is read from the working directory when --config is
// not given. Its absence is not an error.
const DefaultConfigFile = "shapeql.yaml"

// EnvPrefix marks environment variables that override the config file,
// e.g. SHAPEQL_LOG_LEVEL for log_level.
const EnvPrefix = "SHAPEQL_"

// EnvLogLevel overrides the configured log level.
const EnvLogLevel = EnvPrefix + "LOG_LEVEL"

// Config is the effective configuration: defaults, then the optional
// config file, then SHAPEQL_* variables, then flags set on the command
// line.
//
//	layouts: ./layouts
//	format: json
//	log_level: debug
//	log_format: text
type Config struct {
	Layouts   string `koanf:"layouts"`
	Format    string `koanf:"format"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

// configFlags maps config keys to the flags that override them. Keys
// without a flag can only be set by the file or the environment.
var configFlags = map[string]string{
	"layouts":    "",
	"format":     "format",
	"log_level":  "log-level",
	"log_format": "log-format",
}

func configDefaults() map[string]any {
	return map[string]any{
		"format":     "text",
		"log_level":  logging.LevelWarn,
		"log_format": logging.FormatText,
	}
}

// LoadConfig builds the effective configuration. An empty path reads
// DefaultConfigFile if it exists. flags may be nil; otherwise only flags
// changed on the command line take part.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(configDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	fileK, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if fileK != nil {
		if err := k.Merge(fileK); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, flagKey(flags)), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readConfigFile loads the config file alone so its keys can be checked.
// It returns nil when no file is used.
func readConfigFile(path string) (*koanf.Koanf, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%s: parse config: %w", path, err)
	}

	var unknown []string
	for _, key := range k.Keys() {
		if _, ok := configFlags[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%s: unknown config key(s): %s", path, strings.Join(unknown, ", "))
	}
	return k, nil
}

// envKey maps SHAPEQL_LOG_LEVEL to log_level. Unknown and empty
// variables are skipped.
func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	if _, ok := configFlags[key]; !ok || value == "" {
		return "", nil
	}
	return key, value
}

// flagKey maps changed config flags to their keys.
func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	byFlag := make(map[string]string, len(configFlags))
	for key, name := range configFlags {
		if name != "" {
			byFlag[name] = key
		}
	}
	return func(f *pflag.Flag) (string, any) {
		key, ok := byFlag[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}
}

// Validate checks the values that have a fixed set of choices.
func (c *Config) Validate() error {
	if c.Format != "" && !isValidFormat(c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	switch c.LogFormat {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid log_format %q: must be %s or %s", c.LogFormat, logging.FormatText, logging.FormatJSON)
	}
	return nil
}
