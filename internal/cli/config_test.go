package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shapeql/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func configFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("format", "text", "")
	flags.String("log-level", logging.LevelWarn, "")
	flags.String("log-format", logging.FormatText, "")
	flags.String("entity", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func clearConfigEnv(t *testing.T) {
	for _, key := range []string{"LAYOUTS", "FORMAT", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "layouts: ./layouts\nformat: json\nlog_level: debug\nlog_format: json\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{Layouts: "./layouts", Format: "json", LogLevel: "debug", LogFormat: "json"}, cfg)

	empty, err := LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{Format: "text", LogLevel: logging.LevelWarn, LogFormat: logging.FormatText}, empty)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearConfigEnv(t)
	testCases := map[string]string{
		"unknown key":        "layout: ./layouts\n",
		"nested unknown key": "format:\n  name: json\n",
		"invalid format":     "format: xml\n",
		"invalid log level":  "log_level: loud\n",
		"invalid log format": "log_format: logfmt\n",
		"not a mapping":      "- a\n",
		"bad yaml":           "format: [\n",
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, input)
			_, err := LoadConfig(path, nil)
			assert.Error(t, err)
		})
	}

	path := writeConfig(t, "layout: x\n")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Contains(t, err.Error(), "layout")
}

func TestLoadConfig_DefaultFile(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err, "a missing default file is not an error")
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.Layouts)

	_, err = LoadConfig("missing.yaml", nil)
	assert.Error(t, err, "a missing explicit file is an error")

	require.NoError(t, os.WriteFile(DefaultConfigFile, []byte("format: json\n"), 0644))
	cfg, err = LoadConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Format)
}

func TestLoadConfig_Precedence(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "layouts: ./file\nformat: json\nlog_level: error\nlog_format: json\n")

	t.Setenv(EnvPrefix+"LAYOUTS", "./env")
	t.Setenv(EnvLogLevel, "info")
	t.Setenv(EnvPrefix+"UNRELATED", "x")

	cfg, err := LoadConfig(path, configFlagSet(t, "--log-level", "debug", "--entity", "User"))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Layouts:   "./env",
		Format:    "json",
		LogLevel:  "debug",
		LogFormat: "json",
	}, cfg, "flags over env over file")

	cfg, err = LoadConfig(path, configFlagSet(t))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel, "unchanged flags leave the env value")
	assert.Equal(t, "json", cfg.Format, "unchanged flags leave the file value")
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	clearConfigEnv(t)
	chdir(t, t.TempDir())

	_, err := LoadConfig("", configFlagSet(t, "--format", "xml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestEnvKey(t *testing.T) {
	key, value := envKey("SHAPEQL_LOG_FORMAT", "json")
	assert.Equal(t, "log_format", key)
	assert.Equal(t, "json", value)

	key, _ = envKey("SHAPEQL_LOG_FORMAT", "")
	assert.Empty(t, key)

	key, _ = envKey("SHAPEQL_COLOR", "1")
	assert.Empty(t, key)
}

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
