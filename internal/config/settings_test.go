package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), s)
}

func TestLoadSettings_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rxh-settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"
log_format = "console"
`), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "debug", s.LogLevel)
	require.Equal(t, "console", s.LogFormat)
	require.Equal(t, "rxh.toml", s.ConfigPath) // untouched by the file
}

func TestLoadSettings_MissingFileIsNotAnError(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, DefaultSettings(), s)
}

func TestLoadSettings_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("RXH_LOG_LEVEL", "warn")
	t.Setenv("RXH_CONFIG", "/etc/rxh/rxh.toml")

	s, err := LoadSettings("")
	require.NoError(t, err)
	require.Equal(t, "warn", s.LogLevel)
	require.Equal(t, "/etc/rxh/rxh.toml", s.ConfigPath)
	require.Equal(t, "json", s.LogFormat) // untouched
}
