package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names the environment variable that overrides the
// default rxh.toml path.
const ConfigPathEnvVar = "RXH_CONFIG"

// Settings are the process-level knobs the TOML domain grammar was never
// meant to hold: how to log, and where to find the domain config file
// itself. They're loaded separately from Config (see Load in this
// package) through koanf's layered file+env providers, the same pattern
// the teacher's own configuration loader uses, because these settings —
// unlike `[[server]]` tables — fit a generic key/value decode just fine.
type Settings struct {
	LogLevel   string `koanf:"log_level"`
	LogFormat  string `koanf:"log_format"`
	ConfigPath string `koanf:"config_path"`
}

// DefaultSettings returns the settings used when no settings file and no
// environment overrides are present.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:   "info",
		LogFormat:  "json",
		ConfigPath: "rxh.toml",
	}
}

var envKeyToSettingsKey = map[string]string{
	"RXH_LOG_LEVEL":  "log_level",
	"RXH_LOG_FORMAT": "log_format",
	"RXH_CONFIG":     "config_path",
}

// LoadSettings layers defaults, an optional TOML settings file at
// settingsPath (skipped if it doesn't exist), and a small set of
// environment variables (RXH_LOG_LEVEL, RXH_LOG_FORMAT, RXH_CONFIG) —
// later layers win. Domain configuration (servers/patterns/backends) is
// never loaded through this layer; see Load in this package.
func LoadSettings(settingsPath string) (Settings, error) {
	k := koanf.New(".")

	defaults := DefaultSettings()
	if err := k.Set("log_level", defaults.LogLevel); err != nil {
		return Settings{}, err
	}
	if err := k.Set("log_format", defaults.LogFormat); err != nil {
		return Settings{}, err
	}
	if err := k.Set("config_path", defaults.ConfigPath); err != nil {
		return Settings{}, err
	}

	if settingsPath != "" {
		if _, err := os.Stat(settingsPath); err == nil {
			if err := k.Load(file.Provider(settingsPath), toml.Parser()); err != nil {
				return Settings{}, err
			}
		}
	}

	envProvider := env.ProviderWithValue("RXH_", ".", func(key, value string) (string, interface{}) {
		mapped, ok := envKeyToSettingsKey[strings.ToUpper(key)]
		if !ok {
			return "", nil
		}
		return mapped, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
