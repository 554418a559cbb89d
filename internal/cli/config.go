// Config file loading for the spellbook CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/spellbook/internal/config"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir     = "data_dir"
	cfgKeyDBName      = "db_name"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFormat   = "log_format"
	cfgKeyBusyTimeout = "busy_timeout_ms"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Spellbook CLI configuration.
# SPELLBOOK_* environment variables override these values. data_dir is the
# exception: it overrides SPELLBOOK_DATA_DIR, and --data-dir overrides both.

# Data directory holding the database (default: platform data dir)
# data_dir:

# Database file name inside data_dir
db_name: spellbook.db

# debug, info, warn, or error
log_level: warn

# text or json
log_format: text
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. A missing config.yaml
// is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, config.DefaultLogLevel)
	v.SetDefault(cfgKeyLogFormat, config.LogFormatText)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in configDir.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// fileSettings returns the settings recorded in the config file.
func fileSettings(v *viper.Viper) config.Settings {
	return config.Settings{
		DataDir:       v.GetString(cfgKeyDataDir),
		DBName:        v.GetString(cfgKeyDBName),
		LogLevel:      v.GetString(cfgKeyLogLevel),
		LogFormat:     v.GetString(cfgKeyLogFormat),
		BusyTimeoutMS: v.GetInt(cfgKeyBusyTimeout),
	}
}
