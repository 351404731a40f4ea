// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the library configuration
type Config struct {
	// Wayland connection defaults
	Wayland WaylandConfig `mapstructure:"wayland"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// WaylandConfig contains the defaults used when a caller does not name a server
type WaylandConfig struct {
	Display          string        `mapstructure:"display"`           // Socket name, empty means $WAYLAND_DISPLAY
	RuntimeDir       string        `mapstructure:"runtime_dir"`       // Empty means $XDG_RUNTIME_DIR
	RoundtripTimeout time.Duration `mapstructure:"roundtrip_timeout"` // Zero disables the timeout
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	LogLevel string `mapstructure:"log_level"` // Override GWL_LOG_LEVEL / LOG_LEVEL env vars
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Wayland: WaylandConfig{
			Display:          "",
			RuntimeDir:       "",
			RoundtripTimeout: 0,
		},
		Logging: LoggingConfig{
			LogLevel: "",
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("gwayland")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			viper.AddConfigPath(filepath.Join(xdg, "gwayland"))
		}
		if home := os.Getenv("HOME"); home != "" {
			viper.AddConfigPath(filepath.Join(home, ".config", "gwayland"))
		}
		viper.AddConfigPath(".") // Current directory (lowest priority)
	}

	viper.SetDefault("wayland.display", DefaultConfig.Wayland.Display)
	viper.SetDefault("wayland.runtime_dir", DefaultConfig.Wayland.RuntimeDir)
	viper.SetDefault("wayland.roundtrip_timeout", DefaultConfig.Wayland.RoundtripTimeout)

	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	cfg = c

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		return &DefaultConfig
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// GetConfigPath returns the path of the config file in use, or the
// location a user config would be read from.
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gwayland", "gwayland.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "gwayland.toml"
	}
	return filepath.Join(home, ".config", "gwayland", "gwayland.toml")
}

// SocketName returns the configured display name, falling back to
// $WAYLAND_DISPLAY. It may return the empty string.
func SocketName() string {
	if name := Get().Wayland.Display; name != "" {
		return name
	}
	return os.Getenv("WAYLAND_DISPLAY")
}

// RuntimeDir returns the configured runtime directory, falling back to
// $XDG_RUNTIME_DIR. It may return the empty string.
func RuntimeDir() string {
	if dir := Get().Wayland.RuntimeDir; dir != "" {
		return dir
	}
	return os.Getenv("XDG_RUNTIME_DIR")
}
