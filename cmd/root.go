package cmd

import (
	"github.com/bnema/gwayland/internal/config"
	"github.com/bnema/gwayland/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	configPath  string
	logLevel    string
	displayName string

	rootCmd = &cobra.Command{
		Use:   "gwayland",
		Short: "gwayland - inspect a Wayland compositor",
		Long: `gwayland connects to a Wayland compositor and reports the globals it
advertises, either once or continuously as they come and go.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/gwayland/gwayland.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&displayName, "display", "d", "", "display socket name or path (default $WAYLAND_DISPLAY)")

	rootCmd.AddCommand(globalsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration before any subcommand runs. The flag wins
// over the configured log level.
func setup(cmd *cobra.Command, args []string) error {
	if configPath != "" {
		config.SetConfigPath(configPath)
	}
	if err := config.Init(); err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = config.Get().Logging.LogLevel
	}
	if level != "" {
		logger.SetLevel(level)
	}
	return nil
}
