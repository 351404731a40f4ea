package cmd

import (
	"fmt"

	"github.com/bnema/gwayland/internal/config"
	"github.com/bnema/gwayland/internal/ui"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gwayland configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		fmt.Fprintln(out, ui.FormatHeader("CONFIG", config.GetConfigPath()))

		fmt.Fprintln(out, "[wayland]")
		fmt.Fprintln(out, ui.FormatKeyValue("display", orDefault(cfg.Wayland.Display, "$WAYLAND_DISPLAY")))
		fmt.Fprintln(out, ui.FormatKeyValue("runtime_dir", orDefault(cfg.Wayland.RuntimeDir, "$XDG_RUNTIME_DIR")))
		fmt.Fprintln(out, ui.FormatKeyValue("roundtrip_timeout", cfg.Wayland.RoundtripTimeout))
		fmt.Fprintln(out, ui.FormatKeyValue("resolved socket", orDefault(config.SocketName(), "wayland-0")))

		fmt.Fprintln(out, "\n[logging]")
		fmt.Fprintln(out, ui.FormatKeyValue("log_level", orDefault(cfg.Logging.LogLevel, "$GWL_LOG_LEVEL")))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigPath())
	},
}

func orDefault(value, fallback string) string {
	if value == "" {
		return ui.SubtleStyle.Render(fallback)
	}
	return value
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
