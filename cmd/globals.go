package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bnema/gwayland/gwl"
	"github.com/bnema/gwayland/internal/ui"
	"github.com/spf13/cobra"
)

var plainOutput bool

var globalsCmd = &cobra.Command{
	Use:   "globals [interface]",
	Short: "List the globals advertised by the compositor",
	Long: `Connect, wait for the initial registry announcements and print every
global. With an interface argument only the matching globals are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := gwl.Connect(displayName)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := conn.RoundTrip(); err != nil {
			return fmt.Errorf("failed to receive globals: %w", err)
		}

		globals := conn.Registry().Globals()
		if len(args) == 1 {
			globals = conn.Registry().Find(args[0])
			if len(globals) == 0 {
				return fmt.Errorf("compositor does not advertise %s", args[0])
			}
		}

		out := cmd.OutOrStdout()
		if plainOutput {
			return writePlain(out, globals)
		}

		t := ui.NewTable("NAME", "INTERFACE", "VERSION")
		for _, g := range globals {
			t.Row(fmt.Sprintf("%d", g.Name), g.Interface, fmt.Sprintf("%d", g.Version))
		}

		fmt.Fprintln(out, ui.FormatHeader("GLOBALS", displayLabel()))
		fmt.Fprintln(out, t.String())
		fmt.Fprintln(out, ui.SubtleStyle.Render(fmt.Sprintf("Total: %d global(s)", len(globals))))
		return nil
	},
}

func writePlain(out io.Writer, globals []gwl.Global) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, g := range globals {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d\n", g.Name, g.Interface, g.Version); err != nil {
			return err
		}
	}
	return w.Flush()
}

func displayLabel() string {
	if displayName != "" {
		return displayName
	}
	return "default display"
}

func init() {
	globalsCmd.Flags().BoolVar(&plainOutput, "plain", false, "print tab separated rows without styling")
}
