package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/gwayland/eventloop"
	"github.com/bnema/gwayland/gwl"
	"github.com/bnema/gwayland/internal/logger"
	"github.com/bnema/gwayland/internal/ui"
	"github.com/spf13/cobra"
)

var watchDuration time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print globals as they are added and removed",
	Long: `Attach the connection to an event loop and print every global
announcement until interrupted, the duration elapses or the compositor goes
away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if watchDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchDuration)
			defer cancel()
		}

		loop, err := eventloop.New()
		if err != nil {
			return err
		}
		defer loop.Close()

		conn, err := gwl.ConnectWithLoop(loop, displayName)
		if err != nil {
			return err
		}
		defer conn.Close()

		if !conn.Attached() {
			return errors.New("connection could not be attached to the event loop")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.FormatHeader("GLOBALS", displayLabel()))

		conn.Registry().AddListener(gwl.ListenerFuncs{
			Added: func(g gwl.Global) {
				fmt.Fprintln(out, ui.FormatGlobalAdded(g.Name, g.Interface, g.Version))
			},
			Removed: func(name uint32) {
				fmt.Fprintln(out, ui.FormatGlobalRemoved(name))
			},
		})

		err = loop.Run(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("watch stopped", "reason", err)
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDuration, "duration", 0, "stop after this long (0 runs until interrupted)")
}
