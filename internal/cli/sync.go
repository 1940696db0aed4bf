package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewSyncCommand forces one sync pass.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.conn.Online() {
				return fmt.Errorf("server unreachable, nothing synced")
			}
			if err := a.sync.ForceSync(ctx); err != nil {
				return err
			}

			status, err := a.sync.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sync complete: %d pending, %d unsynced\n",
				status.PendingSync, status.UnsyncedAttendance)
			return nil
		},
	}
}

// NewStatusCommand prints storage and sync state.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local storage and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.sync.Status(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
}

// NewRunCommand keeps the client resident: the connectivity probe and the
// sync engine's trigger loop run until interrupted. Reconnects and the
// periodic timer drive sync passes in the background.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background sync loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if a.probe != nil {
				go a.probe.Run(ctx)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Sync loop running, Ctrl-C to stop")
			a.sync.Run(ctx)

			if ctx.Err() == context.Canceled {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			}
			return nil
		},
	}
}
