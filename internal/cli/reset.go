package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewResetCommand wipes the local store. Unsynced records are lost, so it
// refuses to run without --yes.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var yes, queueOnly bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all local attendance data, cached events, and queued syncs",
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
			if !yes {
				return fmt.Errorf("refusing to reset: %d unsynced records, %d queued items (use --yes to confirm)",
					status.UnsyncedAttendance, status.PendingSync)
			}

			if queueOnly {
				if err := a.sync.ClearSyncQueue(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d queued sync items\n", status.PendingSync)
				return nil
			}

			if err := a.store.ClearAllData(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Local data cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	cmd.Flags().BoolVar(&queueOnly, "queue", false, "drop only the pending sync queue, keeping records and events")
	return cmd
}
