package cli

import (
	"github.com/spf13/cobra"
)

// NewHistoryCommand prints a user's attendance, merged with the server's
// view when online.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	var userID string
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's attendance history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if localOnly {
				records, err := a.rec.GetAttendanceHistory(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd, records)
			}

			records, err := a.sync.DownloadAttendance(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "attendee user id")
	cmd.Flags().BoolVar(&localOnly, "local", false, "read only the local store")
	cmd.MarkFlagRequired("user")
	return cmd
}

// NewStatsCommand summarizes a user's attendance, locally by default or from
// the server with --remote.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	var userID string
	var remote bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show attendance statistics for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if remote {
				stats, err := a.api.UserStats(ctx, userID)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			}

			stats, err := a.rec.GetAttendanceStats(ctx, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "attendee user id")
	cmd.Flags().BoolVar(&remote, "remote", false, "query the server instead of the local store")
	cmd.MarkFlagRequired("user")
	return cmd
}
