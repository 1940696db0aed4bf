package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvkrishna/attendsync/internal/qr"
)

// NewScanCommand records attendance from a decoded QR payload. The payload is
// the raw JSON a scanner produced: passed as an argument, read from a file
// with @path, or piped on stdin with "-".
func NewScanCommand(opts *RootOptions) *cobra.Command {
	var userID, userName string

	cmd := &cobra.Command{
		Use:   "scan [payload]",
		Short: "Record attendance from a scanned QR payload",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPayload(args)
			if err != nil {
				return err
			}

			payload, err := qr.Parse(raw)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.rec.ValidateScan(ctx, payload, userID); err != nil {
				return err
			}

			result, err := a.rec.RecordAttendance(ctx, payload, userID, userName)
			if err != nil {
				return fmt.Errorf("failed to record attendance: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s (local id %d)\n", result.Message, result.LocalID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "attendee user id")
	cmd.Flags().StringVar(&userName, "name", "", "attendee display name")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")

	return cmd
}

func readPayload(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	if strings.HasPrefix(args[0], "@") {
		return os.ReadFile(args[0][1:])
	}
	return []byte(args[0]), nil
}
