package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvkrishna/attendsync/internal/models"
)

// NewEventsCommand groups organizer-side event operations.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List and manage events",
	}

	cmd.AddCommand(newEventsListCommand(opts))
	cmd.AddCommand(newEventsShowCommand(opts))
	cmd.AddCommand(newEventsCreateCommand(opts))
	cmd.AddCommand(newEventsUpdateCommand(opts))
	cmd.AddCommand(newEventsDeactivateCommand(opts))
	cmd.AddCommand(newEventsQRCommand(opts))
	cmd.AddCommand(newEventsAttendanceCommand(opts))

	return cmd
}

func newEventsListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List events, refreshing the local cache when online",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			events, err := a.sync.DownloadEvents(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, events)
		},
	}
}

func newEventsShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event, falling back to the local cache when offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			event, err := a.api.GetEvent(ctx, args[0])
			if err != nil {
				event, err = a.store.GetEvent(ctx, args[0])
				if err != nil {
					return err
				}
				if event == nil {
					return fmt.Errorf("event %s not found", args[0])
				}
			}

			return printJSON(cmd, map[string]any{
				"event": event,
				"live":  event.IsCurrentlyActive(time.Now()),
			})
		},
	}
}

func newEventsCreateCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an event on the server from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := readEventFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			created, err := a.api.PostEvent(ctx, event)
			if err != nil {
				return err
			}
			if err := a.store.SaveEvent(ctx, created); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Event %s created\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "event JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newEventsUpdateCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Update an event on the server from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := readEventFile(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			updated, err := a.api.UpdateEvent(ctx, args[0], event)
			if err != nil {
				return err
			}
			if err := a.store.SaveEvent(ctx, updated); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Event %s updated\n", updated.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "event JSON file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newEventsDeactivateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <event-id>",
		Short: "Soft-delete an event so it stops accepting attendance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.api.DeactivateEvent(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Event %s deactivated\n", args[0])
			return nil
		},
	}
}

func newEventsQRCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "qr <event-id>",
		Short: "Print a fresh QR payload for a live event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.api.EventQR(ctx, args[0])
			if err != nil {
				return err
			}

			payload, err := resp.QRData.Encode()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
}

func newEventsAttendanceCommand(opts *RootOptions) *cobra.Command {
	var limit, offset int
	var localOnly bool

	cmd := &cobra.Command{
		Use:   "attendance <event-id>",
		Short: "List who attended an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if localOnly {
				records, err := a.rec.GetEventAttendance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, records)
			}

			list, err := a.api.ListEventAttendance(ctx, args[0], limit, offset)
			if err != nil {
				return err
			}
			return printJSON(cmd, list)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "max records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&localOnly, "local", false, "read only this machine's records")
	return cmd
}

func readEventFile(path string) (*models.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var event models.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("invalid event JSON: %w", err)
	}
	return &event, nil
}
