// Package cli implements the attendctl command tree: the scanning client's
// interface to the local store, the recorder, and the sync engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvkrishna/attendsync/internal/client"
	"github.com/nvkrishna/attendsync/internal/config"
	"github.com/nvkrishna/attendsync/internal/connectivity"
	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/services"
	"github.com/nvkrishna/attendsync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Offline  bool // skip connectivity probing, behave as offline
	DBPath   string
	Location string // fixed "lat,lng[,accuracy]" for kiosk installs
}

// NewRootCommand creates the root command for the attendctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "attendctl",
		Short: "QR attendance client with offline-first sync",
		Long: "attendctl records event attendance from scanned QR payloads, stores it\n" +
			"durably on this machine, and syncs it to the attendance server when\n" +
			"connectivity allows.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.Offline, "offline", false, "treat the network as unavailable")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to the local database (default $ATTENDANCE_DB)")
	cmd.PersistentFlags().StringVar(&opts.Location, "location", "", "fixed position as lat,lng[,accuracy] to attach to scans")

	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// app wires the client components for one command invocation.
type app struct {
	cfg     *config.ClientConfig
	store   *store.Store
	api     *client.Client
	manual  *connectivity.Manual
	probe   *connectivity.Probe
	conn    connectivity.Monitor
	metrics *services.Metrics
	rec     *services.AttendanceService
	sync    *services.SyncService
}

// newApp opens the local store and builds the service graph. With --offline
// the connectivity monitor is pinned offline; otherwise a probe against the
// server's health endpoint decides.
func newApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		store:   st,
		api:     client.New(cfg.APIBaseURL, cfg.RequestTimeout),
		metrics: services.NewMetrics(),
	}

	if opts.Offline {
		a.manual = connectivity.NewManual(false)
		a.conn = a.manual
	} else {
		a.probe = connectivity.NewProbe(healthURL(cfg.APIBaseURL), cfg.ProbeInterval)
		a.probe.CheckNow(ctx)
		a.conn = a.probe
	}

	location, err := locationProvider(opts.Location)
	if err != nil {
		st.Close()
		return nil, err
	}

	a.rec = services.NewAttendanceService(st, a.api, a.conn, location, a.metrics, cfg.LocationTimeout)
	a.sync = services.NewSyncService(st, a.api, a.conn, a.metrics, cfg.MaxRetries, cfg.SyncInterval)
	return a, nil
}

// locationProvider parses the --location override. Scans carry no position
// unless one is configured.
func locationProvider(spec string) (services.LocationProvider, error) {
	if spec == "" {
		return services.NoLocation{}, nil
	}

	parts := strings.Split(spec, ",")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, fmt.Errorf("invalid --location %q, want lat,lng[,accuracy]", spec)
	}
	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --location %q: %w", spec, err)
		}
		values[i] = v
	}

	static := services.StaticLocation{Location: models.Location{Latitude: values[0], Longitude: values[1]}}
	if len(values) == 3 {
		static.Location.Accuracy = values[2]
	}
	return static, nil
}

func (a *app) close() {
	a.store.Close()
}

// healthURL derives the probe target from the API base, which ends in /api.
func healthURL(apiBaseURL string) string {
	const suffix = "/api"
	if len(apiBaseURL) > len(suffix) && apiBaseURL[len(apiBaseURL)-len(suffix):] == suffix {
		return apiBaseURL[:len(apiBaseURL)-len(suffix)] + "/health"
	}
	return apiBaseURL + "/health"
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
