package services

import (
	"context"

	"github.com/nvkrishna/attendsync/internal/models"
)

// LocationProvider supplies a best-effort GPS fix at scan time. The recorder
// bounds each acquisition with a timeout and treats any error as "no fix";
// location is never required for a scan to succeed.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (*models.Location, error)
}

// NoLocation is the provider used when the device has no positioning source.
type NoLocation struct{}

func (NoLocation) CurrentLocation(ctx context.Context) (*models.Location, error) {
	return nil, nil
}

// StaticLocation always returns a fixed position, e.g. a kiosk's configured
// coordinates.
type StaticLocation struct {
	Location models.Location
}

func (p StaticLocation) CurrentLocation(ctx context.Context) (*models.Location, error) {
	loc := p.Location
	return &loc, nil
}
