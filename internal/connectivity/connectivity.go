// Package connectivity provides the online/offline signal the recorder and
// sync engine consult before attempting remote delivery.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Monitor reports the current reachability state and notifies on changes.
type Monitor interface {
	// Online reports whether the remote service is believed reachable.
	Online() bool
	// Changes delivers the new state after each offline/online transition.
	Changes() <-chan bool
}

// Manual is a Monitor whose state is set explicitly. Used by the CLI's
// --offline override and by tests.
type Manual struct {
	mu      sync.Mutex
	online  bool
	changes chan bool
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, changes: make(chan bool, 8)}
}

func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Changes() <-chan bool {
	return m.changes
}

// SetOnline updates the state, notifying subscribers on transitions only.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if changed {
		select {
		case m.changes <- online:
		default:
		}
	}
}

// Probe is a Monitor that periodically polls the server's health endpoint.
// It starts pessimistic (offline) until the first successful probe.
type Probe struct {
	healthURL string
	interval  time.Duration
	client    *http.Client
	state     *Manual
}

func NewProbe(healthURL string, interval time.Duration) *Probe {
	return &Probe{
		healthURL: healthURL,
		interval:  interval,
		client:    &http.Client{Timeout: 5 * time.Second},
		state:     NewManual(false),
	}
}

func (p *Probe) Online() bool         { return p.state.Online() }
func (p *Probe) Changes() <-chan bool { return p.state.Changes() }

// CheckNow performs a single probe and updates the state. One-shot callers
// use this instead of running the full loop.
func (p *Probe) CheckNow(ctx context.Context) bool {
	online := p.check(ctx)
	p.state.SetOnline(online)
	return online
}

// Run probes until the context is cancelled. An immediate probe runs first
// so callers do not wait a full interval for the initial state.
func (p *Probe) Run(ctx context.Context) {
	p.state.SetOnline(p.check(ctx))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.state.SetOnline(p.check(ctx))
		}
	}
}

func (p *Probe) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
