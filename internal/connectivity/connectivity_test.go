package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_NotifiesOnTransitionsOnly(t *testing.T) {
	m := NewManual(false)
	assert.False(t, m.Online())

	m.SetOnline(true)
	m.SetOnline(true) // no transition, no second notification
	m.SetOnline(false)

	assert.Equal(t, true, <-m.Changes())
	assert.Equal(t, false, <-m.Changes())

	select {
	case state := <-m.Changes():
		t.Fatalf("unexpected extra notification: %v", state)
	default:
	}
}

func TestManual_DroppedNotificationDoesNotBlock(t *testing.T) {
	m := NewManual(false)
	// Nobody is draining the channel; flapping must never deadlock.
	for i := 0; i < 50; i++ {
		m.SetOnline(i%2 == 0)
	}
	assert.False(t, m.Online())
}

func TestProbe_CheckNow(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProbe(server.URL+"/health", time.Minute)
	assert.False(t, p.Online(), "probe starts pessimistic")

	assert.False(t, p.CheckNow(context.Background()))

	healthy.Store(true)
	assert.True(t, p.CheckNow(context.Background()))
	assert.True(t, p.Online())
	assert.Equal(t, true, <-p.Changes())
}

func TestProbe_UnreachableServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	p := NewProbe(server.URL+"/health", time.Minute)
	require.True(t, p.CheckNow(context.Background()))

	server.Close()
	assert.False(t, p.CheckNow(context.Background()))
	assert.False(t, p.Online())
}
