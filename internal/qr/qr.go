package qr

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
)

// PayloadType is the discriminator embedded in every attendance QR code.
const PayloadType = "attendance"

// MaxAge is how long a generated code stays scannable.
const MaxAge = 24 * time.Hour

var (
	ErrInvalidFormat = errors.New("invalid QR code format")
	ErrMissingFields = errors.New("missing required event information")
	ErrWrongType     = errors.New("QR code is not for attendance tracking")
	ErrExpired       = errors.New("QR code has expired")
)

// Payload is the JSON document encoded into an attendance QR code.
type Payload struct {
	EventID   string    `json:"eventId"`
	EventName string    `json:"eventName"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// NewPayload builds a fresh payload for an event, stamped now.
func NewPayload(event *models.Event, now time.Time) Payload {
	return Payload{
		EventID:   event.ID,
		EventName: event.Name,
		Timestamp: now.UTC(),
		Type:      PayloadType,
	}
}

// Parse decodes raw scanned bytes into a payload without validating it.
func Parse(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidFormat
	}
	return &p, nil
}

// Validate checks a decoded payload against the rules a scan must satisfy:
// both event fields present, the attendance type marker, and an issuance
// timestamp within MaxAge of now. A code issued exactly MaxAge ago is still
// valid; one millisecond older is expired. The window is symmetric, so a
// clock-skewed code stamped more than MaxAge in the future is rejected too.
func (p *Payload) Validate(now time.Time) error {
	if p.EventID == "" || p.EventName == "" {
		return ErrMissingFields
	}
	if p.Type != PayloadType {
		return ErrWrongType
	}
	age := now.Sub(p.Timestamp)
	if age < 0 {
		age = -age
	}
	if age > MaxAge {
		return ErrExpired
	}
	return nil
}

// Encode renders the payload as the JSON a QR encoder would embed.
func (p Payload) Encode() ([]byte, error) {
	return json.Marshal(p)
}
