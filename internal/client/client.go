// Package client is the HTTP client for the remote attendance service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nvkrishna/attendsync/internal/models"
	"github.com/nvkrishna/attendsync/internal/qr"
)

var (
	// ErrDuplicateAttendance maps a 409 from POST /attendance: the record is
	// already canonical server-side. Callers treat this as success.
	ErrDuplicateAttendance = errors.New("attendance already recorded for this event")
	// ErrEventExists maps a 409 from POST /events.
	ErrEventExists = errors.New("event already exists")
	// ErrEventNotFound maps a 404: event missing or inactive.
	ErrEventNotFound = errors.New("event not found or inactive")
)

// APIError carries a non-success response that has no dedicated sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// Client talks to the remote service. All requests share one bounded timeout
// so a dead network fails fast instead of hanging a sync pass.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type attendanceResponse struct {
	Success    bool                     `json:"success"`
	Message    string                   `json:"message"`
	Attendance *models.AttendanceRecord `json:"attendance"`
}

// PostAttendance delivers one record. A 409 comes back as
// ErrDuplicateAttendance; a 404 as ErrEventNotFound.
func (c *Client) PostAttendance(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	var resp attendanceResponse
	err := c.do(ctx, http.MethodPost, "/attendance", record, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Attendance, nil
}

type eventResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Event   *models.Event `json:"event"`
}

// PostEvent creates an event on the server. A 409 comes back as ErrEventExists.
func (c *Client) PostEvent(ctx context.Context, event *models.Event) (*models.Event, error) {
	var resp eventResponse
	if err := c.do(ctx, http.MethodPost, "/events", event, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

func (c *Client) ListEvents(ctx context.Context) (*models.EventList, error) {
	var list models.EventList
	if err := c.do(ctx, http.MethodGet, "/events", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID), nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, event *models.Event) (*models.Event, error) {
	var resp eventResponse
	if err := c.do(ctx, http.MethodPut, "/events/"+url.PathEscape(eventID), event, &resp); err != nil {
		return nil, err
	}
	return resp.Event, nil
}

// DeactivateEvent soft-deletes an event server-side.
func (c *Client) DeactivateEvent(ctx context.Context, eventID string) error {
	return c.do(ctx, http.MethodDelete, "/events/"+url.PathEscape(eventID), nil, nil)
}

// QRResponse is the regenerated payload for a live event.
type QRResponse struct {
	QRData qr.Payload    `json:"qrData"`
	Event  *models.Event `json:"event"`
}

func (c *Client) EventQR(ctx context.Context, eventID string) (*QRResponse, error) {
	var resp QRResponse
	if err := c.do(ctx, http.MethodGet, "/events/"+url.PathEscape(eventID)+"/qr", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListEventAttendance(ctx context.Context, eventID string, limit, offset int) (*models.AttendanceList, error) {
	path := "/attendance/event/" + url.PathEscape(eventID) + pageQuery(limit, offset)
	var list models.AttendanceList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) ListUserAttendance(ctx context.Context, userID string, limit, offset int) (*models.AttendanceList, error) {
	path := "/attendance/user/" + url.PathEscape(userID) + pageQuery(limit, offset)
	var list models.AttendanceList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) UserStats(ctx context.Context, userID string) (*models.AttendanceStats, error) {
	var stats models.AttendanceStats
	if err := c.do(ctx, http.MethodGet, "/attendance/user/"+url.PathEscape(userID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func pageQuery(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	return "?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return c.statusError(method, path, resp)
}

func (c *Client) statusError(method, path string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch resp.StatusCode {
	case http.StatusConflict:
		if method == http.MethodPost && path == "/events" {
			return ErrEventExists
		}
		return ErrDuplicateAttendance
	case http.StatusNotFound:
		return ErrEventNotFound
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Error}
}
