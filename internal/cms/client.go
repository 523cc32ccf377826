// Package cms reads event access data from the external content source. The
// CMS owns event metadata, guide rosters and release dates; this client only
// consumes the registration-relevant slice of it.
package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kiezrad/backend/internal/models"
)

var (
	// ErrNotFound means the CMS knows no event with this ID.
	ErrNotFound = errors.New("event not found")
	// ErrUnavailable means the CMS could not be reached or answered with a
	// server error after retrying.
	ErrUnavailable = errors.New("content source unavailable")
)

// Client fetches event access data over HTTP with bounded timeouts and one
// retry on idempotent GETs.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a CMS client. timeout bounds each attempt.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type accessResponse struct {
	Title             string         `json:"title"`
	PublicReleaseDate string         `json:"public_release_date"`
	IsFlintaOnly      bool           `json:"is_flinta_only"`
	WorkshopCapacity  *int           `json:"workshop_capacity"`
	GuideCounts       map[string]int `json:"guide_counts"`
}

// EventAccess returns the access data for an event, ErrNotFound when the CMS
// has no such event, or ErrUnavailable when the CMS cannot be reached.
func (c *Client) EventAccess(ctx context.Context, eventID int64) (*models.EventAccess, error) {
	var body accessResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/events/%d/access", c.baseURL, eventID), &body); err != nil {
		return nil, err
	}

	ea := &models.EventAccess{
		EventID:          eventID,
		Title:            body.Title,
		IsFlintaOnly:     body.IsFlintaOnly,
		WorkshopCapacity: body.WorkshopCapacity,
		GuideCounts:      body.GuideCounts,
	}
	if ea.GuideCounts == nil {
		ea.GuideCounts = map[string]int{}
	}
	if body.PublicReleaseDate != "" {
		t, err := time.Parse(time.RFC3339, body.PublicReleaseDate)
		if err != nil {
			// unparseable release date means the event is treated as
			// already public
			c.logger.Warn("invalid release date from CMS",
				zap.Int64("event_id", eventID),
				zap.String("value", body.PublicReleaseDate))
		} else {
			ea.PublicReleaseDate = &t
		}
	}
	return ea, nil
}

// EventTitle returns the event's display title for notification mail.
func (c *Client) EventTitle(ctx context.Context, eventID int64) (string, error) {
	ea, err := c.EventAccess(ctx, eventID)
	if err != nil {
		return "", err
	}
	return ea.Title, nil
}

// getJSON fetches and decodes url, retrying once on transport errors and
// server errors.
func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		func() {
			defer resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusNotFound:
				lastErr = ErrNotFound
			case resp.StatusCode >= 500:
				lastErr = fmt.Errorf("cms status %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				lastErr = fmt.Errorf("%w: cms status %d", ErrUnavailable, resp.StatusCode)
			default:
				lastErr = json.NewDecoder(resp.Body).Decode(out)
			}
		}()
		if lastErr == nil || errors.Is(lastErr, ErrNotFound) || errors.Is(lastErr, ErrUnavailable) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
