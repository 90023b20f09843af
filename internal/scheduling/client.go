package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var schedulingTracer = otel.Tracer("bookingflow.internal.scheduling")

// Client reads day slots and specialist availability from the scheduling
// service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a scheduling client.
func NewClient(baseURL, authToken string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// WithHTTPClient overrides the HTTP client. Used by tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// DaySlots returns the date's slots sorted chronologically by start time.
func (c *Client) DaySlots(ctx context.Context, date string) ([]domain.TimeSlot, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.day_slots")
	defer span.End()
	span.SetAttributes(attribute.String("scheduling.date", date))

	var payload struct {
		Slots []domain.TimeSlot `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/slots?date="+url.QueryEscape(date), nil, &payload); err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range payload.Slots {
		if payload.Slots[i].Date == "" {
			payload.Slots[i].Date = date
		}
	}
	sort.Slice(payload.Slots, func(i, j int) bool {
		return payload.Slots[i].StartTime < payload.Slots[j].StartTime
	})
	span.SetAttributes(attribute.Int("scheduling.slot_count", len(payload.Slots)))
	return payload.Slots, nil
}

// FreeSpecialists returns specialists free for exactly the given window.
func (c *Client) FreeSpecialists(ctx context.Context, date string, slotIDs []string) ([]domain.Specialist, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.free_specialists")
	defer span.End()
	span.SetAttributes(
		attribute.String("scheduling.date", date),
		attribute.Int("scheduling.window_size", len(slotIDs)),
	)

	body := struct {
		Date    string   `json:"date"`
		SlotIDs []string `json:"slot_ids"`
	}{Date: date, SlotIDs: slotIDs}

	var payload struct {
		Specialists []domain.Specialist `json:"specialists"`
	}
	if err := c.do(ctx, http.MethodPost, "/specialists/free", body, &payload); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("scheduling.free_count", len(payload.Specialists)))
	return payload.Specialists, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("scheduling: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("scheduling: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Collaborator: "scheduling", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.NetworkError{
			Collaborator: "scheduling",
			Err:          fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("scheduling: decode response: %w", err)
	}
	return nil
}
