package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var catalogTracer = otel.Tracer("bookingflow.internal.catalog")

// Client reads the treatment catalog service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a catalog client.
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

// ListTreatments returns all treatments offered by the catalog.
func (c *Client) ListTreatments(ctx context.Context) ([]domain.Treatment, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.list_treatments")
	defer span.End()

	var payload struct {
		Treatments []domain.Treatment `json:"treatments"`
	}
	if err := c.getJSON(ctx, "/treatments", &payload); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.count", len(payload.Treatments)))
	return payload.Treatments, nil
}

// GetTreatment returns a single treatment by ID.
func (c *Client) GetTreatment(ctx context.Context, treatmentID string) (*domain.Treatment, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.get_treatment")
	defer span.End()
	span.SetAttributes(attribute.String("catalog.treatment_id", treatmentID))

	var t domain.Treatment
	if err := c.getJSON(ctx, "/treatments/"+url.PathEscape(treatmentID), &t); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &t, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Collaborator: "catalog", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.NetworkError{
			Collaborator: "catalog",
			Err:          fmt.Errorf("unexpected status %d for %s", resp.StatusCode, path),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog: decode response: %w", err)
	}
	return nil
}
