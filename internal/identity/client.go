package identity

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

var identityTracer = otel.Tracer("bookingflow.internal.identity")

// Client reads customer profiles from the identity collaborator.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates an identity client.
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

// Profile returns the stored profile for an account.
func (c *Client) Profile(ctx context.Context, accountID string) (*domain.Profile, error) {
	ctx, span := identityTracer.Start(ctx, "identity.profile")
	defer span.End()
	span.SetAttributes(attribute.String("identity.account_id", accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/profiles/"+url.PathEscape(accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.NetworkError{Collaborator: "identity", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &domain.NetworkError{
			Collaborator: "identity",
			Err:          fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
		span.RecordError(err)
		return nil, err
	}

	var p domain.Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	return &p, nil
}
