package bookingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/lumenspa/bookingflow/internal/domain"
	"github.com/lumenspa/bookingflow/pkg/logging"
)

var bookingTracer = otel.Tracer("bookingflow.internal.bookingapi")

// CreateBookingRequest is the booking service's create payload.
type CreateBookingRequest struct {
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	FullName      string               `json:"full_name"`
	TreatmentID   string               `json:"treatment_id"`
	SpecialistID  string               `json:"specialist_id,omitempty"`
	Date          string               `json:"date"`
	TimeSlotIDs   []string             `json:"time_slot_ids"`
	Notes         string               `json:"notes"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	TotalCents    int64                `json:"total_cents"`
	PromoCode     string               `json:"promo_code,omitempty"`
}

// CreateBookingResponse is the booking service's create result. Redirect is
// present only for wallet payments.
type CreateBookingResponse struct {
	BookingID     string                  `json:"booking_id"`
	PaymentStatus domain.PaymentStatus    `json:"payment_status"`
	OrderID       string                  `json:"order_id,omitempty"`
	RequestID     string                  `json:"request_id,omitempty"`
	Redirect      *domain.PaymentRedirect `json:"redirect,omitempty"`
}

// PaymentStatusResponse is the external wallet status for a pending order.
type PaymentStatusResponse struct {
	OrderID        string `json:"order_id"`
	ExternalStatus string `json:"external_status"`
}

// Client calls the booking service.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates a booking service client.
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

// CreateBooking submits an assembled booking. A transport failure maps to
// NetworkError; any non-success response maps to SubmissionError so the
// caller keeps the session intact for retry.
func (c *Client) CreateBooking(ctx context.Context, reqBody CreateBookingRequest) (*CreateBookingResponse, error) {
	ctx, span := bookingTracer.Start(ctx, "bookingapi.create_booking")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.treatment_id", reqBody.TreatmentID),
		attribute.String("booking.payment_method", string(reqBody.PaymentMethod)),
	)

	encoded, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("bookingapi: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bookings", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("bookingapi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.NetworkError{Collaborator: "booking", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := readErrorMessage(resp.Body)
		serr := &domain.SubmissionError{StatusCode: resp.StatusCode, Message: msg}
		span.RecordError(serr)
		c.logger.Warn("booking rejected", "status", resp.StatusCode, "message", msg)
		return nil, serr
	}

	var out CreateBookingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bookingapi: decode response: %w", err)
	}
	return &out, nil
}

// CancelBooking cancels an existing booking.
func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	ctx, span := bookingTracer.Start(ctx, "bookingapi.cancel_booking")
	defer span.End()
	span.SetAttributes(attribute.String("booking.id", bookingID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/bookings/"+url.PathEscape(bookingID)+"/cancel", nil)
	if err != nil {
		return fmt.Errorf("bookingapi: build request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return &domain.NetworkError{Collaborator: "booking", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.NetworkError{
			Collaborator: "booking",
			Err:          fmt.Errorf("cancel returned status %d", resp.StatusCode),
		}
	}
	return nil
}

// BookingHistory returns the account's past bookings, newest first.
func (c *Client) BookingHistory(ctx context.Context, accountID string) ([]domain.BookingRecord, error) {
	ctx, span := bookingTracer.Start(ctx, "bookingapi.history")
	defer span.End()
	span.SetAttributes(attribute.String("booking.account_id", accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/bookings?account_id="+url.QueryEscape(accountID), nil)
	if err != nil {
		return nil, fmt.Errorf("bookingapi: build request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.NetworkError{Collaborator: "booking", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.NetworkError{
			Collaborator: "booking",
			Err:          fmt.Errorf("history returned status %d", resp.StatusCode),
		}
	}

	var payload struct {
		Bookings []domain.BookingRecord `json:"bookings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("bookingapi: decode response: %w", err)
	}
	return payload.Bookings, nil
}

// PaymentStatus reads the external wallet status for a pending order.
func (c *Client) PaymentStatus(ctx context.Context, orderID string) (*PaymentStatusResponse, error) {
	ctx, span := bookingTracer.Start(ctx, "bookingapi.payment_status")
	defer span.End()
	span.SetAttributes(attribute.String("booking.order_id", orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/payments/"+url.PathEscape(orderID)+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("bookingapi: build request: %w", err)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.NetworkError{Collaborator: "booking", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.NetworkError{
			Collaborator: "booking",
			Err:          fmt.Errorf("payment status returned %d", resp.StatusCode),
		}
	}

	var out PaymentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("bookingapi: decode response: %w", err)
	}
	return &out, nil
}

func readErrorMessage(r io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "booking service error"
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		return trimmed
	}
	return "booking service error"
}
