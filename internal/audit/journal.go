// Package audit records an append-only journal of booking-flow events.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a flow-lifecycle event.
type EventType string

const (
	// EventSessionStarted is logged when a flow starts (or overwrites).
	EventSessionStarted EventType = "flow.session_started"
	// EventSessionEnded is logged on explicit exit or successful submission.
	EventSessionEnded EventType = "flow.session_ended"
	// EventWindowSelected is logged when a tap resolves to a valid window.
	EventWindowSelected EventType = "flow.window_selected"
	// EventWindowToggledOff is logged when a re-tap deselects the window.
	EventWindowToggledOff EventType = "flow.window_toggled_off"
	// EventSpecialistResolved is logged with the decision-table outcome.
	EventSpecialistResolved EventType = "flow.specialist_resolved"
	// EventSpecialistFallback is logged when availability could not be
	// checked and the flow continued without a specialist.
	EventSpecialistFallback EventType = "flow.specialist_fallback"
	// EventPromoApplied is logged when a promo code matches.
	EventPromoApplied EventType = "flow.promo_applied"
	// EventPromoRejected is logged when a promo code does not match.
	EventPromoRejected EventType = "flow.promo_rejected"
	// EventSubmissionAttempted is logged before calling the booking service.
	EventSubmissionAttempted EventType = "flow.submission_attempted"
	// EventSubmissionFailed is logged when the booking service rejects.
	EventSubmissionFailed EventType = "flow.submission_failed"
	// EventBookingCreated is logged on a successful submission.
	EventBookingCreated EventType = "flow.booking_created"
	// EventBookingCancelled is logged when a booking is cancelled.
	EventBookingCancelled EventType = "flow.booking_cancelled"
	// EventPaymentTransition is logged on every payment state change.
	EventPaymentTransition EventType = "payment.transition"
)

// Event is one immutable journal row.
type Event struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	OwnerID   string          `json:"owner_id"`
	BookingID string          `json:"booking_id,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Journal appends flow events to Postgres.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a journal. A nil db yields a nil journal; all methods
// are nil-safe so the flow runs without a database in development.
func NewJournal(db *sql.DB) *Journal {
	if db == nil {
		return nil
	}
	return &Journal{db: db}
}

// Record appends one event.
func (j *Journal) Record(ctx context.Context, event Event) error {
	if j == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO flow_audit_events (id, event_type, owner_id, booking_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := j.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.OwnerID,
		nullString(event.BookingID),
		nullJSON(event.Details),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// RecordDetails marshals details and appends the event.
func (j *Journal) RecordDetails(ctx context.Context, eventType EventType, ownerID string, details any) error {
	if j == nil {
		return nil
	}
	var raw json.RawMessage
	if details != nil {
		encoded, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("audit: encode details: %w", err)
		}
		raw = encoded
	}
	return j.Record(ctx, Event{EventType: eventType, OwnerID: ownerID, Details: raw})
}

// RecentForOwner returns the newest events for an owner, newest first.
func (j *Journal) RecentForOwner(ctx context.Context, ownerID string, limit int) ([]Event, error) {
	if j == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, event_type, owner_id, booking_id, details, created_at
		FROM flow_audit_events
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := j.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			bookingID sql.NullString
			details   []byte
		)
		if err := rows.Scan(&e.ID, &e.EventType, &e.OwnerID, &bookingID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.BookingID = bookingID.String
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate events: %w", err)
	}
	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
