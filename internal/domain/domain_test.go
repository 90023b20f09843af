package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredSlots(t *testing.T) {
	tests := []struct {
		name     string
		duration int
		want     int
	}{
		{"exact hour", 60, 1},
		{"ninety minutes", 90, 2},
		{"two hours", 120, 2},
		{"just over two hours", 121, 3},
		{"short treatment", 30, 1},
		{"zero duration", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Treatment{DurationMinutes: tt.duration}
			assert.Equal(t, tt.want, tr.RequiredSlots())
			assert.GreaterOrEqual(t, tr.RequiredSlots(), 1)
		})
	}
}

func TestValidateWindow(t *testing.T) {
	contiguous := []TimeSlot{
		{ID: "s1", StartTime: "10:00", EndTime: "11:00", IsAvailable: true},
		{ID: "s2", StartTime: "11:00", EndTime: "12:00", IsAvailable: true},
	}

	t.Run("valid window", func(t *testing.T) {
		require.NoError(t, ValidateWindow(contiguous, 2))
	})

	t.Run("wrong length", func(t *testing.T) {
		err := ValidateWindow(contiguous, 3)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("unavailable member", func(t *testing.T) {
		slots := []TimeSlot{contiguous[0], {ID: "s2", StartTime: "11:00", EndTime: "12:00"}}
		err := ValidateWindow(slots, 2)
		var conflict *AvailabilityConflict
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("gap in window", func(t *testing.T) {
		slots := []TimeSlot{contiguous[0], {ID: "s3", StartTime: "12:00", EndTime: "13:00", IsAvailable: true}}
		err := ValidateWindow(slots, 2)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})
}

func TestSlotSelectionEqual(t *testing.T) {
	a := SlotSelection{Date: "2026-09-14", SlotIDs: []string{"s1", "s2"}}
	assert.True(t, a.Equal(SlotSelection{Date: "2026-09-14", SlotIDs: []string{"s1", "s2"}}))
	assert.False(t, a.Equal(SlotSelection{Date: "2026-09-14", SlotIDs: []string{"s2", "s1"}}))
	assert.False(t, a.Equal(SlotSelection{Date: "2026-09-15", SlotIDs: []string{"s1", "s2"}}))
	assert.False(t, a.IsEmpty())
	assert.True(t, SlotSelection{}.IsEmpty())
}

func TestPaymentStateTerminal(t *testing.T) {
	assert.False(t, PaymentStateAwaitingConfirmation.Terminal())
	assert.False(t, PaymentStateProcessing.Terminal())
	assert.True(t, PaymentStateCompleted.Terminal())
	assert.True(t, PaymentStateFailed.Terminal())
	assert.True(t, PaymentStateAwaitingManual.Terminal())
}

func TestNetworkErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Collaborator: "scheduling", Err: inner}
	assert.ErrorIs(t, err, inner)
}

func TestSpecialistChoice(t *testing.T) {
	var undecided *SpecialistChoice
	assert.Equal(t, "", undecided.SpecialistID())

	skipped := &SpecialistChoice{Skipped: true}
	assert.Equal(t, "", skipped.SpecialistID())

	chosen := &SpecialistChoice{Specialist: &Specialist{ID: "sp-9"}}
	assert.Equal(t, "sp-9", chosen.SpecialistID())
}
