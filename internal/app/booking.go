package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Reserve books a spot for userRef on slotID. Transient store failures are
// retried per a.Retry; rejections are returned as is.
func (a *App) Reserve(ctx context.Context, userRef string, slotID int64) (*UserBooking, error) {
	userRef = strings.TrimSpace(userRef)
	if userRef == "" || slotID <= 0 {
		a.Metrics.Reservation("invalid")
		return nil, fmt.Errorf("user id and booking slot id are required: %w", ErrValidation)
	}

	if a.EnforceOpenHours {
		slot, err := a.Store.GetSlot(ctx, slotID)
		if errors.Is(err, ErrNotFound) {
			a.Metrics.Reservation("unavailable")
			return nil, fmt.Errorf("slot %d: %w", slotID, ErrSlotUnavailable)
		}
		if err != nil {
			a.Metrics.Reservation("error")
			return nil, err
		}
		if !IsValidSlotTime(slot.Date, slot.Time) {
			a.Metrics.Reservation("unavailable")
			return nil, fmt.Errorf("slot %d outside opening hours: %w", slotID, ErrSlotUnavailable)
		}
	}

	var booking *UserBooking
	attempt := 0
	err := a.Retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		b, err := a.Store.Reserve(ctx, userRef, slotID)
		if err != nil {
			if IsTransient(err) {
				a.Log.Warn("reserve attempt failed", "attempt", attempt, "slot_id", slotID, "err", err)
			}
			return err
		}
		booking = b
		return nil
	})

	switch {
	case err == nil:
		a.Metrics.Reservation("booked")
		a.Log.Info("slot reserved", "booking_id", booking.ID, "slot_id", slotID, "user_id", booking.UserID)
		return booking, nil
	case errors.Is(err, ErrSlotUnavailable):
		a.Metrics.Reservation("unavailable")
	case errors.Is(err, ErrAlreadyBooked):
		a.Metrics.Reservation("duplicate")
	case errors.Is(err, ErrNotFound):
		a.Metrics.Reservation("unknown_user")
	default:
		a.Metrics.Reservation("error")
	}
	return nil, err
}

// Cancel removes a booking and returns the slot with its restored counters.
func (a *App) Cancel(ctx context.Context, bookingID int64) (*BookingSlot, error) {
	if bookingID <= 0 {
		a.Metrics.Cancellation("invalid")
		return nil, fmt.Errorf("booking id is required: %w", ErrValidation)
	}

	// A lost connection may hide a committed delete, and a second attempt
	// would then report the booking as missing.
	var slot *BookingSlot
	err := a.Retry.DoIf(ctx, IsUnapplied, func(ctx context.Context) error {
		s, err := a.Store.Cancel(ctx, bookingID)
		if err != nil {
			return err
		}
		slot = s
		return nil
	})

	switch {
	case err == nil:
		a.Metrics.Cancellation("cancelled")
		a.Log.Info("booking cancelled", "booking_id", bookingID, "slot_id", slot.ID)
		return slot, nil
	case errors.Is(err, ErrNotFound):
		a.Metrics.Cancellation("not_found")
	default:
		a.Metrics.Cancellation("error")
	}
	return nil, err
}

// OfferedSlots filters slots down to those a user may pick: available and
// inside opening hours.
func OfferedSlots(slots []BookingSlot) []BookingSlot {
	out := make([]BookingSlot, 0, len(slots))
	for _, s := range slots {
		if s.IsAvailable && s.Booked < s.Capacity && IsValidSlotTime(s.Date, s.Time) {
			out = append(out, s)
		}
	}
	return out
}
