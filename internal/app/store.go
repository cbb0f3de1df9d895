package app

import (
	"context"
	"time"
)

// Store is the persistence boundary of the service. PGStore is the production
// implementation.
type Store interface {
	Ping(ctx context.Context) error

	ListSlots(ctx context.Context, f SlotFilter) ([]BookingSlot, error)
	GetSlot(ctx context.Context, id int64) (*BookingSlot, error)
	CreateSlot(ctx context.Context, s *BookingSlot) error
	UpdateSlotCapacity(ctx context.Context, id int64, capacity int) (*BookingSlot, error)

	// Reserve books slotID for the user addressed by userRef (id or external id).
	// Availability check, duplicate check, insert and increment happen in one
	// transaction.
	Reserve(ctx context.Context, userRef string, slotID int64) (*UserBooking, error)
	// Cancel deletes a booking and restores its slot counters atomically,
	// returning the updated slot.
	Cancel(ctx context.Context, bookingID int64) (*BookingSlot, error)
	GetUserBooking(ctx context.Context, bookingID int64) (*UserBookingDetails, error)
	ListUserBookings(ctx context.Context, userRef string, slotID int64, limit int) ([]UserBookingDetails, error)

	AdminBookingsByDate(ctx context.Context, date string) ([]AdminBookingRow, error)
	AdminBookingsBySlot(ctx context.Context, slotID int64) ([]AdminBookingRow, error)
	SlotBookings(ctx context.Context, slotID int64) ([]SlotBooking, error)

	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, ref string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, ref string, fields map[string]any) (*User, error)

	GetSchedule(ctx context.Context) (*WorkoutSchedule, error)
	// SaveSchedule stores s as version baseVersion+1 if the stored version is
	// still baseVersion.
	SaveSchedule(ctx context.Context, s *WorkoutSchedule, baseVersion int) error
}

// userColumns lists the columns a user patch may touch.
var userColumns = map[string]struct{}{
	"name":               {},
	"email":              {},
	"is_admin":           {},
	"is_approved":        {},
	"subscription_start": {},
	"subscription_end":   {},
}

// DefaultSchedule is served until an administrator saves one.
func DefaultSchedule() *WorkoutSchedule {
	return &WorkoutSchedule{
		Version:   0,
		StartDate: "",
		EndDate:   "",
		Workouts: map[string]string{
			time.Monday.String():    "Leg Day",
			time.Tuesday.String():   "Chest",
			time.Wednesday.String(): "Full-Body",
			time.Thursday.String():  "Back",
			time.Friday.String():    "Leg Day",
			time.Saturday.String():  "Full-Body",
			time.Sunday.String():    "Rest",
		},
	}
}
