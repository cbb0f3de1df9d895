package app

import "time"

// BookingSlot is a bookable time window. Date is YYYY-MM-DD, Time is HH:MM.
type BookingSlot struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Capacity    int    `json:"capacity"`
	Booked      int    `json:"booked"`
	IsAvailable bool   `json:"is_available"`
}

func (s BookingSlot) SpotsLeft() int {
	if s.Booked >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Booked
}

type UserBooking struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BookingSlotID int64     `json:"booking_slot_id"`
	BookedAt      time.Time `json:"booked_at"`
}

// UserBookingDetails is a booking joined with the slot it references.
type UserBookingDetails struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BookingSlotID int64     `json:"booking_slot_id"`
	BookedAt      time.Time `json:"booked_at"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Capacity      int       `json:"capacity"`
	Booked        int       `json:"booked"`
	IsAvailable   bool      `json:"is_available"`
}

// AdminBookingRow is one row of admin_booking_view.
type AdminBookingRow struct {
	BookingID int64     `json:"booking_id"`
	SlotID    int64     `json:"slot_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	BookedAt  time.Time `json:"booked_at"`
}

type SlotBooking struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	BookingSlotID int64     `json:"booking_slot_id"`
	BookedAt      time.Time `json:"booked_at"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
}

type User struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	ClerkID           string     `json:"clerk_id"`
	IsAdmin           bool       `json:"is_admin"`
	IsApproved        bool       `json:"is_approved"`
	SubscriptionStart *time.Time `json:"subscription_start"`
	SubscriptionEnd   *time.Time `json:"subscription_end"`
}

// WorkoutSchedule is the gym-wide weekly plan. Workouts is keyed by weekday name.
type WorkoutSchedule struct {
	Version   int               `json:"version"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
	Workouts  map[string]string `json:"workouts"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

// SlotFilter narrows ListSlots. Empty Date means all days.
type SlotFilter struct {
	Date string
}
