package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gym-booking-service/internal/migrations"
)

// newPGStore connects to TEST_DATABASE_URL, migrates it and empties every
// table. Tests using it are skipped when the variable is unset.
func newPGStore(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, migrations.Up(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE user_bookings, booking_slots, users, workout_schedule RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return NewPGStore(pool)
}

func seedUsers(t *testing.T, s *PGStore, n int) []*User {
	t.Helper()
	out := make([]*User, n)
	for i := range out {
		u := &User{Name: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i), ClerkID: fmt.Sprintf("user_%d", i)}
		require.NoError(t, s.CreateUser(context.Background(), u))
		out[i] = u
	}
	return out
}

func seedSlot(t *testing.T, s *PGStore, date, clock string, capacity int) *BookingSlot {
	t.Helper()
	slot := &BookingSlot{Date: date, Time: clock, Capacity: capacity}
	require.NoError(t, s.CreateSlot(context.Background(), slot))
	return slot
}

func TestPGStore_ConcurrentReservationsRespectCapacity(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 20)
	slot := seedSlot(t, s, "2024-01-08", "18:00", 5)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok, refused int
		other       []error
	)
	for _, u := range users {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			_, err := s.Reserve(ctx, ref, slot.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotUnavailable):
				refused++
			default:
				other = append(other, err)
			}
		}(u.ClerkID)
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, refused)

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Booked)
	assert.False(t, got.IsAvailable)

	rows, err := s.SlotBookings(ctx, slot.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestPGStore_LastSpotRace(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 2)
	slot := seedSlot(t, s, "2024-01-08", "10:00", 1)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, u := range users {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			_, errs[i] = s.Reserve(ctx, ref, slot.ID)
		}(i, u.ClerkID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrSlotUnavailable)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Booked)
	assert.False(t, got.IsAvailable)
}

func TestPGStore_ReserveRejections(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 2)
	slot := seedSlot(t, s, "2024-01-08", "10:00", 1)

	b, err := s.Reserve(ctx, fmt.Sprint(users[0].ID), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, users[0].ID, b.UserID)

	// full slot: no mutation
	_, err = s.Reserve(ctx, users[1].ClerkID, slot.ID)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = s.Reserve(ctx, users[1].ClerkID, 99999)
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	_, err = s.Reserve(ctx, "ghost", slot.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Booked)

	// duplicate on a slot with room
	roomy := seedSlot(t, s, "2024-01-08", "11:00", 3)
	_, err = s.Reserve(ctx, users[0].ClerkID, roomy.ID)
	require.NoError(t, err)
	_, err = s.Reserve(ctx, users[0].ClerkID, roomy.ID)
	assert.ErrorIs(t, err, ErrAlreadyBooked)

	got, err = s.GetSlot(ctx, roomy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Booked)
	assert.True(t, got.IsAvailable)
}

func TestPGStore_CancelRoundTrip(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 1)
	slot := seedSlot(t, s, "2024-01-08", "10:00", 1)

	b, err := s.Reserve(ctx, users[0].ClerkID, slot.ID)
	require.NoError(t, err)

	details, err := s.GetUserBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08", details.Date)
	assert.Equal(t, "10:00", details.Time)

	restored, err := s.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Booked)
	assert.True(t, restored.IsAvailable)

	_, err = s.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Cancel(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.ListUserBookings(ctx, users[0].ClerkID, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPGStore_SlotsAndCapacity(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 2)
	slot := seedSlot(t, s, "2024-01-08", "10:00", 2)
	seedSlot(t, s, "2024-01-09", "10:00", 2)

	err := s.CreateSlot(ctx, &BookingSlot{Date: "2024-01-08", Time: "10:00", Capacity: 4})
	assert.ErrorIs(t, err, ErrSlotExists)

	list, err := s.ListSlots(ctx, SlotFilter{Date: "2024-01-08"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	for _, u := range users {
		_, err := s.Reserve(ctx, u.ClerkID, slot.ID)
		require.NoError(t, err)
	}
	_, err = s.UpdateSlotCapacity(ctx, slot.ID, 1)
	assert.ErrorIs(t, err, ErrValidation)

	grown, err := s.UpdateSlotCapacity(ctx, slot.ID, 3)
	require.NoError(t, err)
	assert.True(t, grown.IsAvailable)

	_, err = s.UpdateSlotCapacity(ctx, 99999, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	rows, err := s.AdminBookingsByDate(ctx, "2024-01-08")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestPGStore_ScheduleVersioning(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()

	ws, err := s.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, ws.Version)

	next := &WorkoutSchedule{StartDate: "2024-01-01", EndDate: "2024-02-01", Workouts: map[string]string{"Monday": "Legs"}}
	require.NoError(t, s.SaveSchedule(ctx, next, 0))
	assert.Equal(t, 1, next.Version)

	err = s.SaveSchedule(ctx, next, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)

	ws, err = s.GetSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ws.Version)
	assert.Equal(t, "Legs", ws.Workouts["Monday"])
	assert.Equal(t, "2024-01-01", ws.StartDate)
}
