package app

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

// memStore is an in-memory Store used by handler and service tests. A single
// mutex plays the role of the database transaction.
type memStore struct {
	mu       sync.Mutex
	slots    map[int64]*BookingSlot
	bookings map[int64]*UserBooking
	users    map[int64]*User
	schedule *WorkoutSchedule
	nextID   int64

	// reserveErrs are returned, in order, by Reserve before it does any work.
	reserveErrs []error
	// cancelErrs work the same way for Cancel.
	cancelErrs []error
	pingErr    error
}

func newMemStore() *memStore {
	return &memStore{
		slots:    map[int64]*BookingSlot{},
		bookings: map[int64]*UserBooking{},
		users:    map[int64]*User{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addSlot(date, clock string, capacity int) *BookingSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &BookingSlot{ID: m.id(), Date: date, Time: clock, Capacity: capacity, IsAvailable: true}
	m.slots[s.ID] = s
	return s
}

func (m *memStore) addUser(clerkID string, admin bool) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{ID: m.id(), Name: clerkID, Email: clerkID + "@example.com", ClerkID: clerkID, IsAdmin: admin}
	m.users[u.ID] = u
	return u
}

func (m *memStore) slot(id int64) BookingSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.slots[id]
}

func (m *memStore) findUser(ref string) *User {
	for _, u := range m.users {
		if u.ClerkID == ref || strconv.FormatInt(u.ID, 10) == ref {
			return u
		}
	}
	return nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }

func (m *memStore) ListSlots(_ context.Context, f SlotFilter) ([]BookingSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []BookingSlot{}
	for _, s := range m.slots {
		if f.Date == "" || s.Date == f.Date {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *memStore) GetSlot(_ context.Context, id int64) (*BookingSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, fmt.Errorf("booking slot %d: %w", id, ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateSlot(_ context.Context, s *BookingSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.slots {
		if e.Date == s.Date && e.Time == s.Time {
			return fmt.Errorf("slot %s %s: %w", s.Date, s.Time, ErrSlotExists)
		}
	}
	s.ID = m.id()
	s.IsAvailable = s.Booked < s.Capacity
	cp := *s
	m.slots[s.ID] = &cp
	return nil
}

func (m *memStore) UpdateSlotCapacity(_ context.Context, id int64, capacity int) (*BookingSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, fmt.Errorf("booking slot %d: %w", id, ErrNotFound)
	}
	if capacity < s.Booked {
		return nil, fmt.Errorf("capacity %d is below current bookings: %w", capacity, ErrValidation)
	}
	s.Capacity = capacity
	s.IsAvailable = s.Booked < s.Capacity
	cp := *s
	return &cp, nil
}

func (m *memStore) Reserve(_ context.Context, userRef string, slotID int64) (*UserBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reserveErrs) > 0 {
		err := m.reserveErrs[0]
		m.reserveErrs = m.reserveErrs[1:]
		return nil, err
	}
	u := m.findUser(userRef)
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userRef, ErrNotFound)
	}
	s, ok := m.slots[slotID]
	if !ok || !s.IsAvailable || s.Booked >= s.Capacity {
		return nil, fmt.Errorf("slot %d: %w", slotID, ErrSlotUnavailable)
	}
	for _, b := range m.bookings {
		if b.UserID == u.ID && b.BookingSlotID == slotID {
			return nil, fmt.Errorf("user %d slot %d: %w", u.ID, slotID, ErrAlreadyBooked)
		}
	}
	s.Booked++
	s.IsAvailable = s.Booked < s.Capacity
	b := &UserBooking{ID: m.id(), UserID: u.ID, BookingSlotID: slotID, BookedAt: time.Now()}
	m.bookings[b.ID] = b
	cp := *b
	return &cp, nil
}

func (m *memStore) Cancel(_ context.Context, bookingID int64) (*BookingSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cancelErrs) > 0 {
		err := m.cancelErrs[0]
		m.cancelErrs = m.cancelErrs[1:]
		return nil, err
	}
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	delete(m.bookings, bookingID)
	s := m.slots[b.BookingSlotID]
	s.Booked--
	s.IsAvailable = true
	cp := *s
	return &cp, nil
}

func (m *memStore) details(b *UserBooking) UserBookingDetails {
	s := m.slots[b.BookingSlotID]
	return UserBookingDetails{
		ID: b.ID, UserID: b.UserID, BookingSlotID: b.BookingSlotID, BookedAt: b.BookedAt,
		Date: s.Date, Time: s.Time, Capacity: s.Capacity, Booked: s.Booked, IsAvailable: s.IsAvailable,
	}
}

func (m *memStore) GetUserBooking(_ context.Context, bookingID int64) (*UserBookingDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	d := m.details(b)
	return &d, nil
}

func (m *memStore) ListUserBookings(_ context.Context, userRef string, slotID int64, limit int) ([]UserBookingDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []UserBookingDetails{}
	u := m.findUser(userRef)
	if u == nil {
		return out, nil
	}
	for _, b := range m.bookings {
		if b.UserID == u.ID && (slotID == 0 || b.BookingSlotID == slotID) {
			out = append(out, m.details(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) adminRows(keep func(*BookingSlot) bool) []AdminBookingRow {
	out := []AdminBookingRow{}
	for _, b := range m.bookings {
		s := m.slots[b.BookingSlotID]
		if !keep(s) {
			continue
		}
		u := m.users[b.UserID]
		out = append(out, AdminBookingRow{
			BookingID: b.ID, SlotID: s.ID, Date: s.Date, Time: s.Time, Capacity: s.Capacity, Booked: s.Booked,
			UserID: u.ID, UserName: u.Name, UserEmail: u.Email, BookedAt: b.BookedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out
}

func (m *memStore) AdminBookingsByDate(_ context.Context, date string) ([]AdminBookingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adminRows(func(s *BookingSlot) bool { return s.Date == date }), nil
}

func (m *memStore) AdminBookingsBySlot(_ context.Context, slotID int64) ([]AdminBookingRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adminRows(func(s *BookingSlot) bool { return s.ID == slotID }), nil
}

func (m *memStore) SlotBookings(_ context.Context, slotID int64) ([]SlotBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []SlotBooking{}
	for _, b := range m.bookings {
		if b.BookingSlotID != slotID {
			continue
		}
		u := m.users[b.UserID]
		out = append(out, SlotBooking{ID: b.ID, UserID: u.ID, BookingSlotID: slotID, BookedAt: b.BookedAt, Name: u.Name, Email: u.Email})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListUsers(context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, ref string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findUser(ref)
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findUser(u.ClerkID) != nil {
		return fmt.Errorf("user %s already exists: %w", u.ClerkID, ErrValidation)
	}
	u.ID = m.id()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UpdateUser(_ context.Context, ref string, fields map[string]any) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.findUser(ref)
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
	}
	for col, v := range fields {
		switch col {
		case "name":
			u.Name = v.(string)
		case "email":
			u.Email = v.(string)
		case "is_admin":
			u.IsAdmin = v.(bool)
		case "is_approved":
			u.IsApproved = v.(bool)
		case "subscription_start":
			u.SubscriptionStart = v.(*time.Time)
		case "subscription_end":
			u.SubscriptionEnd = v.(*time.Time)
		default:
			return nil, fmt.Errorf("field %q cannot be updated: %w", col, ErrValidation)
		}
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetSchedule(context.Context) (*WorkoutSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schedule == nil {
		return DefaultSchedule(), nil
	}
	cp := *m.schedule
	return &cp, nil
}

func (m *memStore) SaveSchedule(_ context.Context, ws *WorkoutSchedule, baseVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := 0
	if m.schedule != nil {
		current = m.schedule.Version
	}
	if current != baseVersion {
		return fmt.Errorf("stored version %d, got %d: %w", current, baseVersion, ErrVersionConflict)
	}
	now := time.Now()
	ws.Version = baseVersion + 1
	ws.UpdatedAt = &now
	cp := *ws
	m.schedule = &cp
	return nil
}
