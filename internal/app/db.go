package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on Postgres.
type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

const slotColumns = `id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'), capacity, booked, is_available`

func scanSlot(row pgx.Row) (*BookingSlot, error) {
	var s BookingSlot
	if err := row.Scan(&s.ID, &s.Date, &s.Time, &s.Capacity, &s.Booked, &s.IsAvailable); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *PGStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PGStore) ListSlots(ctx context.Context, f SlotFilter) ([]BookingSlot, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if f.Date != "" {
		q := `SELECT ` + slotColumns + ` FROM booking_slots WHERE date = $1::date ORDER BY date, time`
		rows, err = s.DB.Query(ctx, q, f.Date)
	} else {
		q := `SELECT ` + slotColumns + ` FROM booking_slots ORDER BY date, time`
		rows, err = s.DB.Query(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BookingSlot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *slot)
	}
	return out, rows.Err()
}

func (s *PGStore) GetSlot(ctx context.Context, id int64) (*BookingSlot, error) {
	q := `SELECT ` + slotColumns + ` FROM booking_slots WHERE id = $1`
	slot, err := scanSlot(s.DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking slot %d: %w", id, ErrNotFound)
	}
	return slot, err
}

func (s *PGStore) CreateSlot(ctx context.Context, slot *BookingSlot) error {
	q := `INSERT INTO booking_slots (date, time, capacity, booked, is_available)
	      VALUES ($1::date, $2::time, $3, 0, true)
	      ON CONFLICT (date, time) DO NOTHING
	      RETURNING id`
	err := s.DB.QueryRow(ctx, q, slot.Date, slot.Time, slot.Capacity).Scan(&slot.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("slot %s %s: %w", slot.Date, slot.Time, ErrSlotExists)
	}
	if isPgCode(err, pgCheckViolation) {
		return fmt.Errorf("slot %s %s: %w", slot.Date, slot.Time, ErrValidation)
	}
	if err != nil {
		return err
	}
	slot.Booked = 0
	slot.IsAvailable = true
	return nil
}

func (s *PGStore) UpdateSlotCapacity(ctx context.Context, id int64, capacity int) (*BookingSlot, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive: %w", ErrValidation)
	}
	q := `UPDATE booking_slots
	      SET capacity = $2, is_available = (booked < $2)
	      WHERE id = $1 AND booked <= $2
	      RETURNING ` + slotColumns
	slot, err := scanSlot(s.DB.QueryRow(ctx, q, id, capacity))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// either the slot is gone or it already holds more bookings than capacity
	if _, getErr := s.GetSlot(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("capacity %d is below current bookings: %w", capacity, ErrValidation)
}

func (s *PGStore) Reserve(ctx context.Context, userRef string, slotID int64) (*UserBooking, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id::text = $1 OR clerk_id = $1 LIMIT 1`, userRef).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userRef, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// The guarded increment takes the slot row lock, so concurrent reservations
	// for one slot are serialized here and re-check the guard after waiting.
	incQ := `UPDATE booking_slots
	         SET booked = booked + 1, is_available = (booked + 1 < capacity)
	         WHERE id = $1 AND is_available AND booked < capacity`
	tag, err := tx.Exec(ctx, incQ, slotID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("slot %d: %w", slotID, ErrSlotUnavailable)
	}

	var exists bool
	dupQ := `SELECT EXISTS (SELECT 1 FROM user_bookings WHERE user_id = $1 AND booking_slot_id = $2)`
	if err := tx.QueryRow(ctx, dupQ, userID, slotID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("user %d slot %d: %w", userID, slotID, ErrAlreadyBooked)
	}

	var b UserBooking
	insQ := `INSERT INTO user_bookings (user_id, booking_slot_id, booked_at)
	         VALUES ($1, $2, now())
	         RETURNING id, user_id, booking_slot_id, booked_at`
	err = tx.QueryRow(ctx, insQ, userID, slotID).Scan(&b.ID, &b.UserID, &b.BookingSlotID, &b.BookedAt)
	if isPgCode(err, pgUniqueViolation) {
		return nil, fmt.Errorf("user %d slot %d: %w", userID, slotID, ErrAlreadyBooked)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PGStore) Cancel(ctx context.Context, bookingID int64) (*BookingSlot, error) {
	q := `WITH deleted_booking AS (
	          DELETE FROM user_bookings
	          WHERE id = $1
	          RETURNING booking_slot_id
	      )
	      UPDATE booking_slots
	      SET booked = booked - 1, is_available = true
	      WHERE id = (SELECT booking_slot_id FROM deleted_booking)
	      RETURNING ` + slotColumns
	slot, err := scanSlot(s.DB.QueryRow(ctx, q, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return slot, err
}

const bookingDetailsColumns = `ub.id, ub.user_id, ub.booking_slot_id, ub.booked_at,
	to_char(bs.date, 'YYYY-MM-DD'), to_char(bs.time, 'HH24:MI'), bs.capacity, bs.booked, bs.is_available`

func scanBookingDetails(row pgx.Row) (*UserBookingDetails, error) {
	var d UserBookingDetails
	if err := row.Scan(&d.ID, &d.UserID, &d.BookingSlotID, &d.BookedAt,
		&d.Date, &d.Time, &d.Capacity, &d.Booked, &d.IsAvailable); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PGStore) GetUserBooking(ctx context.Context, bookingID int64) (*UserBookingDetails, error) {
	q := `SELECT ` + bookingDetailsColumns + `
	      FROM user_bookings ub
	      JOIN booking_slots bs ON ub.booking_slot_id = bs.id
	      WHERE ub.id = $1`
	d, err := scanBookingDetails(s.DB.QueryRow(ctx, q, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return d, err
}

func (s *PGStore) ListUserBookings(ctx context.Context, userRef string, slotID int64, limit int) ([]UserBookingDetails, error) {
	q := `SELECT ` + bookingDetailsColumns + `
	      FROM user_bookings ub
	      JOIN booking_slots bs ON ub.booking_slot_id = bs.id
	      JOIN users u ON ub.user_id = u.id
	      WHERE (u.id::text = $1 OR u.clerk_id = $1)
	        AND ($2::bigint = 0 OR ub.booking_slot_id = $2::bigint)
	      ORDER BY bs.date DESC, bs.time DESC
	      LIMIT $3`
	rows, err := s.DB.Query(ctx, q, userRef, slotID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []UserBookingDetails{}
	for rows.Next() {
		d, err := scanBookingDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

const adminViewColumns = `booking_id, slot_id, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'),
	capacity, booked, user_id, user_name, user_email, booked_at`

func (s *PGStore) queryAdminView(ctx context.Context, q string, arg any) ([]AdminBookingRow, error) {
	rows, err := s.DB.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AdminBookingRow{}
	for rows.Next() {
		var r AdminBookingRow
		if err := rows.Scan(&r.BookingID, &r.SlotID, &r.Date, &r.Time, &r.Capacity, &r.Booked,
			&r.UserID, &r.UserName, &r.UserEmail, &r.BookedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) AdminBookingsByDate(ctx context.Context, date string) ([]AdminBookingRow, error) {
	q := `SELECT ` + adminViewColumns + ` FROM admin_booking_view
	      WHERE date = $1::date
	      ORDER BY time ASC, booked_at ASC`
	return s.queryAdminView(ctx, q, date)
}

func (s *PGStore) AdminBookingsBySlot(ctx context.Context, slotID int64) ([]AdminBookingRow, error) {
	q := `SELECT ` + adminViewColumns + ` FROM admin_booking_view
	      WHERE slot_id = $1
	      ORDER BY booked_at ASC`
	return s.queryAdminView(ctx, q, slotID)
}

func (s *PGStore) SlotBookings(ctx context.Context, slotID int64) ([]SlotBooking, error) {
	q := `SELECT ub.id, ub.user_id, ub.booking_slot_id, ub.booked_at, u.name, u.email
	      FROM user_bookings ub
	      JOIN users u ON ub.user_id = u.id
	      WHERE ub.booking_slot_id = $1
	      ORDER BY ub.booked_at ASC`
	rows, err := s.DB.Query(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SlotBooking{}
	for rows.Next() {
		var b SlotBooking
		if err := rows.Scan(&b.ID, &b.UserID, &b.BookingSlotID, &b.BookedAt, &b.Name, &b.Email); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const userSelect = `SELECT id, name, email, clerk_id, is_admin, is_approved, subscription_start, subscription_end FROM users`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.ClerkID, &u.IsAdmin, &u.IsApproved,
		&u.SubscriptionStart, &u.SubscriptionEnd); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PGStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.DB.Query(ctx, userSelect+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PGStore) GetUser(ctx context.Context, ref string) (*User, error) {
	u, err := scanUser(s.DB.QueryRow(ctx, userSelect+` WHERE id::text = $1 OR clerk_id = $1 LIMIT 1`, ref))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
	}
	return u, err
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	q := `INSERT INTO users (name, email, clerk_id, is_admin)
	      VALUES ($1, $2, $3, $4)
	      RETURNING id, is_approved`
	err := s.DB.QueryRow(ctx, q, u.Name, u.Email, u.ClerkID, u.IsAdmin).Scan(&u.ID, &u.IsApproved)
	if isPgCode(err, pgUniqueViolation) {
		return fmt.Errorf("user %s already exists: %w", u.ClerkID, ErrValidation)
	}
	return err
}

func (s *PGStore) UpdateUser(ctx context.Context, ref string, fields map[string]any) (*User, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to update: %w", ErrValidation)
	}
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if _, ok := userColumns[col]; !ok {
			return nil, fmt.Errorf("field %q cannot be updated: %w", col, ErrValidation)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	set := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		set[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}
	args = append(args, ref)
	q := fmt.Sprintf(`UPDATE users SET %s
	                  WHERE id::text = $%d OR clerk_id = $%d
	                  RETURNING id, name, email, clerk_id, is_admin, is_approved, subscription_start, subscription_end`,
		strings.Join(set, ", "), len(args), len(args))

	u, err := scanUser(s.DB.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", ref, ErrNotFound)
	}
	if isPgCode(err, pgUniqueViolation) {
		return nil, fmt.Errorf("user %s: %w", ref, ErrValidation)
	}
	return u, err
}

func (s *PGStore) GetSchedule(ctx context.Context) (*WorkoutSchedule, error) {
	q := `SELECT version, COALESCE(to_char(start_date, 'YYYY-MM-DD'), ''), COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''),
	             workouts, updated_at
	      FROM workout_schedule WHERE id = 1`
	var ws WorkoutSchedule
	err := s.DB.QueryRow(ctx, q).Scan(&ws.Version, &ws.StartDate, &ws.EndDate, &ws.Workouts, &ws.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultSchedule(), nil
	}
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func (s *PGStore) SaveSchedule(ctx context.Context, ws *WorkoutSchedule, baseVersion int) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx, `SELECT version FROM workout_schedule WHERE id = 1 FOR UPDATE`).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if current != baseVersion {
		return fmt.Errorf("stored version %d, got %d: %w", current, baseVersion, ErrVersionConflict)
	}

	q := `INSERT INTO workout_schedule (id, version, start_date, end_date, workouts, updated_at)
	      VALUES (1, $1, NULLIF($2, '')::date, NULLIF($3, '')::date, $4, now())
	      ON CONFLICT (id) DO UPDATE
	      SET version = EXCLUDED.version, start_date = EXCLUDED.start_date,
	          end_date = EXCLUDED.end_date, workouts = EXCLUDED.workouts, updated_at = EXCLUDED.updated_at
	      WHERE workout_schedule.version = $5
	      RETURNING version, updated_at`
	err = tx.QueryRow(ctx, q, baseVersion+1, ws.StartDate, ws.EndDate, ws.Workouts, baseVersion).
		Scan(&ws.Version, &ws.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// a concurrent first save won the insert
		return fmt.Errorf("schedule created concurrently: %w", ErrVersionConflict)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}
