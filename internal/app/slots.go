package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// OpenHours returns the gym's opening and closing minute of day for a weekday.
// ok is false on days the gym is closed.
func OpenHours(day time.Weekday) (open, close int, ok bool) {
	switch day {
	case time.Sunday:
		return 0, 0, false
	case time.Saturday:
		return 9 * 60, 16 * 60, true
	default:
		return 9 * 60, 21 * 60, true
	}
}

// IsValidSlotTime reports whether a slot on date (YYYY-MM-DD, longer ISO strings
// are truncated) at clock (H:MM or HH:MM, seconds ignored) falls inside opening hours.
// Both boundaries are inclusive. Malformed input is never valid.
func IsValidSlotTime(date, clock string) bool {
	day, err := parseDate(date)
	if err != nil {
		return false
	}
	m, err := clockMinutes(clock)
	if err != nil {
		return false
	}
	open, close, ok := OpenHours(day.Weekday())
	if !ok {
		return false
	}
	return m >= open && m <= close
}

// GenerateSlots expands opening hours into slot definitions for every day
// between from and to inclusive, one slot every step starting at opening time.
func GenerateSlots(from, to time.Time, step time.Duration, capacity int) ([]BookingSlot, error) {
	if step < time.Minute {
		return nil, fmt.Errorf("slot step must be at least a minute: %w", ErrValidation)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive: %w", ErrValidation)
	}
	startDate := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	endDate := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	if endDate.Before(startDate) {
		return nil, fmt.Errorf("end date before start date: %w", ErrValidation)
	}

	var out []BookingSlot
	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		open, close, ok := OpenHours(day.Weekday())
		if !ok {
			continue
		}
		dayStart := day.Add(time.Duration(open) * time.Minute)
		dayEnd := day.Add(time.Duration(close) * time.Minute)
		for s := dayStart; !s.After(dayEnd); s = s.Add(step) {
			out = append(out, BookingSlot{
				Date:        s.Format(dateLayout),
				Time:        s.Format("15:04"),
				Capacity:    capacity,
				IsAvailable: true,
			})
		}
	}
	return out, nil
}

func parseDate(s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)] // "2024-01-06T00:00:00Z" -> "2024-01-06"
	}
	return time.Parse(dateLayout, s)
}

// clockMinutes turns "H:MM", "HH:MM" or "HH:MM:SS[.ffffff]" into minutes
// past midnight.
func clockMinutes(s string) (int, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || !digits(parts[0], 1, 2) || !digits(parts[1], 2, 2) {
		return 0, fmt.Errorf("invalid time string: %q", s)
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("time out of range: %q", s)
	}
	return h*60 + m, nil
}

func digits(s string, lo, hi int) bool {
	if len(s) < lo || len(s) > hi {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
