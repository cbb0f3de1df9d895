package app

import (
	"log/slog"
	"time"

	"gym-booking-service/internal/metrics"
)

// App carries the dependencies shared by every handler.
type App struct {
	Store   Store
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Retry   RetryPolicy

	// EnforceOpenHours makes Reserve reject slots outside opening hours.
	EnforceOpenHours bool
	// SlotLength is the duration of a class, used for calendar events.
	SlotLength time.Duration
	Location   *time.Location
	Calendar   *GoogleCalendarConfig
}

func New(store Store, log *slog.Logger) *App {
	return &App{
		Store:      store,
		Log:        log,
		Retry:      DefaultRetryPolicy,
		SlotLength: time.Hour,
		Location:   time.UTC,
	}
}
