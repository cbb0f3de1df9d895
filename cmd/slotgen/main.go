// Command slotgen creates booking slots covering the gym's opening hours for a
// range of days. Existing slots are left untouched.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gym-booking-service/internal/app"
	"gym-booking-service/internal/config"
	"gym-booking-service/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "optional YAML config file")
		from       = flag.String("from", time.Now().Format("2006-01-02"), "first day, YYYY-MM-DD")
		to         = flag.String("to", "", "last day, YYYY-MM-DD (default: from + 6 days)")
		step       = flag.Duration("step", 0, "slot spacing (default: booking.slot_minutes)")
		capacity   = flag.Int("capacity", 10, "spots per slot")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("prod").Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	start, err := time.Parse("2006-01-02", *from)
	if err != nil {
		log.Error("invalid -from", "value", *from, "err", err)
		os.Exit(2)
	}
	end := start.AddDate(0, 0, 6)
	if *to != "" {
		if end, err = time.Parse("2006-01-02", *to); err != nil {
			log.Error("invalid -to", "value", *to, "err", err)
			os.Exit(2)
		}
	}
	if *step == 0 {
		*step = time.Duration(cfg.Booking.SlotMinutes) * time.Minute
	}

	slots, err := app.GenerateSlots(start, end, *step, *capacity)
	if err != nil {
		log.Error("generate slots", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("failed to connect to db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := app.NewPGStore(pool)

	created, skipped := 0, 0
	for i := range slots {
		err := app.DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
			return store.CreateSlot(ctx, &slots[i])
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, app.ErrSlotExists):
			skipped++
		default:
			log.Error("create slot", "date", slots[i].Date, "time", slots[i].Time, "err", err)
			pool.Close()
			os.Exit(1)
		}
	}
	log.Info("slots generated", "from", start.Format("2006-01-02"), "to", end.Format("2006-01-02"),
		"created", created, "skipped", skipped)
}
