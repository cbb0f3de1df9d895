// Command slotwatch polls the booking API and prints slot availability.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gym-booking-service/internal/app"
	"gym-booking-service/internal/client"
	"gym-booking-service/internal/config"
	"gym-booking-service/internal/logger"
)

func main() {
	date := flag.String("date", time.Now().Format("2006-01-02"), "day to watch, YYYY-MM-DD")
	interval := flag.Duration("interval", client.DefaultPollInterval, "poll interval")
	cfgPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg.API.URL, cfg.API.Token)
	err = c.Watch(ctx, *date, *interval, func(slots []app.BookingSlot) error {
		fmt.Printf("-- %s %s\n", *date, time.Now().Format("15:04:05"))
		for _, s := range slots {
			state := "open"
			if !s.IsAvailable {
				state = "full"
			}
			fmt.Printf("%s  %2d/%-2d  %s\n", s.Time, s.Booked, s.Capacity, state)
		}
		return nil
	}, func(err error) {
		log.Warn("poll failed", "err", err)
	})
	if err != nil && ctx.Err() == nil {
		log.Error("watch stopped", "err", err)
		os.Exit(1)
	}
}
