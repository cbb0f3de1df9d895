package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gym-booking-service/internal/app"
	"gym-booking-service/internal/config"
	"gym-booking-service/internal/logger"
	"gym-booking-service/internal/metrics"
	"gym-booking-service/internal/migrations"
	"gym-booking-service/internal/ratelimit"
	"gym-booking-service/internal/server"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("prod").Error("load config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.App.Env)
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.Up(ctx, cfg.Postgres.DSN); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("failed to connect to db", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	loc, _ := time.LoadLocation(cfg.App.Timezone) // checked by config.Validate

	a := app.New(app.NewPGStore(pool), log)
	a.Retry = app.RetryPolicy{Attempts: cfg.Booking.RetryAttempts, Delay: cfg.Booking.RetryDelay}
	a.EnforceOpenHours = cfg.Booking.EnforceOpenHours
	a.SlotLength = time.Duration(cfg.Booking.SlotMinutes) * time.Minute
	a.Location = loc
	a.Calendar = app.NewGoogleCalendarConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	if a.Calendar == nil {
		log.Info("google calendar export disabled")
	}

	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(prometheus.DefaultRegisterer)
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	router.Use(app.RequestLogger(log, a.Metrics))

	limits := ratelimit.NewStore(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limits.StartJanitor(ctx)

	var stats ratelimit.StatsRecorder
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, rate limit stats disabled", "addr", cfg.Redis.Addr, "err", err)
		} else {
			stats = ratelimit.NewRedisStats(rdb)
		}
	}

	auth := app.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.StaticTokens)
	a.RegisterRoutes(router, auth, ratelimit.Middleware(limits, stats, ratelimit.SubjectOrIP))

	if err := server.Run(ctx, server.Addr(cfg.HTTP.Port), router, log); err != nil {
		log.Error("http server", "err", err)
		os.Exit(1)
	}
}
