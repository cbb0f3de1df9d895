package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Port string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Auth struct {
		JWTSecret    string   `mapstructure:"jwt_secret"`
		StaticTokens []string `mapstructure:"static_tokens"`
	} `mapstructure:"auth"`

	Booking struct {
		RetryAttempts    int           `mapstructure:"retry_attempts"`
		RetryDelay       time.Duration `mapstructure:"retry_delay"`
		EnforceOpenHours bool          `mapstructure:"enforce_open_hours"`
		SlotMinutes      int           `mapstructure:"slot_minutes"`
	} `mapstructure:"booking"`

	RateLimit struct {
		RPS   float64
		Burst int
	} `mapstructure:"ratelimit"`

	Redis struct {
		Addr     string
		Password string
		DB       int
	} `mapstructure:"redis"`

	Google struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"google"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	// API is where command line clients such as slotwatch reach the server.
	API struct {
		URL   string
		Token string
	} `mapstructure:"api"`
}

var defaults = map[string]any{
	"app.env":                    "prod",
	"app.timezone":               "Europe/Athens",
	"http.port":                  "8080",
	"postgres.dsn":               "",
	"auth.jwt_secret":            "",
	"auth.static_tokens":         []string{},
	"booking.retry_attempts":     3,
	"booking.retry_delay":        time.Second,
	"booking.enforce_open_hours": false,
	"booking.slot_minutes":       60,
	"ratelimit.rps":              2.0,
	"ratelimit.burst":            5,
	"redis.addr":                 "",
	"redis.password":             "",
	"redis.db":                   0,
	"google.client_id":           "",
	"google.client_secret":       "",
	"google.redirect_url":        "",
	"metrics.enabled":            true,
	"api.url":                    "http://localhost:8080",
	"api.token":                  "",
}

// Load reads configuration from an optional YAML file at path, then from the
// environment (GYM_ prefix, dots become underscores). A .env file in the
// working directory is loaded first when present.
func Load(path string) (Config, error) {
	c, err := read(path)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

// LoadClient reads the same sources as Load but only checks what API clients
// need, so no database settings are required.
func LoadClient(path string) (Config, error) {
	c, err := read(path)
	if err != nil {
		return c, err
	}
	if c.API.URL == "" {
		return c, errors.New("config: api.url required")
	}
	return c, nil
}

func read(path string) (Config, error) {
	var c Config
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return c, err
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix("GYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// names kept from the single-service deployment
	_ = v.BindEnv("postgres.dsn", "GYM_POSTGRES_DSN", "DATABASE_URL")
	_ = v.BindEnv("http.port", "GYM_HTTP_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", "GYM_AUTH_JWT_SECRET", "JWT_HMAC_SECRET")
	_ = v.BindEnv("auth.static_tokens", "GYM_AUTH_STATIC_TOKENS", "STATIC_TOKENS")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return c, err
		}
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	c.Auth.StaticTokens = cleanTokens(c.Auth.StaticTokens)
	return c, nil
}

func (c Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("config: postgres.dsn (DATABASE_URL) required")
	}
	if c.Booking.RetryAttempts < 1 {
		return errors.New("config: booking.retry_attempts must be at least 1")
	}
	if c.Booking.SlotMinutes <= 0 {
		return errors.New("config: booking.slot_minutes must be positive")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return errors.New("config: app.timezone: " + err.Error())
	}
	return nil
}

func cleanTokens(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
