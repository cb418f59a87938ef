package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

// Accepted STORE_DRIVER and DEDUP_MARK_ZONE values.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"

	MarkZoneUser      = "user"
	MarkZoneReference = "reference"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken  string `envconfig:"BOT_TOKEN" required:"true"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"` // json|console
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"` // healthz

	DefaultTZ     string   `envconfig:"LOCAL_TZ" default:"Asia/Tashkent"`
	ScheduleTZ    string   `envconfig:"SCHEDULE_TZ"` // empty: same as LOCAL_TZ
	ReminderTimes []string `envconfig:"REMINDER_TIMES" default:"08:00,12:00,22:00"`
	MarkZone      string   `envconfig:"DEDUP_MARK_ZONE" default:"user"` // user|reference

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"json"` // json|sqlite|redis
	DataFile      string `envconfig:"DATA_FILE" default:"./user_data.json"`
	DBPath        string `envconfig:"DB_PATH" default:"./data/streak.db"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisKey      string `envconfig:"REDIS_KEY" default:"cfstreak:users"`

	CFBaseURL string        `envconfig:"CF_API_URL" default:"https://codeforces.com/api"`
	CFCount   int           `envconfig:"CF_SUBMISSION_COUNT" default:"200"`
	CFTimeout time.Duration `envconfig:"CF_TIMEOUT" default:"20s"`
}

// Load reads environment variables into Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings that would only fail later at runtime.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN: must not be empty")
	}
	if _, err := domain.ParseSlots(c.ReminderTimes); err != nil {
		return fmt.Errorf("REMINDER_TIMES: %w", err)
	}
	switch c.MarkZone {
	case MarkZoneUser, MarkZoneReference:
	default:
		return fmt.Errorf("DEDUP_MARK_ZONE: unknown mark zone %q", c.MarkZone)
	}
	if c.ScheduleTZ != "" {
		if _, err := domain.ValidateTZ(c.ScheduleTZ); err != nil {
			return fmt.Errorf("SCHEDULE_TZ: %w", err)
		}
	}
	switch c.StoreDriver {
	case DriverJSON, DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("STORE_DRIVER: unknown driver %q", c.StoreDriver)
	}
	if c.CFCount <= 0 || c.CFCount > 1000 {
		return fmt.Errorf("CF_SUBMISSION_COUNT: %d out of range 1..1000", c.CFCount)
	}
	if c.CFTimeout <= 0 {
		return fmt.Errorf("CF_TIMEOUT: must be positive")
	}
	return nil
}

// Slots returns the parsed reminder slots. Call after Validate.
func (c Config) Slots() []domain.Slot {
	slots, _ := domain.ParseSlots(c.ReminderTimes)
	return slots
}

// ScheduleZone returns the zone name used for slot triggers.
func (c Config) ScheduleZone() string {
	if c.ScheduleTZ != "" {
		return c.ScheduleTZ
	}
	return c.DefaultTZ
}
