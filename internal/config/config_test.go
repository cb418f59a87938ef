package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Tashkent", cfg.DefaultTZ)
	assert.Equal(t, "Asia/Tashkent", cfg.ScheduleZone())
	assert.Equal(t, []string{"08:00", "12:00", "22:00"}, cfg.ReminderTimes)
	assert.Len(t, cfg.Slots(), 3)
	assert.Equal(t, "json", cfg.StoreDriver)
	assert.Equal(t, "user", cfg.MarkZone)
	assert.Equal(t, 200, cfg.CFCount)
	assert.Equal(t, 20*time.Second, cfg.CFTimeout)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("LOCAL_TZ", "Europe/Amsterdam")
	t.Setenv("SCHEDULE_TZ", "UTC")
	t.Setenv("REMINDER_TIMES", "09:30,21:00")
	t.Setenv("STORE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.ScheduleZone())
	assert.Equal(t, []string{"09:30", "21:00"}, cfg.ReminderTimes)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "Europe/Amsterdam", cfg.DefaultTZ)
}

func TestLoad_RequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		BotToken:      "123:abc",
		ReminderTimes: []string{"08:00"},
		MarkZone:      "user",
		StoreDriver:   "json",
		CFCount:       200,
		CFTimeout:     time.Second,
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(c *Config){
		"no token":      func(c *Config) { c.BotToken = "" },
		"bad slot":      func(c *Config) { c.ReminderTimes = []string{"25:00"} },
		"bad mark zone": func(c *Config) { c.MarkZone = "server" },
		"bad driver":    func(c *Config) { c.StoreDriver = "mongo" },
		"bad zone":      func(c *Config) { c.ScheduleTZ = "Mars/Phobos" },
		"bad count":     func(c *Config) { c.CFCount = 0 },
		"bad timeout":   func(c *Config) { c.CFTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			c.ReminderTimes = append([]string(nil), base.ReminderTimes...)
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
