package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultQuotaBytes is the logical ceiling for stored audio (50 MiB).
const DefaultQuotaBytes int64 = 50 * 1024 * 1024

// Config holds runtime settings for the soundboard CLI.
type Config struct {
	DBPath         string        `env:"DB_PATH"`
	SchemaVersion  int           `env:"SCHEMA_VERSION"`
	BlockedTimeout time.Duration `env:"BLOCKED_TIMEOUT"`

	QuotaBytes        int64         `env:"QUOTA_BYTES"`
	QuotaPollInterval time.Duration `env:"QUOTA_POLL_INTERVAL"`
	AtomicSave        bool          `env:"ATOMIC_SAVE"`
	ThumbnailRetain   int           `env:"THUMBNAIL_RETAIN"`

	APIBaseURL          string        `env:"API_BASE_URL"`
	StatusPollInterval  time.Duration `env:"STATUS_POLL_INTERVAL"`
	StatusPollAttempts  int           `env:"STATUS_POLL_ATTEMPTS"`
	OnlineCheckInterval time.Duration `env:"ONLINE_CHECK_INTERVAL"`

	RedisAddr string `env:"REDIS_ADDR"`

	LogBackend string `env:"LOG_BACKEND"`
	LogLevel   string `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DBPath = defaultDBPath()
	c.SchemaVersion = 4
	c.BlockedTimeout = 5 * time.Second

	c.QuotaBytes = DefaultQuotaBytes
	c.QuotaPollInterval = 5 * time.Second
	c.AtomicSave = false
	c.ThumbnailRetain = 50

	c.APIBaseURL = "http://localhost:8000"
	c.StatusPollInterval = 2 * time.Second
	c.StatusPollAttempts = 60
	c.OnlineCheckInterval = 3 * time.Second

	c.LogBackend = "slog"
	c.LogLevel = "info"
}

// Load builds a Config from defaults, the JSON file named in args, the
// SOUNDBOARD_* environment and finally the flags in args. args excludes the
// program name.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("config: db path is empty")
	case c.SchemaVersion < 1:
		return fmt.Errorf("config: schema version must be positive, got %d", c.SchemaVersion)
	case c.QuotaBytes < 0:
		return fmt.Errorf("config: negative quota %d", c.QuotaBytes)
	case c.ThumbnailRetain < 0:
		return fmt.Errorf("config: negative thumbnail retain %d", c.ThumbnailRetain)
	case c.LogBackend != "slog" && c.LogBackend != "zap":
		return fmt.Errorf("config: unknown log backend %q", c.LogBackend)
	}
	return nil
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "soundboard.db"
	}
	return filepath.Join(dir, "soundboard", "store.db")
}
