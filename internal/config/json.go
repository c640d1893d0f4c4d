package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/soundboard/internal/flagx"
	"github.com/dmitrijs2005/soundboard/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Absent or zero fields
// leave the current value untouched, except booleans, which are pointers.
type JsonConfig struct {
	DBPath         string         `json:"db_path"`
	SchemaVersion  int            `json:"schema_version"`
	BlockedTimeout timex.Duration `json:"blocked_timeout"`

	QuotaBytes        int64          `json:"quota_bytes"`
	QuotaPollInterval timex.Duration `json:"quota_poll_interval"`
	AtomicSave        *bool          `json:"atomic_save"`
	ThumbnailRetain   int            `json:"thumbnail_retain"`

	APIBaseURL          string         `json:"api_base_url"`
	StatusPollInterval  timex.Duration `json:"status_poll_interval"`
	StatusPollAttempts  int            `json:"status_poll_attempts"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`

	RedisAddr string `json:"redis_addr"`

	LogBackend string `json:"log_backend"`
	LogLevel   string `json:"log_level"`
}

// parseJSON overlays cfg with the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.DBPath, jc.DBPath)
	setInt(&cfg.SchemaVersion, jc.SchemaVersion)
	setDuration(&cfg.BlockedTimeout, jc.BlockedTimeout)
	if jc.QuotaBytes != 0 {
		cfg.QuotaBytes = jc.QuotaBytes
	}
	setDuration(&cfg.QuotaPollInterval, jc.QuotaPollInterval)
	if jc.AtomicSave != nil {
		cfg.AtomicSave = *jc.AtomicSave
	}
	setInt(&cfg.ThumbnailRetain, jc.ThumbnailRetain)
	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setDuration(&cfg.StatusPollInterval, jc.StatusPollInterval)
	setInt(&cfg.StatusPollAttempts, jc.StatusPollAttempts)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.LogBackend, jc.LogBackend)
	setString(&cfg.LogLevel, jc.LogLevel)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
