package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	err := parseEnv(cfg, map[string]string{
		"SOUNDBOARD_DB_PATH":             "/env/sb.db",
		"SOUNDBOARD_QUOTA_POLL_INTERVAL": "1s",
		"SOUNDBOARD_ATOMIC_SAVE":         "true",
		"SOUNDBOARD_REDIS_ADDR":          "redis:6379",
		"DB_PATH":                        "/ignored/without/prefix.db",
	})
	require.NoError(t, err)

	assert.Equal(t, "/env/sb.db", cfg.DBPath)
	assert.Equal(t, time.Second, cfg.QuotaPollInterval)
	assert.True(t, cfg.AtomicSave)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, DefaultQuotaBytes, cfg.QuotaBytes, "unset variables keep defaults")
}

func Test_parseEnv_BadValue(t *testing.T) {
	cfg := &Config{}
	err := parseEnv(cfg, map[string]string{"SOUNDBOARD_QUOTA_BYTES": "many"})
	require.Error(t, err)
}
