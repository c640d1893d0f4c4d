// Package config loads runtime configuration for the soundboard CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables prefixed with SOUNDBOARD_ (github.com/caarlos0/env).
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-db string            path to the SQLite object store
//	-api string           base URL of the extraction service
//	-quota int            audio quota in bytes
//	-redis string         redis address for the offline cache (empty: in-memory)
//	-log-level string     debug, info, warn or error
//	-log-backend string   slog or zap
//
// # JSON schema
//
// Intervals use timex.Duration, so they may be strings such as "5s" or integer
// nanoseconds:
//
//	{
//	  "db_path": "/home/me/.local/share/soundboard/store.db",
//	  "api_base_url": "http://localhost:8000",
//	  "quota_bytes": 52428800,
//	  "quota_poll_interval": "5s"
//	}
package config
