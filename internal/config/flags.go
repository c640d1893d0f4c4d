package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/soundboard/internal/flagx"
)

var knownFlags = []string{"-db", "-api", "-quota", "-redis", "-log-level", "-log-backend"}

// parseFlags populates selected fields from args. Only the flags listed in
// knownFlags are considered, so -c/-config and foreign flags pass through.
func parseFlags(cfg *Config, args []string) error {
	filtered := flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("soundboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the object store")
	fs.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "extraction service base URL")
	fs.Int64Var(&cfg.QuotaBytes, "quota", cfg.QuotaBytes, "audio quota in bytes")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the offline cache")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogBackend, "log-backend", cfg.LogBackend, "log backend (slog|zap)")

	if err := fs.Parse(filtered); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
