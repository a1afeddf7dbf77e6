package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// loadConfig returns injected, or reads --config, or the default config
// file (created with defaults when missing).
func loadConfig(globals *GlobalFlags, injected *config.Config) (*config.Config, error) {
	if injected != nil {
		return injected, nil
	}
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// resolveDBPath prefers --db-path over the configured storage path.
func resolveDBPath(globals *GlobalFlags, cfg *config.Config) (string, error) {
	if globals != nil && globals.DBPath != "" {
		return globals.DBPath, nil
	}
	return cfg.DBPath()
}

// openStore opens the configured database, runs migrations, and returns a
// ready-to-use store and the underlying *sql.DB.
func openStore(ctx context.Context, globals *GlobalFlags, cfg *config.Config) (*storage.SQLiteStore, *sql.DB, error) {
	dbPath, err := resolveDBPath(globals, cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.Open(ctx, dbPath)
}

// withStore runs fn against the injected store, or opens the configured one
// for the duration of the call.
func withStore(globals *GlobalFlags, cfg *config.Config, injected *storage.SQLiteStore, fn func(*storage.SQLiteStore) error) error {
	if injected != nil {
		return fn(injected)
	}
	store, db, err := openStore(context.Background(), globals, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	defer store.Close()
	return fn(store)
}

// setupLogging installs the configured slog logger as the default.
// --verbose forces debug level.
func setupLogging(globals *GlobalFlags, cfg *config.Config, levelOverride string) (*slog.Logger, error) {
	lc := cfg.Logging
	if levelOverride != "" {
		lc.Level = levelOverride
	}
	if globals != nil && globals.Verbose {
		lc.Level = "debug"
	}
	logger, err := config.NewLogger(lc, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// newEngine builds a query engine over store with the configured limits.
func newEngine(store logquery.EventSource, cfg *config.Config, logger *slog.Logger) (*logquery.Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return logquery.NewEngine(store, logquery.Options{
		DefaultPerPage: cfg.Query.DefaultPerPage,
		MaxPerPage:     cfg.Query.MaxPerPage,
		Lookahead:      cfg.Query.OccasionLookahead,
		Location:       loc,
		Logger:         logger,
	}), nil
}

// params converts the filter flags into query parameters. Relative
// durations are resolved against now.
func (f FilterFlags) params(now time.Time) (logquery.Params, error) {
	p := logquery.Params{}
	if f.Since != "" {
		d, err := parseDuration(f.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", f.Since, err)
		}
		p["date_from"] = now.Add(-d).UTC().Format(time.RFC3339)
	}
	if f.Until != "" {
		d, err := parseDuration(f.Until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until value %q: %w", f.Until, err)
		}
		p["date_to"] = now.Add(-d).UTC().Format(time.RFC3339)
	}
	if f.LastDays > 0 {
		p["lastdays"] = f.LastDays
	}
	if len(f.Month) > 0 {
		p["months"] = f.Month
	}
	if len(f.Logger) > 0 {
		p["loggers"] = f.Logger
	}
	if len(f.Level) > 0 {
		p["loglevels"] = f.Level
	}
	if len(f.User) > 0 {
		p["users"] = f.User
	}
	if len(f.Message) > 0 {
		p["messages"] = f.Message
	}
	return p, nil
}

// apply adds paging parameters to p.
func (o OutputFlags) apply(p logquery.Params) {
	if o.Count > 0 {
		p["per_page"] = o.Count
	}
	if o.Page > 0 {
		p["page"] = o.Page
	}
	if o.MaxID > 0 {
		p["max_id_first_page"] = o.MaxID
	}
}

// parseID reads an event id from a flag value or the first argument.
func parseID(flag int64, args []string) (int64, error) {
	if flag > 0 {
		return flag, nil
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("event ID is required (use --id or pass as argument)")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid event ID %q", args[0])
	}
	return id, nil
}

// parseDuration parses a human-friendly duration string like "30d", "7d", "24h", "2w", "5s".
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("invalid duration: empty string")
	}

	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]

	n, err := strconv.Atoi(numStr)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 's':
		return time.Duration(n) * time.Second, nil
	default:
		return 0, fmt.Errorf("invalid duration: %q (use d, h, w, m, or s suffix)", s)
	}
}

// formatDurationHuman formats a duration into a human-readable string like "30 days".
func formatDurationHuman(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(d.Hours())
	if hours > 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatNumber formats an int64 with comma separators.
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if i > 0 {
			result.WriteString(",")
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// plural returns word with an "s" unless n is 1.
func plural(n int64, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
