package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for PollCommand.
func (c *PollCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(ctx, store, cfg)
	})
}

// executeWithStore polls a provided store until ctx is cancelled, or once
// with --once.
func (c *PollCommand) executeWithStore(ctx context.Context, store *storage.SQLiteStore, cfg *config.Config) error {
	interval, err := parseDuration(c.Interval)
	if err != nil {
		return fmt.Errorf("invalid --interval value %q: %w", c.Interval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	logger, err := setupLogging(c.globals, cfg, "")
	if err != nil {
		return err
	}
	engine, err := newEngine(store, cfg, logger)
	if err != nil {
		return err
	}

	base, err := c.FilterFlags.params(time.Now())
	if err != nil {
		return err
	}
	base["per_page"] = cfg.Query.MaxPerPage

	last := c.SinceID
	if last == 0 && !c.Once {
		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		last = stats.MaxID
	}

	asJSON := c.globals != nil && c.globals.JSON
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := c.pollOnce(ctx, engine, base, last, os.Stdout, asJSON)
		if err != nil {
			return err
		}
		last = next
		if c.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce prints the rows newer than last, oldest first, and returns the
// new high-water id.
func (c *PollCommand) pollOnce(ctx context.Context, engine *logquery.Engine, base logquery.Params, last int64, w io.Writer, asJSON bool) (int64, error) {
	p := logquery.Params{}
	for k, v := range base {
		p[k] = v
	}
	p["since_id"] = last

	res, err := engine.Query(ctx, p, logquery.FullAccess())
	if err != nil {
		return last, fmt.Errorf("poll failed: %w", err)
	}
	if len(res.Rows) == 0 {
		return last, nil
	}

	var shown int64
	for _, r := range res.Rows {
		shown += int64(r.SubsequentOccasionsCount)
	}
	if skipped := res.TotalRowCount - shown; skipped > 0 {
		fmt.Fprintf(os.Stderr, "%s not shown; use list to see them\n", plural(skipped, "older new event"))
	}

	enc := json.NewEncoder(w)
	for i := len(res.Rows) - 1; i >= 0; i-- {
		r := res.Rows[i]
		if asJSON {
			if err := enc.Encode(r); err != nil {
				return last, err
			}
			continue
		}
		line := fmt.Sprintf("%s  %-8s %-20s %s", r.Date.Format("2006-01-02 15:04:05"), r.Level, r.Logger, r.Message)
		if r.SubsequentOccasionsCount > 1 {
			line += fmt.Sprintf(" (x%d)", r.SubsequentOccasionsCount)
		}
		fmt.Fprintln(w, line)
	}
	return res.MaxID, nil
}
