package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for ListCommand.
func (c *ListCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg)
	})
}

// executeWithStore runs the listing against a provided store (for testing).
func (c *ListCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	return runListing(store, cfg, c.globals, c.FilterFlags, c.OutputFlags, c.Search)
}

// runListing compiles the flags into a query, runs it with full access,
// and renders the page to stdout.
func runListing(store *storage.SQLiteStore, cfg *config.Config, globals *GlobalFlags, filters FilterFlags, output OutputFlags, search string) error {
	logger, err := setupLogging(globals, cfg, "")
	if err != nil {
		return err
	}
	engine, err := newEngine(store, cfg, logger)
	if err != nil {
		return err
	}

	p, err := filters.params(time.Now())
	if err != nil {
		return err
	}
	output.apply(p)
	if search = strings.TrimSpace(search); search != "" {
		p["search"] = search
	}

	res, err := engine.Query(context.Background(), p, logquery.FullAccess())
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	format := output.Format
	if globals != nil && globals.JSON {
		format = formatJSON
	}
	return renderResult(os.Stdout, res, format)
}
