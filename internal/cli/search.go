package cli

import (
	"fmt"
	"strings"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg, args)
	})
}

// executeWithStore runs the search against a provided store (for testing).
func (c *SearchCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config, args []string) error {
	query := c.Query
	if query == "" && len(args) > 0 {
		query = strings.Join(args, " ")
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search words are required (use --query or pass as arguments)")
	}
	return runListing(store, cfg, c.globals, c.FilterFlags, c.OutputFlags, query)
}
