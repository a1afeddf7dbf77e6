package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for ShowCommand.
func (c *ShowCommand) Execute(args []string) error {
	id, err := parseID(c.ID, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg, id)
	})
}

// executeWithStore prints one event from a provided store (for testing).
func (c *ShowCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config, id int64) error {
	engine, err := newEngine(store, cfg, nil)
	if err != nil {
		return err
	}

	row, err := engine.Get(context.Background(), id, logquery.FullAccess())
	if err != nil {
		if logquery.IsKind(err, logquery.KindNotFound) {
			return fmt.Errorf("event not found: %d", id)
		}
		return err
	}

	// JSON output (--json global flag)
	if c.globals != nil && c.globals.JSON {
		c.Format = "json"
	}

	switch c.Format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(row)
	case "message":
		fmt.Println(row.Message)
	case "context":
		if len(row.Context) == 0 {
			fmt.Println("No context recorded")
			return nil
		}
		renderContext(os.Stdout, row.Context, "")
	default:
		renderEvent(os.Stdout, row)
	}
	return nil
}
