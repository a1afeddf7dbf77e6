package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for PruneCommand.
func (c *PruneCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg)
	})
}

// retention resolves --older-than, falling back to retention.days.
func (c *PruneCommand) retention(cfg *config.Config) (time.Duration, error) {
	if c.OlderThan != "" {
		return parseDuration(c.OlderThan)
	}
	if cfg.Retention.Days <= 0 {
		return 0, fmt.Errorf("retention is disabled in config; pass --older-than")
	}
	return time.Duration(cfg.Retention.Days) * 24 * time.Hour, nil
}

// executeWithStore prunes a provided store (for testing).
func (c *PruneCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	ttl, err := c.retention(cfg)
	if err != nil {
		return err
	}
	olderThan := formatDurationHuman(ttl)
	cutoff := time.Now().Add(-ttl)
	ctx := context.Background()

	n, err := store.CountExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("count expired events: %w", err)
	}

	asJSON := c.globals != nil && c.globals.JSON

	if c.DryRun {
		if asJSON {
			return printPruneJSON(n, true, olderThan)
		}
		fmt.Printf("[DRY RUN] Would prune %s older than %s\n", plural(n, "event"), olderThan)
		return nil
	}

	if n == 0 {
		if asJSON {
			return printPruneJSON(0, false, olderThan)
		}
		fmt.Printf("No events to prune (older than %s)\n", olderThan)
		return nil
	}

	if !c.Force {
		fmt.Printf("This will delete %s older than %s. Proceed? [y/N]: ", plural(n, "event"), olderThan)
		if !confirm(c.stdin, "y", "yes") {
			fmt.Println("Aborted")
			return nil
		}
	}

	pruned, err := store.PruneExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	if asJSON {
		return printPruneJSON(pruned, false, olderThan)
	}
	fmt.Printf("Pruned %s older than %s\n", plural(pruned, "event"), olderThan)
	return nil
}

func printPruneJSON(n int64, dryRun bool, olderThan string) error {
	out := map[string]interface{}{
		"pruned":     n,
		"dry_run":    dryRun,
		"older_than": olderThan,
	}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(out)
}

// confirm reads one line from in (os.Stdin when nil) and reports whether
// it matches one of the accepted answers, case-insensitively.
func confirm(in io.Reader, accepted ...string) bool {
	if in == nil {
		in = os.Stdin
	}
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	input := strings.TrimSpace(scanner.Text())
	for _, a := range accepted {
		if strings.EqualFold(input, a) {
			return true
		}
	}
	return false
}
