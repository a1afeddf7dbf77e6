package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	// Confirmation prompt unless --force
	if !c.Force {
		fmt.Println("⚠ WARNING: This will permanently delete ALL audit log events.")
		fmt.Println("  - All events and their context")
		fmt.Println("  - Event ids keep counting from the current maximum")
		fmt.Println()
		fmt.Println("This action cannot be undone.")
		fmt.Println()
		fmt.Print(`Type "PURGE" to confirm: `)

		in := c.stdin
		if in == nil {
			in = os.Stdin
		}
		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return fmt.Errorf("aborted: no input received")
		}
		if strings.TrimSpace(scanner.Text()) != "PURGE" {
			return fmt.Errorf("aborted: confirmation text did not match")
		}
	}

	if c.store != nil {
		return c.executeWithStore(c.store)
	}
	cfg, err := loadConfig(c.globals, nil)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, nil, c.executeWithStore)
}

// executeWithStore deletes every event in a provided store (for testing).
func (c *PurgeCommand) executeWithStore(store *storage.SQLiteStore) error {
	n, err := store.PurgeAll(context.Background())
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	// Output
	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"purged":  true,
			"deleted": n,
			"message": "all data deleted",
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(out)
	}

	fmt.Printf("Purged %s. The audit log is empty.\n", plural(n, "event"))
	return nil
}
