package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for AddCommand.
func (c *AddCommand) Execute(args []string) error {
	if c.Logger == "" {
		return fmt.Errorf("--logger is required for add command")
	}
	if c.Key == "" {
		return fmt.Errorf("--key is required for add command")
	}
	if c.Message == "" {
		return fmt.Errorf("--message is required for add command")
	}

	cfg, err := loadConfig(c.globals, nil)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, c.executeWithStore)
}

// executeWithStore runs the add logic against a provided store (used by tests).
func (c *AddCommand) executeWithStore(store *storage.SQLiteStore) error {
	level, err := storage.ParseLevel(c.Level)
	if err != nil {
		return err
	}
	kind, err := storage.ParseInitiatorKind(c.Initiator)
	if err != nil {
		return err
	}
	if c.UserID > 0 && kind != storage.InitiatorUser {
		return fmt.Errorf("--user-id requires --initiator %s", storage.InitiatorUser)
	}

	fields, err := parseContext(c.Context)
	if err != nil {
		return err
	}

	event := &storage.Event{
		Timestamp:  time.Now(),
		Logger:     c.Logger,
		Level:      level,
		MessageKey: c.Key,
		Message:    c.Message,
		Context:    fields,
		Initiator:  storage.Initiator{Kind: kind, UserID: c.UserID},
	}

	if err := store.AddEvent(context.Background(), event); err != nil {
		return fmt.Errorf("storing event: %w", err)
	}

	message := logquery.Interpolate(event.Message, event.Context)

	// Output confirmation
	if c.globals != nil && c.globals.JSON {
		out := map[string]interface{}{
			"id":           event.ID,
			"logger":       event.Logger,
			"loglevel":     event.Level.String(),
			"message":      message,
			"ts":           event.Timestamp.Format(time.RFC3339),
			"occasions_id": event.OccasionID,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Added event #%d\n", event.ID)
	fmt.Printf("  Logger:  %s (%s)\n", event.Logger, event.Level)
	fmt.Printf("  Message: %s\n", message)
	return nil
}

// parseContext turns repeated key=value flags into a context map.
func parseContext(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(entries))
	for _, entry := range entries {
		k, v, ok := strings.Cut(entry, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --context %q, want key=value", entry)
		}
		fields[k] = v
	}
	return fields, nil
}
