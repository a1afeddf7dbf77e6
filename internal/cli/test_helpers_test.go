package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/storage"
)

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// testStore creates a migrated in-memory store for testing.
func testStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, db, err := storage.Open(context.Background(), storage.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})
	return store
}

// testConfig returns defaults pinned to UTC with logging kept quiet.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Query.Timezone = "UTC"
	cfg.Logging.Level = "error"
	return cfg
}

// seed appends an event with the given age.
func seed(t *testing.T, store *storage.SQLiteStore, logger, key, message string, age time.Duration, fields map[string]string) storage.Event {
	t.Helper()
	e := storage.Event{
		Timestamp:  time.Now().Add(-age),
		Logger:     logger,
		Level:      storage.LevelInfo,
		MessageKey: key,
		Message:    message,
		Context:    fields,
		Initiator:  storage.Initiator{Kind: storage.InitiatorUser, UserID: 1},
	}
	require.NoError(t, store.AddEvent(context.Background(), &e))
	return e
}

// parseOnly parses args without executing the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, error) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs(args)
	return globals, cmds, err
}
