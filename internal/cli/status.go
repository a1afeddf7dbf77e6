package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string            `json:"version"`
	DatabasePath      string            `json:"database_path"`
	DatabaseSizeBytes int64             `json:"database_size_bytes"`
	TotalEvents       int64             `json:"total_events"`
	MaxID             int64             `json:"max_id"`
	OldestEvent       string            `json:"oldest_event,omitempty"`
	NewestEvent       string            `json:"newest_event,omitempty"`
	RetentionDays     int               `json:"retention_days"`
	TopLoggers        []loggerCountJSON `json:"top_loggers"`
	ServerAddr        string            `json:"server_addr"`
	ServerRunning     bool              `json:"server_running"`
}

type loggerCountJSON struct {
	Logger string `json:"logger"`
	Count  int64  `json:"count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	if c.dbPath == "" {
		if c.dbPath, err = resolveDBPath(c.globals, cfg); err != nil {
			return err
		}
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg)
	})
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config) error {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	dbSize := stats.DatabaseSizeBytes
	if info, err := os.Stat(c.dbPath); err == nil {
		dbSize = info.Size()
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	running := checkServer(addr)

	if c.globals != nil && c.globals.JSON {
		return c.printStatusJSON(stats, dbSize, cfg.Retention.Days, addr, running)
	}
	return c.printStatusHuman(stats, dbSize, cfg.Retention.Days, addr, running)
}

func (c *StatusCommand) printStatusHuman(stats *storage.Stats, dbSize int64, retentionDays int, addr string, running bool) error {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bold := lipgloss.NewStyle().Bold(true)

	fmt.Println(bold.Render("Audit Log Status"))
	fmt.Println("================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Database:      %s (%s)\n", c.dbPath, formatBytes(dbSize))
	fmt.Printf("Events:        %s\n", formatNumber(stats.TotalEvents))

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Printf("Newest ID:     %d\n", stats.MaxID)
		fmt.Printf("Oldest:        %s\n", stats.OldestEvent.Local().Format("2006-01-02"))
		fmt.Printf("Newest:        %s\n", stats.NewestEvent.Local().Format("2006-01-02"))
	}

	if retentionDays > 0 {
		fmt.Printf("Retention:     %d days\n", retentionDays)
	} else {
		fmt.Println("Retention:     keep forever")
	}

	if len(stats.TopLoggers) > 0 {
		fmt.Println()
		fmt.Println("Top Loggers:")
		for _, l := range stats.TopLoggers {
			fmt.Printf("  %-24s %s\n", l.Logger, formatNumber(l.Count))
		}
	}

	fmt.Println()
	if running {
		fmt.Printf("Server:        %s %s\n", green.Render("running"), dim.Render(addr))
	} else {
		fmt.Printf("Server:        not running %s\n", dim.Render(addr))
	}

	return nil
}

func (c *StatusCommand) printStatusJSON(stats *storage.Stats, dbSize int64, retentionDays int, addr string, running bool) error {
	out := statusJSON{
		Version:           c.version,
		DatabasePath:      c.dbPath,
		DatabaseSizeBytes: dbSize,
		TotalEvents:       stats.TotalEvents,
		MaxID:             stats.MaxID,
		RetentionDays:     retentionDays,
		TopLoggers:        make([]loggerCountJSON, len(stats.TopLoggers)),
		ServerAddr:        addr,
		ServerRunning:     running,
	}

	if stats.TotalEvents > 0 {
		out.OldestEvent = stats.OldestEvent.UTC().Format(time.RFC3339)
		out.NewestEvent = stats.NewestEvent.UTC().Format(time.RFC3339)
	}

	for i, l := range stats.TopLoggers {
		out.TopLoggers[i] = loggerCountJSON{Logger: l.Logger, Count: l.Count}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// checkServer attempts an HTTP GET to the health endpoint at addr.
// Returns true if the server responds within 1 second.
func checkServer(addr string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
