package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	var err error
	output := captureOutput(t, func() {
		err = RunWithArgs("0.1.0-test", []string{"--version"})
	})

	assert.NoError(t, err)
	assert.Contains(t, output, "auditlog 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})

	assert.Equal(t, "auditlog 1.2.3", strings.TrimSpace(output))
}

func TestAllSubcommandsExist(t *testing.T) {
	expected := []string{"list", "search", "show", "occasions", "poll", "serve", "status", "add", "prune", "purge"}
	parser, _, _ := buildParser("test")

	for _, name := range expected {
		cmd := parser.Find(name)
		assert.NotNil(t, cmd, "subcommand %q should exist", name)
	}
}

func TestUnknownSubcommandFails(t *testing.T) {
	_, _, err := parseOnly(t, "nonexistent")
	require.Error(t, err)
}

func TestHelpFlagDoesNotError(t *testing.T) {
	err := RunWithArgs("test", []string{"--help"})
	assert.NoError(t, err)
}

func TestGlobalFlags(t *testing.T) {
	globals, _, err := parseOnly(t, "--json", "--verbose", "--config", "/tmp/test.yaml", "--db-path", "/tmp/x.db", "status")
	require.NoError(t, err)
	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/test.yaml", globals.Config)
	assert.Equal(t, "/tmp/x.db", globals.DBPath)
}

func TestListFlagsDefaults(t *testing.T) {
	_, c, err := parseOnly(t, "list")
	require.NoError(t, err)
	assert.Equal(t, 10, c.List.Count)
	assert.Equal(t, 1, c.List.Page)
	assert.Equal(t, "table", c.List.Format)
	assert.Zero(t, c.List.MaxID)
}

func TestListFilterFlags(t *testing.T) {
	_, c, err := parseOnly(t, "list",
		"--logger", "PostLogger", "--logger", "UserLogger",
		"--level", "warning", "--user", "3",
		"--message", "PostLogger:post_updated",
		"--month", "2024-03", "--last-days", "7",
		"--since", "2w", "--format", "csv", "--max-id", "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"PostLogger", "UserLogger"}, c.List.Logger)
	assert.Equal(t, []string{"warning"}, c.List.Level)
	assert.Equal(t, []int64{3}, c.List.User)
	assert.Equal(t, []string{"PostLogger:post_updated"}, c.List.Message)
	assert.Equal(t, []string{"2024-03"}, c.List.Month)
	assert.Equal(t, 7, c.List.LastDays)
	assert.Equal(t, "2w", c.List.Since)
	assert.Equal(t, "csv", c.List.Format)
	assert.Equal(t, int64(42), c.List.MaxID)
}

func TestListRejectsUnknownFormat(t *testing.T) {
	_, _, err := parseOnly(t, "list", "--format", "xml")
	require.Error(t, err)
}

func TestShowFormatFlag(t *testing.T) {
	_, c, err := parseOnly(t, "show", "--id", "17", "--format", "context")
	require.NoError(t, err)
	assert.Equal(t, "context", c.Show.Format)
	assert.Equal(t, int64(17), c.Show.ID)
}

func TestShowRequiresID(t *testing.T) {
	err := RunWithArgs("test", []string{"show"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event ID is required")
}

func TestAddRequiresLogger(t *testing.T) {
	err := RunWithArgs("test", []string{"add", "--key", "k", "--message", "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--logger is required")
}

func TestAddInitiatorDefault(t *testing.T) {
	_, c, err := parseOnly(t, "add", "--logger", "PostLogger")
	require.NoError(t, err)
	assert.Equal(t, "wp_cli", c.Add.Initiator)
	assert.Equal(t, "info", c.Add.Level)
}

func TestPollFlags(t *testing.T) {
	_, c, err := parseOnly(t, "poll", "--since-id", "9", "--interval", "2s", "--once")
	require.NoError(t, err)
	assert.Equal(t, int64(9), c.Poll.SinceID)
	assert.Equal(t, "2s", c.Poll.Interval)
	assert.True(t, c.Poll.Once)
}

func TestServeFlags(t *testing.T) {
	_, c, err := parseOnly(t, "serve", "--port", "9000", "--log-level", "debug")
	require.NoError(t, err)
	assert.Equal(t, 9000, c.Serve.Port)
	assert.Equal(t, "debug", c.Serve.LogLevel)
}

func TestPurgeRequiresAll(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestPurgeForceFlag(t *testing.T) {
	_, c, err := parseOnly(t, "purge", "--all", "--force")
	require.NoError(t, err)
	assert.True(t, c.Purge.All)
	assert.True(t, c.Purge.Force)
}

func TestParseID(t *testing.T) {
	id, err := parseID(5, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	id, err = parseID(0, []string{"12"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = parseID(0, []string{"abc"})
	assert.Error(t, err)
	_, err = parseID(0, []string{"0"})
	assert.Error(t, err)
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", formatNumber(0))
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,000", formatNumber(1000))
	assert.Equal(t, "12,345", formatNumber(12345))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
}
