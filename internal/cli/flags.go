package cli

import (
	"io"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DBPath  string `long:"db-path" description:"Path to the SQLite database (overrides config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// FilterFlags are the event filters shared by list and search.
type FilterFlags struct {
	Since    string   `long:"since" description:"Only events newer than duration (e.g., 7d, 24h, 2w)"`
	Until    string   `long:"until" description:"Only events older than duration"`
	LastDays int      `long:"last-days" description:"Only events from the last N days"`
	Month    []string `long:"month" description:"Only events from month YYYY-MM (repeatable)"`
	Logger   []string `long:"logger" description:"Filter by logger (repeatable)"`
	Level    []string `long:"level" description:"Filter by level, e.g. warning (repeatable)"`
	User     []int64  `long:"user" description:"Filter by initiating user id (repeatable)"`
	Message  []string `long:"message" description:"Filter by logger:message_key (repeatable)"`
}

// OutputFlags select the page and rendering of a listing.
type OutputFlags struct {
	Count  int    `long:"count" description:"Rows per page" default:"10"`
	Page   int    `long:"page" description:"Page number" default:"1"`
	MaxID  int64  `long:"max-id" description:"Snapshot bound printed by a previous page"`
	Format string `long:"format" description:"Output format" choice:"table" choice:"json" choice:"csv" choice:"yaml" default:"table"`
}

// ListCommand lists events newest first, with repeats collapsed.
type ListCommand struct {
	FilterFlags
	OutputFlags
	Search string `long:"search" description:"Only events containing all words"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore // injectable for testing; nil means open default DB
	cfg     *config.Config
}

// SearchCommand searches events by keyword with filters.
type SearchCommand struct {
	FilterFlags
	OutputFlags
	Query string `long:"query" description:"Search words (or pass them as arguments)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
}

// ShowCommand prints a single event.
type ShowCommand struct {
	ID     int64  `long:"id" description:"Event ID (or pass it as the argument)"`
	Format string `long:"format" description:"Output format" choice:"full" choice:"json" choice:"message" choice:"context" default:"full"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
}

// OccasionsCommand lists the raw events folded into one collapsed row.
type OccasionsCommand struct {
	ID    int64 `long:"id" description:"ID of the collapsed row (or pass it as the argument)"`
	Count int   `long:"count" description:"Occurrence count printed for the row (required)"`
	Max   int   `long:"max" description:"Return at most this many events"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
}

// PollCommand prints new events as they arrive.
type PollCommand struct {
	FilterFlags
	SinceID  int64  `long:"since-id" description:"Print events after this id (default: current newest)"`
	Interval string `long:"interval" description:"Polling interval" default:"5s"`
	Once     bool   `long:"once" description:"Poll once and exit"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
}

// ServeCommand runs the HTTP query API.
type ServeCommand struct {
	Host     string `long:"host" description:"Override listen host"`
	Port     int    `long:"port" description:"Override listen port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
	started func(addr string) // called once the listener is bound
}

// StatusCommand shows database statistics and configuration summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
	dbPath  string
}

// AddCommand appends an event by hand, for operations and testing.
type AddCommand struct {
	Logger    string   `long:"logger" description:"Logger name (required)"`
	Key       string   `long:"key" description:"Message key (required)"`
	Message   string   `long:"message" description:"Message template with {key} placeholders (required)"`
	Level     string   `long:"level" description:"Level" default:"info"`
	Context   []string `long:"context" description:"Context entry key=value (repeatable)"`
	Initiator string   `long:"initiator" description:"Initiator kind" choice:"wp" choice:"wp_cli" choice:"wp_user" choice:"web_user" choice:"other" default:"wp_cli"`
	UserID    int64    `long:"user-id" description:"Initiating user id (with --initiator wp_user)"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
}

// PruneCommand applies retention pruning to remove old events.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 30d)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force     bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	cfg     *config.Config
	stdin   io.Reader // injectable for testing; nil means os.Stdin
}

// PurgeCommand deletes all events with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.SQLiteStore
	stdin   io.Reader
}
