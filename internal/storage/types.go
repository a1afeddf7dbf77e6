package storage

import (
	"fmt"
	"strings"
	"time"
)

// Level is the ordered severity of an event. Higher values are more severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
	LevelAlert
	LevelEmergency
)

var levelNames = [...]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

func (l Level) String() string {
	if l < LevelDebug || l > LevelEmergency {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel resolves a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// InitiatorKind identifies who caused an event.
type InitiatorKind string

const (
	InitiatorSystem    InitiatorKind = "wp"
	InitiatorCLI       InitiatorKind = "wp_cli"
	InitiatorUser      InitiatorKind = "wp_user"
	InitiatorAnonymous InitiatorKind = "web_user"
	InitiatorOther     InitiatorKind = "other"
)

// Initiator is the tagged origin of an event. UserID is only meaningful
// for InitiatorUser.
type Initiator struct {
	Kind   InitiatorKind
	UserID int64
}

// String returns the display text used by the CLI listing.
func (i Initiator) String() string {
	switch i.Kind {
	case InitiatorSystem:
		return "System"
	case InitiatorCLI:
		return "CLI"
	case InitiatorUser:
		if i.UserID > 0 {
			return fmt.Sprintf("User #%d", i.UserID)
		}
		return "User"
	case InitiatorAnonymous:
		return "Anonymous web user"
	case InitiatorOther, "":
		return "Other"
	default:
		return string(i.Kind)
	}
}

// ParseInitiatorKind validates a stored or user-supplied initiator kind.
func ParseInitiatorKind(s string) (InitiatorKind, error) {
	switch k := InitiatorKind(strings.TrimSpace(s)); k {
	case InitiatorSystem, InitiatorCLI, InitiatorUser, InitiatorAnonymous, InitiatorOther:
		return k, nil
	case "":
		return InitiatorOther, nil
	default:
		return "", fmt.Errorf("unknown initiator %q", s)
	}
}

// Event is a single immutable row of the audit log.
type Event struct {
	ID         int64
	Timestamp  time.Time
	Logger     string
	Level      Level
	MessageKey string
	Message    string // uninterpolated template with {key} placeholders
	Context    map[string]string
	Initiator  Initiator
	OccasionID string
}

// TimeRange is an inclusive time interval. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// MessageRef names one message of one logger.
type MessageRef struct {
	Logger string
	Key    string
}

// Query is the storage-level criteria for scanning or counting events.
// Rows are always returned newest first (id descending).
type Query struct {
	IDs []int64

	AfterID  *int64 // id > AfterID
	MaxID    *int64 // id <= MaxID
	BeforeID *int64 // id < BeforeID

	TimeRanges []TimeRange // OR-ed together

	// When LoggersRestricted is set, only Loggers are matched; an empty
	// list matches nothing.
	Loggers           []string
	LoggersRestricted bool
	ExcludeLoggers    []string

	Levels           []Level
	LevelsRestricted bool

	Users      []int64
	Messages   []MessageRef
	OccasionID string
	Search     string

	Limit  int
	Offset int
}

// Stats holds aggregate statistics about the event table.
type Stats struct {
	TotalEvents       int64
	MaxID             int64
	OldestEvent       time.Time
	NewestEvent       time.Time
	DatabaseSizeBytes int64
	TopLoggers        []LoggerCount
}

// LoggerCount pairs a logger with its event count.
type LoggerCount struct {
	Logger string
	Count  int64
}
