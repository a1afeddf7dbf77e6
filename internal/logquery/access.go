package logquery

import "github.com/runnerr0/auditlog/internal/storage"

// Access is the caller's read permission, decided by the caller's policy
// layer and passed into every query. The engine only enforces it.
type Access struct {
	// AllLoggers grants every logger except DeniedLoggers; otherwise only
	// Loggers are readable.
	AllLoggers    bool
	Loggers       []string
	DeniedLoggers []string

	// Levels restricts readable levels; empty means all levels.
	Levels []storage.Level
}

// FullAccess can read everything.
func FullAccess() Access {
	return Access{AllLoggers: true}
}

// LoggerAccess can read only the named loggers.
func LoggerAccess(loggers ...string) Access {
	return Access{Loggers: loggers}
}

// CanRead reports whether an event of logger at level is readable. It is
// the per-event form of the predicate that queries push into the store, for
// callers holding a single event.
func (a Access) CanRead(logger string, level storage.Level) bool {
	return a.canReadLogger(logger) && a.canReadLevel(level)
}

func (a Access) canReadLogger(logger string) bool {
	for _, d := range a.DeniedLoggers {
		if d == logger {
			return false
		}
	}
	if a.AllLoggers {
		return true
	}
	for _, l := range a.Loggers {
		if l == logger {
			return true
		}
	}
	return false
}

func (a Access) canReadLevel(level storage.Level) bool {
	if len(a.Levels) == 0 {
		return true
	}
	for _, l := range a.Levels {
		if l == level {
			return true
		}
	}
	return false
}

// readsNothing reports a caller with no read access at all.
func (a Access) readsNothing() bool {
	if a.AllLoggers {
		return false
	}
	for _, l := range a.Loggers {
		if a.canReadLogger(l) {
			return false
		}
	}
	return true
}

// apply folds the access predicate into q together with the requested
// logger and level filters.
func (a Access) apply(q *storage.Query, loggers []string, levels []storage.Level) {
	switch {
	case len(loggers) > 0:
		q.LoggersRestricted = true
		q.Loggers = []string{}
		for _, l := range loggers {
			if a.canReadLogger(l) {
				q.Loggers = append(q.Loggers, l)
			}
		}
	case !a.AllLoggers:
		q.LoggersRestricted = true
		q.Loggers = []string{}
		for _, l := range a.Loggers {
			if a.canReadLogger(l) {
				q.Loggers = appendUnique(q.Loggers, l)
			}
		}
	default:
		q.ExcludeLoggers = append([]string(nil), a.DeniedLoggers...)
	}

	switch {
	case len(levels) > 0:
		q.LevelsRestricted = true
		q.Levels = []storage.Level{}
		for _, l := range levels {
			if a.canReadLevel(l) {
				q.Levels = append(q.Levels, l)
			}
		}
	case len(a.Levels) > 0:
		q.LevelsRestricted = true
		q.Levels = append([]storage.Level(nil), a.Levels...)
	}
}
