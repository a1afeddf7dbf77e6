package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// tsLayout is the stored timestamp format, always UTC.
const tsLayout = "2006-01-02 15:04:05"

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("event not found")

// Store defines the event-table operations used by the query engine and
// the command line.
type Store interface {
	AddEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, id int64) (*Event, error)
	ScanEvents(ctx context.Context, q Query) ([]Event, error)
	CountEvents(ctx context.Context, q Query) (int64, error)
	PruneExpired(ctx context.Context, olderThan time.Time) (int64, error)
	PurgeAll(ctx context.Context) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	insertEvent   *sql.Stmt
	insertContext *sql.Stmt
	getEvent      *sql.Stmt
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

const eventColumns = `id, ts, logger, level_num, message_key, message, initiator, user_id, occasion_id`

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertEvent, err = s.db.Prepare(`
		INSERT INTO events (ts, logger, level, level_num, message_key, message, initiator, user_id, occasion_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.insertContext, err = s.db.Prepare(`
		INSERT INTO event_contexts (event_id, key, value) VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getEvent, err = s.db.Prepare(`SELECT ` + eventColumns + ` FROM events WHERE id = ?`)
	if err != nil {
		return err
	}

	return nil
}

// AddEvent appends an event. The store assigns ID; a missing timestamp
// defaults to now and a missing occasion id is derived from the event.
// This is the write path used by tests and the add command; the query
// engine never calls it.
func (s *SQLiteStore) AddEvent(ctx context.Context, event *Event) error {
	if event.Logger == "" {
		return fmt.Errorf("event logger is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Timestamp = event.Timestamp.UTC().Truncate(time.Second)
	if event.Initiator.Kind == "" {
		event.Initiator.Kind = InitiatorOther
	}
	if event.OccasionID == "" {
		event.OccasionID = OccasionID(event.Logger, event.MessageKey, event.Context)
	}

	var userID interface{}
	if event.Initiator.Kind == InitiatorUser && event.Initiator.UserID > 0 {
		userID = event.Initiator.UserID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.StmtContext(ctx, s.insertEvent).ExecContext(ctx,
		event.Timestamp.Format(tsLayout), event.Logger, event.Level.String(), int(event.Level),
		event.MessageKey, event.Message, string(event.Initiator.Kind), userID, event.OccasionID,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert event id: %w", err)
	}

	ctxStmt := tx.StmtContext(ctx, s.insertContext)
	for k, v := range event.Context {
		if _, err := ctxStmt.ExecContext(ctx, id, k, v); err != nil {
			return fmt.Errorf("insert context %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	event.ID = id
	return nil
}

// GetEvent retrieves a single event by ID, without any access filtering.
func (s *SQLiteStore) GetEvent(ctx context.Context, id int64) (*Event, error) {
	e, err := scanEvent(s.getEvent.QueryRowContext(ctx, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	events := []Event{*e}
	if err := s.loadContexts(ctx, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// ScanEvents returns events matching q, newest first, honouring q.Limit
// and q.Offset. A non-positive limit means no limit.
func (s *SQLiteStore) ScanEvents(ctx context.Context, q Query) ([]Event, error) {
	where, args := buildWhere(q)

	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	events, err := s.scanEvents(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.loadContexts(ctx, events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents returns the number of events matching q. Limit and Offset
// are ignored.
func (s *SQLiteStore) CountEvents(ctx context.Context, q Query) (int64, error) {
	where, args := buildWhere(q)

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// buildWhere renders q as a WHERE clause (with leading space) and its args.
func buildWhere(q Query) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if len(q.IDs) > 0 {
		clauses = append(clauses, "id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}
	if q.AfterID != nil {
		clauses = append(clauses, "id > ?")
		args = append(args, *q.AfterID)
	}
	if q.MaxID != nil {
		clauses = append(clauses, "id <= ?")
		args = append(args, *q.MaxID)
	}
	if q.BeforeID != nil {
		clauses = append(clauses, "id < ?")
		args = append(args, *q.BeforeID)
	}

	if len(q.TimeRanges) > 0 {
		var ranges []string
		for _, r := range q.TimeRanges {
			var parts []string
			if !r.From.IsZero() {
				parts = append(parts, "ts >= ?")
				args = append(args, r.From.UTC().Format(tsLayout))
			}
			if !r.To.IsZero() {
				parts = append(parts, "ts <= ?")
				args = append(args, r.To.UTC().Format(tsLayout))
			}
			if len(parts) == 0 {
				parts = append(parts, "1 = 1")
			}
			ranges = append(ranges, "("+strings.Join(parts, " AND ")+")")
		}
		clauses = append(clauses, "("+strings.Join(ranges, " OR ")+")")
	}

	if q.LoggersRestricted {
		if len(q.Loggers) == 0 {
			clauses = append(clauses, "0 = 1")
		} else {
			clauses = append(clauses, "logger IN ("+placeholders(len(q.Loggers))+")")
			for _, l := range q.Loggers {
				args = append(args, l)
			}
		}
	}
	if len(q.ExcludeLoggers) > 0 {
		clauses = append(clauses, "logger NOT IN ("+placeholders(len(q.ExcludeLoggers))+")")
		for _, l := range q.ExcludeLoggers {
			args = append(args, l)
		}
	}

	if q.LevelsRestricted {
		if len(q.Levels) == 0 {
			clauses = append(clauses, "0 = 1")
		} else {
			clauses = append(clauses, "level_num IN ("+placeholders(len(q.Levels))+")")
			for _, l := range q.Levels {
				args = append(args, int(l))
			}
		}
	}

	if len(q.Users) > 0 {
		clauses = append(clauses, "user_id IN ("+placeholders(len(q.Users))+")")
		for _, u := range q.Users {
			args = append(args, u)
		}
	}

	if len(q.Messages) > 0 {
		var parts []string
		for _, m := range q.Messages {
			parts = append(parts, "(logger = ? AND message_key = ?)")
			args = append(args, m.Logger, m.Key)
		}
		clauses = append(clauses, "("+strings.Join(parts, " OR ")+")")
	}

	if q.OccasionID != "" {
		clauses = append(clauses, "occasion_id = ?")
		args = append(args, q.OccasionID)
	}

	// Every search word must appear somewhere in the event.
	for _, word := range strings.Fields(q.Search) {
		pattern := "%" + escapeLike(word) + "%"
		clauses = append(clauses, `(message LIKE ? ESCAPE '\' OR logger LIKE ? ESCAPE '\' OR level LIKE ? ESCAPE '\' OR message_key LIKE ? ESCAPE '\'`+
			` OR EXISTS (SELECT 1 FROM event_contexts c WHERE c.event_id = events.id AND c.value LIKE ? ESCAPE '\'))`)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e         Event
		tsStr     string
		levelNum  int
		initiator string
		userID    sql.NullInt64
	)
	if err := row.Scan(&e.ID, &tsStr, &e.Logger, &levelNum, &e.MessageKey, &e.Message,
		&initiator, &userID, &e.OccasionID); err != nil {
		return nil, err
	}

	ts, err := time.ParseInLocation(tsLayout, tsStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("event %d: parse timestamp %q: %w", e.ID, tsStr, err)
	}
	e.Timestamp = ts
	e.Level = Level(levelNum)
	e.Initiator = Initiator{Kind: InitiatorKind(initiator)}
	if userID.Valid {
		e.Initiator.UserID = userID.Int64
	}
	e.Context = map[string]string{}
	return &e, nil
}

// scanEvents executes a query and scans results into Event slices.
func (s *SQLiteStore) scanEvents(ctx context.Context, query string, args ...interface{}) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// loadContexts fills the Context map of each event. The event rows cursor
// must already be closed.
func (s *SQLiteStore) loadContexts(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	byID := make(map[int64]int, len(events))
	args := make([]interface{}, 0, len(events))
	for i, e := range events {
		byID[e.ID] = i
		args = append(args, e.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, key, value FROM event_contexts WHERE event_id IN (`+placeholders(len(args))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query contexts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var k, v string
		if err := rows.Scan(&id, &k, &v); err != nil {
			return fmt.Errorf("scan context: %w", err)
		}
		if i, ok := byID[id]; ok {
			events[i].Context[k] = v
		}
	}
	return rows.Err()
}

// PruneExpired deletes events with timestamps before olderThan. This is
// retention housekeeping, outside the read-only query path.
func (s *SQLiteStore) PruneExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	ts := olderThan.UTC().Format(tsLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM event_contexts WHERE event_id IN (SELECT id FROM events WHERE ts < ?)`, ts,
	); err != nil {
		return 0, fmt.Errorf("prune contexts: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", ts)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// CountExpired reports how many events PruneExpired would delete.
func (s *SQLiteStore) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE ts < ?", olderThan.UTC().Format(tsLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired: %w", err)
	}
	return n, nil
}

// PurgeAll deletes every event and returns how many were removed. The id
// sequence is kept, so ids assigned afterwards still exceed every id ever
// handed out.
func (s *SQLiteStore) PurgeAll(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM event_contexts"); err != nil {
		return 0, fmt.Errorf("purge contexts: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM events")
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return n, tx.Commit()
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var maxID sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(id) FROM events").Scan(&stats.TotalEvents, &maxID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	stats.MaxID = maxID.Int64

	if stats.TotalEvents > 0 {
		var oldest, newest string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM events").Scan(&oldest, &newest)
		if err != nil {
			return nil, fmt.Errorf("event time range: %w", err)
		}
		stats.OldestEvent, _ = time.ParseInLocation(tsLayout, oldest, time.UTC)
		stats.NewestEvent, _ = time.ParseInLocation(tsLayout, newest, time.UTC)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeBytes = pageCount * pageSize
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT logger, COUNT(*) AS cnt FROM events GROUP BY logger ORDER BY cnt DESC, logger ASC LIMIT 10",
	)
	if err != nil {
		return nil, fmt.Errorf("top loggers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lc LoggerCount
		if err := rows.Scan(&lc.Logger, &lc.Count); err != nil {
			return nil, err
		}
		stats.TopLoggers = append(stats.TopLoggers, lc)
	}

	return stats, rows.Err()
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	stmts := []*sql.Stmt{s.insertEvent, s.insertContext, s.getEvent}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
