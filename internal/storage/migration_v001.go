package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the append-only events table and its context side
// table. ts is stored as TEXT in tsLayout (UTC) so range predicates compare
// lexically.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ts          TEXT    NOT NULL,
			logger      TEXT    NOT NULL,
			level       TEXT    NOT NULL,
			level_num   INTEGER NOT NULL,
			message_key TEXT    NOT NULL DEFAULT '',
			message     TEXT    NOT NULL DEFAULT '',
			initiator   TEXT    NOT NULL DEFAULT 'other',
			user_id     INTEGER,
			occasion_id TEXT    NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS event_contexts (
			event_id INTEGER NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			key      TEXT    NOT NULL,
			value    TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (event_id, key)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_ts         ON events(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_events_logger     ON events(logger)`,
		`CREATE INDEX IF NOT EXISTS idx_events_level      ON events(level_num)`,
		`CREATE INDEX IF NOT EXISTS idx_events_user       ON events(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_logger_key ON events(logger, message_key)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateV002 indexes the occasion expansion path (occasion_id, id desc).
func migrateV002(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_events_occasion ON events(occasion_id, id)`)
	return err
}
