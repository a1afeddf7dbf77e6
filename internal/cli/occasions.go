package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/runnerr0/auditlog/internal/config"
	"github.com/runnerr0/auditlog/internal/logquery"
	"github.com/runnerr0/auditlog/internal/storage"
)

// Execute implements the go-flags Commander interface for OccasionsCommand.
func (c *OccasionsCommand) Execute(args []string) error {
	id, err := parseID(c.ID, args)
	if err != nil {
		return err
	}
	if c.Count < 1 {
		return fmt.Errorf("--count is required (the COUNT shown for the row)")
	}
	cfg, err := loadConfig(c.globals, c.cfg)
	if err != nil {
		return err
	}
	return withStore(c.globals, cfg, c.store, func(store *storage.SQLiteStore) error {
		return c.executeWithStore(store, cfg, id)
	})
}

// executeWithStore expands a collapsed row from a provided store (for
// testing). The row itself is printed first, followed by the older events
// folded into it.
func (c *OccasionsCommand) executeWithStore(store *storage.SQLiteStore, cfg *config.Config, id int64) error {
	engine, err := newEngine(store, cfg, nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	access := logquery.FullAccess()
	row, err := engine.Get(ctx, id, access)
	if err != nil {
		if logquery.IsKind(err, logquery.KindNotFound) {
			return fmt.Errorf("event not found: %d", id)
		}
		return err
	}

	res := &logquery.QueryResult{
		Rows:          []logquery.ResultRow{*row},
		TotalRowCount: 1,
		PageCurrent:   1,
		PagesCount:    1,
		PerPage:       1,
		Mode:          logquery.ModeOccasions.String(),
	}
	if c.Count > 1 {
		p := logquery.Params{
			"occasionsID":    row.OccasionsID,
			"occasionsCount": c.Count - 1,
			"logRowID":       row.ID,
			"return_type":    string(logquery.ReturnOccasions),
		}
		if c.Max > 0 {
			p["occasionsCountMaxReturn"] = c.Max
		}
		older, err := engine.Query(ctx, p, access)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		res.Rows = append(res.Rows, older.Rows...)
		res.TotalRowCount = int64(len(res.Rows))
		res.PerPage = len(res.Rows)
	}
	if c.Max > 0 && len(res.Rows) > c.Max {
		res.Rows = res.Rows[:c.Max]
		res.TotalRowCount = int64(c.Max)
		res.PerPage = c.Max
	}
	res.MaxID = res.Rows[0].ID
	res.MinID = res.Rows[len(res.Rows)-1].ID

	format := formatTable
	if c.globals != nil && c.globals.JSON {
		format = formatJSON
	}
	return renderResult(os.Stdout, res, format)
}
