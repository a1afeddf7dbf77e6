package logquery

import "github.com/runnerr0/auditlog/internal/storage"

// DefaultLookahead caps how many raw rows a single occasion may absorb.
const DefaultLookahead = 300

// Row is one displayed row: the newest event of an occasion run and the
// number of raw events the run merged (always at least 1).
type Row struct {
	Event storage.Event
	Count int
}

// CollapseOccasions merges runs of adjacent events sharing an occasion id
// into one Row each. events must be id-descending; the first event of a
// run is its representative. A run ends when the occasion id changes, the
// input ends, or the run reaches maxRun events (maxRun <= 0 means
// DefaultLookahead).
//
// Adjacency is judged in the filtered input, not the unfiltered log: two
// repeats separated in the log only by events the filters excluded still
// merge. Runs are also cut at the input boundary, so a run straddling two
// pages is counted separately on each. Events without an occasion id
// never merge.
//
// Runs in one pass with memory for the output only; the sum of all Counts
// equals len(events).
func CollapseOccasions(events []storage.Event, maxRun int) []Row {
	if maxRun <= 0 {
		maxRun = DefaultLookahead
	}

	rows := make([]Row, 0, len(events))
	for _, e := range events {
		if n := len(rows); n > 0 {
			cur := &rows[n-1]
			if e.OccasionID != "" && e.OccasionID == cur.Event.OccasionID && cur.Count < maxRun {
				cur.Count++
				continue
			}
		}
		rows = append(rows, Row{Event: e, Count: 1})
	}
	return rows
}

// ExpandOccasions returns each event as its own row, for listing the
// members of one occasion group.
func ExpandOccasions(events []storage.Event) []Row {
	rows := make([]Row, len(events))
	for i, e := range events {
		rows[i] = Row{Event: e, Count: 1}
	}
	return rows
}
