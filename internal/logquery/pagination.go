package logquery

import "github.com/runnerr0/auditlog/internal/storage"

// PageMode is the pagination regime of one request. Exactly one is active.
type PageMode int

const (
	// ModeOffset pages by (page, per_page) from the current newest event.
	ModeOffset PageMode = iota
	// ModeSnapshot pages like ModeOffset below a pinned max_id_first_page,
	// so rows inserted after page 1 never shift later pages.
	ModeSnapshot
	// ModeSince returns only events newer than since_id, for polling.
	ModeSince
	// ModeOccasions lists the raw members of one occasion group.
	ModeOccasions
)

func (m PageMode) String() string {
	switch m {
	case ModeSnapshot:
		return "snapshot"
	case ModeSince:
		return "since"
	case ModeOccasions:
		return "occasions"
	default:
		return "offset"
	}
}

// Mode reports which pagination regime f selects.
func (f FilterSet) Mode() PageMode {
	switch {
	case f.OccasionsID != "":
		return ModeOccasions
	case f.SinceID != nil:
		return ModeSince
	case f.MaxIDFirstPage != nil:
		return ModeSnapshot
	default:
		return ModeOffset
	}
}

// window is the raw row range one request reads.
type window struct {
	mode   PageMode
	query  storage.Query // filter predicate plus id bounds, no limit/offset
	page   int
	offset int
	limit  int // raw rows that belong to the page
	peek   int // rows read past the page, never returned
}

// planWindow derives the row window for f over the compiled criteria.
func planWindow(f FilterSet, criteria storage.Query, lookahead int) window {
	w := window{
		mode:  f.Mode(),
		query: criteria,
		page:  f.Page,
		limit: f.PerPage,
		peek:  1,
	}

	switch w.mode {
	case ModeOccasions:
		w.query.OccasionID = f.OccasionsID
		w.page = 1
		w.peek = 0
		w.limit = f.OccasionsCount
		if f.OccasionsCountMaxReturn > 0 {
			w.limit = min(w.limit, f.OccasionsCountMaxReturn)
		}
		w.limit = min(w.limit, lookahead)
	case ModeSince:
		w.query.AfterID = f.SinceID
		w.page = 1
	case ModeSnapshot, ModeOffset:
		if w.mode == ModeSnapshot {
			w.query.MaxID = f.MaxIDFirstPage
		}
		w.offset = (f.Page - 1) * f.PerPage
		if f.Offset != nil {
			w.offset = *f.Offset
			w.page = *f.Offset/f.PerPage + 1
		}
	}
	return w
}

// pinned reports whether the window starts at the newest matching event
// with no fixed upper bound. Such windows are scanned first and the count
// is then pinned to the newest row read, so both see the same events even
// under concurrent inserts.
func (w window) pinned() bool {
	return w.mode == ModeSince || (w.mode == ModeOffset && w.offset == 0)
}

func (w window) scanQuery() storage.Query {
	q := w.query
	q.Limit = w.limit + w.peek
	q.Offset = w.offset
	return q
}

// pagesCount is ceil(total / perPage).
func pagesCount(total int64, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
