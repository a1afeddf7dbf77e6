package logquery

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/auditlog/internal/storage"
)

// EventSource is the read side of the event store.
type EventSource interface {
	ScanEvents(ctx context.Context, q storage.Query) ([]storage.Event, error)
	CountEvents(ctx context.Context, q storage.Query) (int64, error)
}

// Options configures an Engine. Zero values select the package defaults.
type Options struct {
	DefaultPerPage int
	MaxPerPage     int
	Lookahead      int
	Location       *time.Location // local time for ResultRow.Date and month bounds
	Now            func() time.Time
	Logger         *slog.Logger
}

// Engine answers log queries against an EventSource. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	src       EventSource
	compiler  Compiler
	lookahead int
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

// NewEngine creates an Engine reading from src.
func NewEngine(src EventSource, opts Options) *Engine {
	e := &Engine{
		src:       src,
		lookahead: opts.Lookahead,
		loc:       opts.Location,
		now:       opts.Now,
		log:       opts.Logger,
	}
	if e.lookahead <= 0 {
		e.lookahead = DefaultLookahead
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.compiler = Compiler{
		DefaultPerPage: opts.DefaultPerPage,
		MaxPerPage:     opts.MaxPerPage,
		Location:       e.loc,
	}.withDefaults()
	return e
}

// Compile validates p with the engine's paging limits and time zone.
func (e *Engine) Compile(p Params) (FilterSet, error) {
	return e.compiler.Compile(p)
}

// ResultRow is one row of a query result, ready for serialization.
type ResultRow struct {
	ID                       int64             `json:"id" yaml:"id"`
	Date                     time.Time         `json:"date" yaml:"date"`
	DateGMT                  time.Time         `json:"date_gmt" yaml:"date_gmt"`
	Logger                   string            `json:"logger" yaml:"logger"`
	Level                    string            `json:"loglevel" yaml:"loglevel"`
	MessageKey               string            `json:"message_key" yaml:"message_key"`
	Message                  string            `json:"message" yaml:"message"`
	MessageUninterpolated    string            `json:"message_uninterpolated" yaml:"message_uninterpolated"`
	Initiator                string            `json:"initiator" yaml:"initiator"`
	InitiatorText            string            `json:"initiator_text" yaml:"initiator_text"`
	UserID                   int64             `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	OccasionsID              string            `json:"occasions_id" yaml:"occasions_id"`
	SubsequentOccasionsCount int               `json:"subsequent_occasions_count" yaml:"subsequent_occasions_count"`
	ContinuesOnNextPage      bool              `json:"continues_on_next_page,omitempty" yaml:"continues_on_next_page,omitempty"`
	Context                  map[string]string `json:"context" yaml:"context"`
}

// QueryResult is one page of rows plus the pagination metadata.
//
// PagesCount is always ceil(TotalRowCount/PerPage). In since mode only the
// first page can be requested; a client reads the rest by polling again
// with since_id set to MaxID.
type QueryResult struct {
	Rows          []ResultRow `json:"log_rows" yaml:"log_rows"`
	TotalRowCount int64       `json:"total_row_count" yaml:"total_row_count"`
	PageCurrent   int         `json:"page_current" yaml:"page_current"`
	PagesCount    int         `json:"pages_count" yaml:"pages_count"`
	PerPage       int         `json:"per_page" yaml:"per_page"`
	Mode          string      `json:"mode" yaml:"mode"`

	// MaxID and MinID are the newest and oldest row ids on this page.
	MaxID int64 `json:"max_id" yaml:"max_id"`
	MinID int64 `json:"min_id" yaml:"min_id"`

	// SnapshotMaxID is the max_id_first_page to send with later pages of
	// the same listing. Zero when the request cannot pin one.
	SnapshotMaxID int64 `json:"max_id_first_page,omitempty" yaml:"max_id_first_page,omitempty"`
}

// Query compiles p and runs it for a caller with access.
func (e *Engine) Query(ctx context.Context, p Params, access Access) (*QueryResult, error) {
	f, err := e.compiler.Compile(p)
	if err != nil {
		return nil, err
	}
	return e.QueryFilters(ctx, f, access)
}

// QueryFilters runs an already compiled FilterSet.
func (e *Engine) QueryFilters(ctx context.Context, f FilterSet, access Access) (*QueryResult, error) {
	if access.readsNothing() {
		return nil, &Error{Kind: KindPermission, Detail: "caller may not read any logger"}
	}

	w := planWindow(f, e.criteria(f, access), e.lookahead)
	start := time.Now()

	var (
		events []storage.Event
		total  int64
	)
	if w.pinned() {
		var err error
		if events, err = e.src.ScanEvents(ctx, w.scanQuery()); err != nil {
			return nil, storageError("scan events", err)
		}
		if len(events) > 0 {
			newest := events[0].ID
			q := w.query
			q.MaxID = &newest
			if total, err = e.src.CountEvents(ctx, q); err != nil {
				return nil, storageError("count events", err)
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			if events, err = e.src.ScanEvents(gctx, w.scanQuery()); err != nil {
				return storageError("scan events", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			if total, err = e.src.CountEvents(gctx, w.query); err != nil {
				return storageError("count events", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	res := e.assemble(f, w, events, total)
	e.log.Debug("log query",
		"mode", res.Mode,
		"page", res.PageCurrent,
		"per_page", res.PerPage,
		"rows", len(res.Rows),
		"total", res.TotalRowCount,
		"elapsed", time.Since(start))
	return res, nil
}

// Get returns the single event id as a result row. Events that do not
// exist and events the caller may not read are both KindNotFound.
func (e *Engine) Get(ctx context.Context, id int64, access Access) (*ResultRow, error) {
	f := FilterSet{
		Page:       1,
		PerPage:    1,
		IDs:        []int64{id},
		ReturnType: ReturnOverview,
	}
	res, err := e.QueryFilters(ctx, f, access)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, &Error{Kind: KindNotFound, Param: "id", Detail: "no event with that id"}
	}
	return &res.Rows[0], nil
}

// CountNewer counts events matching p with an id above since_id, which p
// must carry. It backs the has-updates check of polling clients.
func (e *Engine) CountNewer(ctx context.Context, p Params, access Access) (int64, error) {
	f, err := e.compiler.Compile(p)
	if err != nil {
		return 0, err
	}
	if f.Mode() != ModeSince {
		return 0, invalidParam("since_id", "is required")
	}
	if access.readsNothing() {
		return 0, &Error{Kind: KindPermission, Detail: "caller may not read any logger"}
	}

	q := e.criteria(f, access)
	q.AfterID = f.SinceID
	n, err := e.src.CountEvents(ctx, q)
	if err != nil {
		return 0, storageError("count events", err)
	}
	return n, nil
}

// criteria is the filter predicate shared by the count and the scan.
func (e *Engine) criteria(f FilterSet, access Access) storage.Query {
	q := storage.Query{
		IDs:        f.IDs,
		BeforeID:   f.LogRowID,
		TimeRanges: f.Dates.Ranges(e.now(), e.loc),
		Users:      f.Users,
		Messages:   f.Messages,
		Search:     f.Search,
	}
	access.apply(&q, f.Loggers, f.Levels)
	return q
}

func (e *Engine) assemble(f FilterSet, w window, events []storage.Event, total int64) *QueryResult {
	var peeked *storage.Event
	if len(events) > w.limit {
		peeked = &events[w.limit]
		events = events[:w.limit]
	}

	var rows []Row
	if w.mode == ModeOccasions {
		rows = ExpandOccasions(events)
	} else {
		rows = CollapseOccasions(events, e.lookahead)
	}

	res := &QueryResult{
		Rows:          make([]ResultRow, len(rows)),
		TotalRowCount: total,
		PageCurrent:   w.page,
		PagesCount:    pagesCount(total, w.limit),
		PerPage:       w.limit,
		Mode:          w.mode.String(),
	}
	for i, r := range rows {
		res.Rows[i] = e.resultRow(r)
	}
	if n := len(res.Rows); n > 0 && peeked != nil && peeked.OccasionID != "" &&
		peeked.OccasionID == res.Rows[n-1].OccasionsID {
		res.Rows[n-1].ContinuesOnNextPage = true
	}

	if len(events) > 0 {
		res.MaxID = events[0].ID
		res.MinID = events[len(events)-1].ID
	}
	switch {
	case w.mode == ModeSnapshot:
		res.SnapshotMaxID = *f.MaxIDFirstPage
	case w.mode == ModeOffset && w.offset == 0:
		res.SnapshotMaxID = res.MaxID
	}
	return res
}

func (e *Engine) resultRow(r Row) ResultRow {
	ev := r.Event
	fields := ev.Context
	if fields == nil {
		fields = map[string]string{}
	}
	return ResultRow{
		ID:                       ev.ID,
		Date:                     ev.Timestamp.In(e.loc),
		DateGMT:                  ev.Timestamp.UTC(),
		Logger:                   ev.Logger,
		Level:                    ev.Level.String(),
		MessageKey:               ev.MessageKey,
		Message:                  Interpolate(ev.Message, fields),
		MessageUninterpolated:    ev.Message,
		Initiator:                string(ev.Initiator.Kind),
		InitiatorText:            ev.Initiator.String(),
		UserID:                   ev.Initiator.UserID,
		OccasionsID:              ev.OccasionID,
		SubsequentOccasionsCount: r.Count,
		Context:                  fields,
	}
}
