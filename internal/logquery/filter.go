package logquery

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/auditlog/internal/storage"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// ReturnType selects between the collapsed overview and the expansion of
// a single occasion group.
type ReturnType string

const (
	ReturnOverview  ReturnType = "overview"
	ReturnOccasions ReturnType = "occasions"
)

// DateMode records which date parameter produced a DateFilter.
type DateMode int

const (
	DatesUnbounded DateMode = iota
	DatesAbsolute
	DatesLastDays
	DatesMonths
	DatesAll
)

// DateFilter is the resolved date predicate. Absolute bounds (date_from,
// date_to) always win over the relative shortcuts; among the shortcuts the
// one read last wins, in the order dates[] entries, lastdays, months.
type DateFilter struct {
	Mode     DateMode
	From     time.Time // DatesAbsolute, zero when open
	To       time.Time // DatesAbsolute, zero when open
	LastDays int
	Months   []string // YYYY-MM
}

// Ranges resolves the filter to storage time ranges. now anchors lastdays;
// loc defines calendar month boundaries.
func (d DateFilter) Ranges(now time.Time, loc *time.Location) []storage.TimeRange {
	switch d.Mode {
	case DatesAbsolute:
		return []storage.TimeRange{{From: d.From, To: d.To}}
	case DatesLastDays:
		return []storage.TimeRange{{From: now.AddDate(0, 0, -d.LastDays)}}
	case DatesMonths:
		ranges := make([]storage.TimeRange, 0, len(d.Months))
		for _, m := range d.Months {
			start, err := time.ParseInLocation("2006-01", m, loc)
			if err != nil {
				continue // validated by Compile
			}
			ranges = append(ranges, storage.TimeRange{
				From: start,
				To:   start.AddDate(0, 1, 0).Add(-time.Second),
			})
		}
		return ranges
	default:
		return nil
	}
}

// FilterSet is the canonical, validated form of a query request. It is
// built by Compile and treated as read-only afterwards; the count and row
// scans of one request are both derived from the same FilterSet.
type FilterSet struct {
	Page    int
	PerPage int
	Offset  *int

	IDs            []int64
	SinceID        *int64
	MaxIDFirstPage *int64
	LogRowID       *int64

	Dates DateFilter

	Loggers  []string
	Levels   []storage.Level
	Users    []int64
	Messages []storage.MessageRef
	Search   string

	OccasionsID             string
	OccasionsCount          int
	OccasionsCountMaxReturn int
	ReturnType              ReturnType
}

// Compiler turns raw Params into a FilterSet.
type Compiler struct {
	DefaultPerPage int
	MaxPerPage     int
	Location       *time.Location // for date-only date_from/date_to values
}

// Compile compiles p with the default Compiler.
func Compile(p Params) (FilterSet, error) {
	return Compiler{}.Compile(p)
}

func (c Compiler) withDefaults() Compiler {
	if c.MaxPerPage <= 0 {
		c.MaxPerPage = MaxPerPage
	}
	if c.DefaultPerPage <= 0 {
		c.DefaultPerPage = DefaultPerPage
	}
	if c.DefaultPerPage > c.MaxPerPage {
		c.DefaultPerPage = c.MaxPerPage
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Compile validates p. Every failure is a KindValidation *Error naming the
// offending parameter.
func (c Compiler) Compile(p Params) (FilterSet, error) {
	c = c.withDefaults()
	f := FilterSet{Page: 1, PerPage: c.DefaultPerPage, ReturnType: ReturnOverview}

	if err := c.compilePaging(p, &f); err != nil {
		return FilterSet{}, err
	}
	if err := c.compileDates(p, &f); err != nil {
		return FilterSet{}, err
	}
	if err := c.compileDimensions(p, &f); err != nil {
		return FilterSet{}, err
	}
	if err := c.compileOccasions(p, &f); err != nil {
		return FilterSet{}, err
	}
	if err := checkModes(f); err != nil {
		return FilterSet{}, err
	}
	return f, nil
}

func (c Compiler) compilePaging(p Params, f *FilterSet) error {
	page, ok, err := p.intParam("page")
	if err != nil {
		return err
	}
	if ok && page < 1 {
		return invalidParam("page", "must be at least 1")
	}

	perPage, ok, err := p.intParam("per_page")
	if err != nil {
		return err
	}
	if ok {
		switch {
		case perPage < 1:
			f.PerPage = 1
		case perPage > int64(c.MaxPerPage):
			f.PerPage = c.MaxPerPage
		default:
			f.PerPage = int(perPage)
		}
	}
	if page > 1 {
		// the skipped row count (page-1)*per_page must fit in an int
		if page-1 > int64(math.MaxInt/f.PerPage) {
			return invalidParam("page", "is too large for per_page %d", f.PerPage)
		}
		f.Page = int(page)
	}

	offset, ok, err := p.intParam("offset")
	if err != nil {
		return err
	}
	if ok {
		if offset > int64(math.MaxInt) {
			return invalidParam("offset", "is too large")
		}
		o := int(offset)
		f.Offset = &o
	}

	if f.IDs, _, err = p.intListParam("include"); err != nil {
		return err
	}
	if f.SinceID, err = optionalID(p, "since_id"); err != nil {
		return err
	}
	if f.MaxIDFirstPage, err = optionalID(p, "max_id_first_page"); err != nil {
		return err
	}
	if f.LogRowID, err = optionalID(p, "logRowID"); err != nil {
		return err
	}
	return nil
}

func optionalID(p Params, name string) (*int64, error) {
	n, ok, err := p.intParam(name)
	if err != nil || !ok {
		return nil, err
	}
	return &n, nil
}

func (c Compiler) compileDates(p Params, f *FilterSet) error {
	from, hasFrom, err := c.dateParam(p, "date_from", false)
	if err != nil {
		return err
	}
	to, hasTo, err := c.dateParam(p, "date_to", true)
	if err != nil {
		return err
	}

	// Relative shortcuts are validated even when absolute bounds will
	// override them, so a malformed request never passes silently.
	var rel DateFilter

	entries, _, err := p.listParam("dates")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		switch {
		case entry == "allDates":
			rel = DateFilter{Mode: DatesAll}
		case strings.HasPrefix(entry, "lastdays:"):
			n, err := strconv.Atoi(strings.TrimPrefix(entry, "lastdays:"))
			if err != nil || n < 0 {
				return invalidParam("dates", "invalid lastdays entry %q", entry)
			}
			rel = DateFilter{Mode: DatesLastDays, LastDays: n}
		case strings.HasPrefix(entry, "month:"):
			m := strings.TrimPrefix(entry, "month:")
			if !validMonth(m) {
				return invalidParam("dates", "invalid month entry %q, want month:YYYY-MM", entry)
			}
			if rel.Mode != DatesMonths {
				rel = DateFilter{Mode: DatesMonths}
			}
			rel.Months = appendUnique(rel.Months, m)
		default:
			return invalidParam("dates", "unknown entry %q", entry)
		}
	}

	lastDays, ok, err := p.intParam("lastdays")
	if err != nil {
		return err
	}
	if ok {
		rel = DateFilter{Mode: DatesLastDays, LastDays: int(lastDays)}
	}

	months, ok, err := p.listParam("months")
	if err != nil {
		return err
	}
	if ok && len(months) > 0 {
		rel = DateFilter{Mode: DatesMonths}
		for _, m := range months {
			m = strings.TrimPrefix(m, "month:")
			if !validMonth(m) {
				return invalidParam("months", "invalid month %q, want YYYY-MM", m)
			}
			rel.Months = appendUnique(rel.Months, m)
		}
	}

	if hasFrom || hasTo {
		if hasFrom && hasTo && to.Before(from) {
			return invalidParam("date_to", "must not be before date_from")
		}
		f.Dates = DateFilter{Mode: DatesAbsolute, From: from, To: to}
		return nil
	}
	f.Dates = rel
	return nil
}

// dateParam accepts unix seconds, YYYY-MM-DD or RFC 3339. A date-only
// upper bound covers the whole day.
func (c Compiler) dateParam(p Params, name string, endOfDay bool) (time.Time, bool, error) {
	if !p.has(name) {
		return time.Time{}, false, nil
	}
	if n, err := toInt(p[name]); err == nil {
		return time.Unix(n, 0).UTC(), true, nil
	}
	s, _, err := p.stringParam(name)
	if err != nil {
		return time.Time{}, true, err
	}
	if t, err := time.ParseInLocation("2006-01-02", s, c.Location); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Second)
		}
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, true, invalidParam(name, "must be a unix timestamp, YYYY-MM-DD or RFC 3339 time, got %q", s)
}

func validMonth(m string) bool {
	_, err := time.Parse("2006-01", m)
	return err == nil
}

func (c Compiler) compileDimensions(p Params, f *FilterSet) error {
	var err error

	if f.Loggers, _, err = p.listParam("loggers"); err != nil {
		return err
	}

	levels, _, err := p.listParam("loglevels")
	if err != nil {
		return err
	}
	for _, name := range levels {
		l, err := storage.ParseLevel(name)
		if err != nil {
			return invalidParam("loglevels", "unknown level %q", name)
		}
		f.Levels = append(f.Levels, l)
	}

	messages, _, err := p.listParam("messages")
	if err != nil {
		return err
	}
	for _, m := range messages {
		logger, key, ok := strings.Cut(m, ":")
		if !ok || logger == "" || key == "" {
			return invalidParam("messages", "invalid entry %q, want logger:message_key", m)
		}
		f.Messages = append(f.Messages, storage.MessageRef{Logger: logger, Key: key})
	}

	if f.Users, _, err = p.intListParam("users"); err != nil {
		return err
	}
	user, ok, err := p.intParam("user")
	if err != nil {
		return err
	}
	if ok && !containsID(f.Users, user) {
		f.Users = append(f.Users, user)
	}

	if f.Search, _, err = p.stringParam("search"); err != nil {
		return err
	}
	return nil
}

func (c Compiler) compileOccasions(p Params, f *FilterSet) error {
	var err error
	if f.OccasionsID, _, err = p.stringParam("occasionsID"); err != nil {
		return err
	}

	count, hasCount, err := p.intParam("occasionsCount")
	if err != nil {
		return err
	}
	f.OccasionsCount = int(count)

	maxReturn, _, err := p.intParam("occasionsCountMaxReturn")
	if err != nil {
		return err
	}
	f.OccasionsCountMaxReturn = int(maxReturn)

	rt, ok, err := p.stringParam("return_type")
	if err != nil {
		return err
	}
	if ok {
		switch ReturnType(rt) {
		case ReturnOverview, ReturnOccasions:
			f.ReturnType = ReturnType(rt)
		default:
			return invalidParam("return_type", "must be overview or occasions, got %q", rt)
		}
	}

	switch {
	case f.OccasionsID != "" && (!hasCount || f.OccasionsCount < 1):
		return invalidParam("occasionsCount", "must be a positive integer when occasionsID is set")
	case f.OccasionsID == "" && hasCount:
		return invalidParam("occasionsID", "is required when occasionsCount is set")
	case f.ReturnType == ReturnOccasions && f.OccasionsID == "":
		return invalidParam("occasionsID", "is required for return_type=occasions")
	}
	return nil
}

// checkModes rejects requests mixing id-cursor and offset semantics.
func checkModes(f FilterSet) error {
	if f.SinceID != nil {
		switch {
		case f.MaxIDFirstPage != nil:
			return invalidParam("since_id", "cannot be combined with max_id_first_page")
		case f.Page > 1:
			return invalidParam("since_id", "cannot be combined with page > 1")
		case f.Offset != nil:
			return invalidParam("since_id", "cannot be combined with offset")
		case f.OccasionsID != "":
			return invalidParam("since_id", "cannot be combined with occasionsID")
		}
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
