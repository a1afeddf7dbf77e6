package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/auditlog/internal/storage"
)

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }

func TestFilterSet_Mode(t *testing.T) {
	assert.Equal(t, ModeOffset, FilterSet{}.Mode())
	assert.Equal(t, ModeSnapshot, FilterSet{MaxIDFirstPage: int64p(9)}.Mode())
	assert.Equal(t, ModeSince, FilterSet{SinceID: int64p(9)}.Mode())
	assert.Equal(t, ModeOccasions, FilterSet{OccasionsID: "x", MaxIDFirstPage: int64p(9)}.Mode())
}

func TestPageMode_String(t *testing.T) {
	assert.Equal(t, "offset", ModeOffset.String())
	assert.Equal(t, "snapshot", ModeSnapshot.String())
	assert.Equal(t, "since", ModeSince.String())
	assert.Equal(t, "occasions", ModeOccasions.String())
}

func TestPlanWindow_Offset(t *testing.T) {
	w := planWindow(FilterSet{Page: 3, PerPage: 10}, storage.Query{}, DefaultLookahead)

	assert.Equal(t, ModeOffset, w.mode)
	assert.Equal(t, 3, w.page)
	assert.Equal(t, 20, w.offset)
	assert.False(t, w.pinned())

	q := w.scanQuery()
	assert.Equal(t, 11, q.Limit)
	assert.Equal(t, 20, q.Offset)
	assert.Nil(t, q.MaxID)
}

func TestPlanWindow_FirstPageIsPinned(t *testing.T) {
	w := planWindow(FilterSet{Page: 1, PerPage: 10}, storage.Query{}, DefaultLookahead)
	assert.True(t, w.pinned())
}

func TestPlanWindow_ExplicitOffset(t *testing.T) {
	w := planWindow(FilterSet{Page: 1, PerPage: 10, Offset: intp(25)}, storage.Query{}, DefaultLookahead)

	assert.Equal(t, 25, w.offset)
	assert.Equal(t, 3, w.page)
}

func TestPlanWindow_Snapshot(t *testing.T) {
	f := FilterSet{Page: 2, PerPage: 5, MaxIDFirstPage: int64p(40)}
	w := planWindow(f, storage.Query{Search: "x"}, DefaultLookahead)

	assert.Equal(t, ModeSnapshot, w.mode)
	assert.Equal(t, 5, w.offset)
	assert.False(t, w.pinned())
	q := w.scanQuery()
	assert.Equal(t, int64(40), *q.MaxID)
	assert.Equal(t, "x", q.Search)
	assert.Equal(t, 6, q.Limit)
}

func TestPlanWindow_Since(t *testing.T) {
	w := planWindow(FilterSet{Page: 1, PerPage: 10, SinceID: int64p(7)}, storage.Query{}, DefaultLookahead)

	assert.Equal(t, ModeSince, w.mode)
	assert.True(t, w.pinned())
	q := w.scanQuery()
	assert.Equal(t, int64(7), *q.AfterID)
	assert.Zero(t, q.Offset)
	assert.Equal(t, 11, q.Limit)
}

func TestPlanWindow_Occasions(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		maxReturn int
		lookahead int
		want      int
	}{
		{"count", 8, 0, 300, 8},
		{"max return", 8, 3, 300, 3},
		{"lookahead", 500, 0, 300, 300},
		{"max return above count", 4, 10, 300, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := FilterSet{
				Page:                    1,
				PerPage:                 10,
				OccasionsID:             "abc",
				OccasionsCount:          tt.count,
				OccasionsCountMaxReturn: tt.maxReturn,
			}
			w := planWindow(f, storage.Query{BeforeID: int64p(50)}, tt.lookahead)

			q := w.scanQuery()
			assert.Equal(t, tt.want, q.Limit)
			assert.Equal(t, "abc", q.OccasionID)
			assert.Equal(t, int64(50), *q.BeforeID)
			assert.Zero(t, q.Offset)
		})
	}
}

func TestPagesCount(t *testing.T) {
	assert.Equal(t, 0, pagesCount(0, 10))
	assert.Equal(t, 1, pagesCount(1, 10))
	assert.Equal(t, 1, pagesCount(10, 10))
	assert.Equal(t, 2, pagesCount(11, 10))
	assert.Equal(t, 0, pagesCount(5, 0))
}
