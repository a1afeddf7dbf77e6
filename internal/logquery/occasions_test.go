package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/auditlog/internal/storage"
)

// run builds id-descending events from occasion ids, newest first.
func run(occasions ...string) []storage.Event {
	events := make([]storage.Event, len(occasions))
	for i, o := range occasions {
		events[i] = storage.Event{ID: int64(len(occasions) - i), OccasionID: o}
	}
	return events
}

func counts(rows []Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Count
	}
	return out
}

func rowIDs(rows []Row) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.Event.ID
	}
	return out
}

func TestCollapseOccasions(t *testing.T) {
	tests := []struct {
		name      string
		occasions []string
		maxRun    int
		counts    []int
		ids       []int64
	}{
		{"empty", nil, 0, []int{}, []int64{}},
		{"single", []string{"a"}, 0, []int{1}, []int64{1}},
		{"one run", []string{"a", "a", "a", "a", "a"}, 0, []int{5}, []int64{5}},
		{"alternating", []string{"a", "b", "a", "b"}, 0, []int{1, 1, 1, 1}, []int64{4, 3, 2, 1}},
		{"runs", []string{"a", "a", "b", "c", "c", "c"}, 0, []int{2, 1, 3}, []int64{6, 4, 3}},
		{"no occasion id", []string{"", "", "a"}, 0, []int{1, 1, 1}, []int64{3, 2, 1}},
		{"capped", []string{"a", "a", "a", "a", "a"}, 2, []int{2, 2, 1}, []int64{5, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := CollapseOccasions(run(tt.occasions...), tt.maxRun)
			assert.Equal(t, tt.counts, counts(rows))
			assert.Equal(t, tt.ids, rowIDs(rows))
		})
	}
}

func TestCollapseOccasions_CountsSumToInput(t *testing.T) {
	events := run("a", "a", "b", "a", "a", "a", "", "c", "c", "b")
	rows := CollapseOccasions(events, 0)

	sum := 0
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Count, 1)
		sum += r.Count
	}
	assert.Equal(t, len(events), sum)
}

func TestExpandOccasions(t *testing.T) {
	rows := ExpandOccasions(run("a", "a", "a"))
	assert.Equal(t, []int{1, 1, 1}, counts(rows))
	assert.Equal(t, []int64{3, 2, 1}, rowIDs(rows))
}
