package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetentionCleaner_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, NewRetentionCleaner(openTestStore(t), RetentionConfig{Days: 0}))
}

func TestRetentionCleaner_StartupSweep(t *testing.T) {
	store := openTestStore(t)
	addEvent(t, store, Event{Logger: "PostLogger", Timestamp: baseTime.AddDate(0, 0, -40)})
	addEvent(t, store, Event{Logger: "PostLogger", Timestamp: baseTime.AddDate(0, 0, -10)})

	cleaner := NewRetentionCleaner(store, RetentionConfig{
		Days: 30,
		Now:  func() time.Time { return baseTime },
	})
	require.NotNil(t, cleaner)
	defer cleaner.Stop()

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalEvents)

	assert.Equal(t, int64(0), cleaner.Sweep(context.Background()))
}

func TestRetentionCleaner_StopIsIdempotent(t *testing.T) {
	cleaner := NewRetentionCleaner(openTestStore(t), RetentionConfig{Days: 1, Interval: time.Millisecond})
	require.NotNil(t, cleaner)

	cleaner.Stop()
	cleaner.Stop()
}

type failingPruner struct{ calls int }

func (p *failingPruner) PruneExpired(context.Context, time.Time) (int64, error) {
	p.calls++
	return 0, errors.New("disk I/O error")
}

func TestRetentionCleaner_ErrorIsLoggedNotFatal(t *testing.T) {
	p := &failingPruner{}
	cleaner := NewRetentionCleaner(p, RetentionConfig{Days: 7})
	require.NotNil(t, cleaner)
	defer cleaner.Stop()

	assert.Equal(t, int64(0), cleaner.Sweep(context.Background()))
	assert.GreaterOrEqual(t, p.calls, 2)
}
