package logquery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/runnerr0/auditlog/internal/storage"
)

func TestAccess_CanRead(t *testing.T) {
	full := FullAccess()
	assert.True(t, full.CanRead("UserLogger", storage.LevelDebug))

	limited := Access{AllLoggers: true, DeniedLoggers: []string{"SecretLogger"}, Levels: []storage.Level{storage.LevelError}}
	assert.True(t, limited.CanRead("UserLogger", storage.LevelError))
	assert.False(t, limited.CanRead("UserLogger", storage.LevelInfo))
	assert.False(t, limited.CanRead("SecretLogger", storage.LevelError))

	only := LoggerAccess("UserLogger")
	assert.True(t, only.CanRead("UserLogger", storage.LevelInfo))
	assert.False(t, only.CanRead("PostLogger", storage.LevelInfo))
}

func TestAccess_ReadsNothing(t *testing.T) {
	assert.False(t, FullAccess().readsNothing())
	assert.False(t, LoggerAccess("UserLogger").readsNothing())
	assert.True(t, LoggerAccess().readsNothing())
	assert.True(t, Access{Loggers: []string{"A"}, DeniedLoggers: []string{"A"}}.readsNothing())
}

func TestAccess_Apply(t *testing.T) {
	tests := []struct {
		name    string
		access  Access
		loggers []string
		levels  []storage.Level
		want    storage.Query
	}{
		{
			name:   "full access, no filters",
			access: FullAccess(),
			want:   storage.Query{},
		},
		{
			name:   "denied loggers excluded",
			access: Access{AllLoggers: true, DeniedLoggers: []string{"SecretLogger"}},
			want:   storage.Query{ExcludeLoggers: []string{"SecretLogger"}},
		},
		{
			name:    "requested loggers intersected",
			access:  LoggerAccess("UserLogger", "PostLogger"),
			loggers: []string{"PostLogger", "SecretLogger"},
			want:    storage.Query{Loggers: []string{"PostLogger"}, LoggersRestricted: true},
		},
		{
			name:    "nothing readable requested",
			access:  LoggerAccess("UserLogger"),
			loggers: []string{"SecretLogger"},
			want:    storage.Query{Loggers: []string{}, LoggersRestricted: true},
		},
		{
			name:   "allow list without request",
			access: LoggerAccess("UserLogger", "UserLogger"),
			want:   storage.Query{Loggers: []string{"UserLogger"}, LoggersRestricted: true},
		},
		{
			name:   "requested levels intersected",
			access: Access{AllLoggers: true, Levels: []storage.Level{storage.LevelError}},
			levels: []storage.Level{storage.LevelError, storage.LevelInfo},
			want: storage.Query{
				Levels:           []storage.Level{storage.LevelError},
				LevelsRestricted: true,
			},
		},
		{
			name:   "level allow list without request",
			access: Access{AllLoggers: true, Levels: []storage.Level{storage.LevelWarning}},
			want: storage.Query{
				Levels:           []storage.Level{storage.LevelWarning},
				LevelsRestricted: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q storage.Query
			tt.access.apply(&q, tt.loggers, tt.levels)
			assert.Equal(t, tt.want, q)
		})
	}
}
