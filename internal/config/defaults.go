package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			DefaultPerPage:    10,
			MaxPerPage:        100,
			OccasionLookahead: 300,
			Timezone:          "Local",
		},
		Storage: StorageConfig{
			Path:       "~/.config/auditlog",
			SQLiteFile: "auditlog.db",
		},
		Retention: RetentionConfig{
			Days:               60,
			PruneIntervalHours: 24,
		},
		Server: ServerConfig{
			Host:               "127.0.0.1",
			Port:               8722,
			AuthToken:          "",
			ReadTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Access: AccessConfig{
			RestrictedLoggers: DefaultRestrictedLoggers(),
		},
	}
}
