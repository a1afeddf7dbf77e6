package config

// DefaultRestrictedLoggers returns the loggers hidden from HTTP callers that
// do not present the admin token. They record account, credential and
// site-configuration changes.
func DefaultRestrictedLoggers() []string {
	return []string{
		// Accounts & authentication
		"UserLogger",
		"LoginLogger",

		// Site configuration
		"OptionsLogger",
		"PluginLogger",
		"ThemeLogger",
		"CoreUpdatesLogger",

		// Data export & privacy
		"ExportLogger",
		"PrivacyLogger",
	}
}
