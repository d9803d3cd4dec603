package config

// Default values for the bot configuration.
const (
	DefaultPollingIntervalSeconds = 3
	DefaultMaxFiles               = 10
	DefaultMaxFileSizeMB          = 5
	DefaultSessionTTLMinutes      = 60
	DefaultHTTPTimeoutSeconds     = 30
	DefaultReportTextThreshold    = 50

	DefaultUserColumnWidth = 18
	DefaultNameColumnWidth = 22
)
