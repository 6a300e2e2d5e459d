package config

// Default configuration values for the agent
const (
	DefaultDestination = "127.0.0.1:8125"
	DefaultMinInterval = "5m"
	DefaultMaxInterval = "9m"
	DefaultRootPath    = "/" // when no mount point can be enumerated
	DefaultLogFormat   = "json"
)
