// internal/workers/ai-conversation/route-data-source/config.go
package routedatasource

import "time"

// Config holds worker-specific settings
type Config struct {
	Timeout time.Duration
}

// LoadConfig returns the worker defaults
func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
