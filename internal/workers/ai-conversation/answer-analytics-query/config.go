// internal/workers/ai-conversation/answer-analytics-query/config.go
package answeranalyticsquery

import "time"

// Config holds worker-specific settings
type Config struct {
	Timeout time.Duration
}

// LoadConfig returns the worker defaults
func LoadConfig() *Config {
	return &Config{
		Timeout: 90 * time.Second,
	}
}
