// internal/assistant/outage.go
package assistant

import (
	"context"
	"fmt"
	"time"

	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"

	"github.com/redis/go-redis/v9"
)

// Notifier delivers an operator notice.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// OutageConfig sets how many failures within Window raise a notice.
type OutageConfig struct {
	Threshold int
	Window    time.Duration
	KeyPrefix string
}

// OutageTracker counts BackendUnavailable failures per source in a fixed
// window shared by every replica, and sends one notice when a source
// reaches the threshold within that window.
type OutageTracker struct {
	rdb      redis.Cmdable
	notifier Notifier
	config   OutageConfig
	logger   logger.Logger
}

// NewOutageTracker counts in rdb. A nil notifier only logs.
func NewOutageTracker(rdb redis.Cmdable, notifier Notifier, config OutageConfig, log logger.Logger) *OutageTracker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "assistant:outage:"
	}
	return &OutageTracker{
		rdb:      rdb,
		notifier: notifier,
		config:   config,
		logger:   logger.Component(log, "outage"),
	}
}

// Record counts one failure. It reports whether this failure crossed the
// threshold. Tracking problems are logged and never fail the request.
func (o *OutageTracker) Record(ctx context.Context, source models.Source) bool {
	if o == nil || o.rdb == nil {
		return false
	}
	key := o.config.KeyPrefix + string(source)

	count, err := o.rdb.Incr(ctx, key).Result()
	if err != nil {
		o.logger.Warn("outage counter unavailable", map[string]interface{}{"error": err.Error()})
		return false
	}
	if count == 1 {
		if err := o.rdb.Expire(ctx, key, o.config.Window).Err(); err != nil {
			o.logger.Warn("outage window not set", map[string]interface{}{"error": err.Error()})
		}
	}
	if count != int64(o.config.Threshold) {
		return false
	}

	o.logger.Error("backend outage threshold reached", map[string]interface{}{
		"source":   string(source),
		"failures": count,
		"windowMs": o.config.Window.Milliseconds(),
	})
	if o.notifier != nil {
		subject := fmt.Sprintf("Analytics assistant: %s source unavailable", source)
		message := fmt.Sprintf("%d BackendUnavailable failures from the %s source within %s. Answers are being served from fallback sources.",
			count, source, o.config.Window)
		if err := o.notifier.Notify(ctx, subject, message); err != nil {
			o.logger.Warn("outage notice not sent", map[string]interface{}{"error": err.Error()})
		}
	}
	return true
}
