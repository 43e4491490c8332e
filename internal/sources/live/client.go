// internal/sources/live/client.go
package live

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"analytics-assistant/internal/budget"
	apperrors "analytics-assistant/internal/common/errors"
	commonhttp "analytics-assistant/internal/common/http"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/models"

	"golang.org/x/time/rate"
)

// Config points the client at the live API and sets its pacing.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	ResultCap     int
}

// Client reads current state from the live API, one entity per request.
type Client struct {
	config    Config
	http      *commonhttp.Client
	limiter   *rate.Limiter
	estimator *budget.Estimator
	logger    logger.Logger
}

// NewClient creates a rate-limited live API client.
func NewClient(config Config, est *budget.Estimator, log logger.Logger) *Client {
	if config.ResultCap <= 0 {
		config.ResultCap = 100
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = 3
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if est == nil {
		est = budget.NewEstimator(budget.DefaultDivisor)
	}

	headers := map[string]string{}
	if config.APIKey != "" {
		headers["Authorization"] = "Bearer " + config.APIKey
	}

	return &Client{
		config:    config,
		http:      commonhttp.NewClient(config.Timeout, headers),
		limiter:   rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		estimator: est,
		logger:    logger.Component(log, "live"),
	}
}

const maxPages = 20

// endpoint maps a resource to its path and fixed query.
func endpoint(r models.LiveResource) (string, url.Values, bool) {
	switch r {
	case models.LiveMembership:
		return "/groups", url.Values{}, true
	case models.LiveAutomationStatus:
		return "/flows", url.Values{}, true
	case models.LiveScheduledSends:
		return "/campaigns", url.Values{"filter": {`equals(status,"scheduled")`}}, true
	}
	return "", nil, false
}

// Fetch requests one live resource, capped at the plan limit.
func (c *Client) Fetch(ctx context.Context, plan models.FetchPlan) (*models.DataPayload, error) {
	if plan.Source != models.SourceLive {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("live client got a %s plan", plan.Source))
	}
	if len(plan.EntityIDs) == 0 {
		return nil, apperrors.NewNoAccessibleEntitiesError(string(models.SourceLive))
	}
	path, query, ok := endpoint(plan.Resource)
	if !ok {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("unknown live resource %q", plan.Resource))
	}

	limit := c.config.ResultCap
	if plan.Limit > 0 && plan.Limit < limit {
		limit = plan.Limit
	}
	query.Set("page[size]", strconv.Itoa(limit))
	next := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + query.Encode()

	start := time.Now()
	var rows []models.Row
	truncated := false

	for page := 0; next != "" && page < maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.classify(ctx, err)
		}

		var doc document
		headers := map[string]string{"X-Entity-Id": plan.EntityIDs[0]}
		if err := c.http.GetJSON(ctx, next, headers, &doc); err != nil {
			return nil, c.classify(ctx, err)
		}

		for _, res := range doc.Data {
			if len(rows) == limit {
				truncated = true
				break
			}
			rows = append(rows, normalize(plan.Resource, res))
		}
		if len(rows) >= limit {
			truncated = truncated || doc.Links.Next != ""
			break
		}
		next = doc.Links.Next
	}

	if rows == nil {
		rows = []models.Row{}
	}
	payload := &models.DataPayload{
		Source:          models.SourceLive,
		Resource:        plan.Resource,
		Rows:            rows,
		SummaryStats:    summarize(plan.Resource, rows),
		SourceLatencyMs: time.Since(start).Milliseconds(),
		Truncated:       truncated,
	}
	c.estimator.Stamp(payload)

	c.logger.Info("live resource fetched", map[string]interface{}{
		"resource":  string(plan.Resource),
		"rowCount":  len(rows),
		"truncated": truncated,
	})
	return payload, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var status *commonhttp.StatusError
	if errors.As(err, &status) {
		c.logger.Warn("live API returned an error status", map[string]interface{}{
			"status":    status.StatusCode,
			"retryable": status.Retryable(),
		})
	}
	return apperrors.NewBackendUnavailableError(string(models.SourceLive), err)
}

func summarize(r models.LiveResource, rows []models.Row) map[string]float64 {
	stats := map[string]float64{"rowCount": float64(len(rows))}
	switch r {
	case models.LiveMembership:
		var total float64
		for _, row := range rows {
			if n, ok := row["profileCount"].(int64); ok {
				total += float64(n)
			}
		}
		stats["profileCount"] = total
	case models.LiveAutomationStatus, models.LiveScheduledSends:
		for _, row := range rows {
			if s, ok := row["status"].(string); ok && s != "" {
				stats["status:"+s]++
			}
		}
	}
	return stats
}
