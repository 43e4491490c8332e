package app

import (
	"context"
	"testing"
	"time"

	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoProvider struct {
	models []string
}

func (e *echoProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	e.models = append(e.models, req.Model)
	return &llm.CompletionResponse{Model: req.Model, Text: "answer from " + req.Model, Usage: models.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "analytics-assistant"},
		Routing: config.RoutingConfig{SnapshotTopN: 10, RouterTimeoutMs: 500},
		Budget:  config.BudgetConfig{TokenDivisor: 4},
		Mode:    config.ModeConfig{MaxLimit: 1000, PromptReserveTokens: 1000},
		Models: config.ModelsConfig{
			MaxTokens: 500,
			Ranked: []config.ModelCandidate{
				{ID: "primary", InputPerMillion: 3, OutputPerMillion: 15, TimeoutMs: 20000},
				{ID: "cheap", InputPerMillion: 0.1, OutputPerMillion: 0.4, DisableReprompting: true},
			},
		},
	}
}

func TestBuild_WithoutBackends(t *testing.T) {
	provider := &echoProvider{}
	a, err := Build(context.Background(), testConfig(), Options{Provider: provider}, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Postgres)
	assert.Nil(t, a.Redis)
	assert.Empty(t, a.ReadinessChecks())
	assert.True(t, a.Fetchers.Has(models.SourceHistorical))
	assert.True(t, a.Fetchers.Has(models.SourceLive))

	snap := &models.Snapshot{Version: 1}
	for i := 1; i <= 10; i++ {
		snap.TopPerformers = append(snap.TopPerformers, models.RankedEntity{Rank: i, EntityID: "e", Metric: "revenue", Value: float64(i)})
	}
	result, err := a.Service.Answer(context.Background(), models.AnswerRequest{
		Query:    "What are my top 10 entities by revenue?",
		Snapshot: snap,
	})
	require.NoError(t, err)
	assert.Equal(t, "answer from primary", result.Answer)
	assert.Equal(t, []string{"primary"}, provider.models)
}

func TestBuild_HistoricalWithoutStoreDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Database.Redis.Address = mr.Addr()
	cfg.Cache = config.CacheConfig{Enabled: true, TTLMs: 60000}
	cfg.Alerts = config.AlertsConfig{OutageThreshold: 5, WindowMs: 60000}

	a, err := Build(context.Background(), cfg, Options{Provider: &echoProvider{}}, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer a.Close()
	assert.Contains(t, a.ReadinessChecks(), "redis")

	result, err := a.Service.Answer(context.Background(), models.AnswerRequest{
		Query:     "Show me top 50 entities by revenue last month",
		EntityIDs: []string{"e1", "e2"},
		Snapshot:  &models.Snapshot{Version: 1},
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, models.SourceSnapshot, result.FetchMetadata.Source)
	assert.True(t, mr.Exists("assistant:outage:historical"))
}

func TestInvokerConfig(t *testing.T) {
	ic := invokerConfig(testConfig())

	assert.Equal(t, 20*time.Second, ic.ModelTimeouts["primary"])
	_, ok := ic.ModelTimeouts["cheap"]
	assert.False(t, ok)
	assert.True(t, ic.NoReprompt["cheap"])
	assert.False(t, ic.NoReprompt["primary"])
	assert.Equal(t, 500, ic.MaxTokens)
}
