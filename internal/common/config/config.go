// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	APIs     APIsConfig              `mapstructure:"apis"`
	Logging  LoggingConfig           `mapstructure:"logging"`
	Routing  RoutingConfig           `mapstructure:"routing"`
	Mode     ModeConfig              `mapstructure:"mode"`
	Budget   BudgetConfig            `mapstructure:"budget"`
	Models   ModelsConfig            `mapstructure:"models"`
	Cache    CacheConfig             `mapstructure:"cache"`
	Alerts   AlertsConfig            `mapstructure:"alerts"`
	Tracing  TracingConfig           `mapstructure:"tracing"`
	Server   ServerConfig            `mapstructure:"server"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// CamundaConfig holds the Zeebe gateway settings.
type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// DatabaseConfig groups the backend connections.
type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

// PostgresConfig holds the historical store connection.
type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig holds the engagement index connection.
type ElasticsearchConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	SSLEnabled  bool     `mapstructure:"ssl_enabled"`
	URL         string   `mapstructure:"url"`
	EngageIndex string   `mapstructure:"engagement_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// RedisConfig holds the cache and counter connection.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Assistant Configuration Sections ---

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	ModelProvider struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		Timeout    int    `mapstructure:"timeout"` // milliseconds
		MaxRetries int    `mapstructure:"max_retries"`
	} `mapstructure:"model_provider"`

	Live struct {
		BaseURL       string  `mapstructure:"base_url"`
		APIKey        string  `mapstructure:"api_key"`
		Timeout       int     `mapstructure:"timeout"` // milliseconds
		RatePerSecond float64 `mapstructure:"rate_per_second"`
		Burst         int     `mapstructure:"burst"`
		ResultCap     int     `mapstructure:"result_cap"`
	} `mapstructure:"live"`
}

// RoutingConfig tunes the semantic router and its escalation call.
type RoutingConfig struct {
	RouterModel       string  `mapstructure:"router_model"`
	RouterTimeoutMs   int     `mapstructure:"router_timeout_ms"`
	RouterMaxTokens   int     `mapstructure:"router_max_tokens"`
	RouterTemperature float64 `mapstructure:"router_temperature"`
	SnapshotTopN      int     `mapstructure:"snapshot_top_n"`
	SnapshotMaxList   int     `mapstructure:"snapshot_max_list"`
	SnapshotMaxPoints int     `mapstructure:"snapshot_max_points"`
}

// ModeConfig holds per-mode windows and budgets.
type ModeConfig struct {
	SingleEntityDays        int `mapstructure:"single_entity_days"`
	PortfolioDays           int `mapstructure:"portfolio_days"`
	SingleEntityMaxRecords  int `mapstructure:"single_entity_max_records"`
	PortfolioMaxRecords     int `mapstructure:"portfolio_max_records"`
	SingleEntityTokenBudget int `mapstructure:"single_entity_token_budget"`
	PortfolioTokenBudget    int `mapstructure:"portfolio_token_budget"`
	PromptReserveTokens     int `mapstructure:"prompt_reserve_tokens"`
	MaxLimit                int `mapstructure:"max_limit"`
}

// BudgetConfig tunes token estimation.
type BudgetConfig struct {
	TokenDivisor int `mapstructure:"token_divisor"`
}

// ModelCandidate is one entry of the ranked model list, with its price per 1M tokens.
type ModelCandidate struct {
	ID                 string  `mapstructure:"id"`
	InputPerMillion    float64 `mapstructure:"input_per_million"`
	OutputPerMillion   float64 `mapstructure:"output_per_million"`
	TimeoutMs          int     `mapstructure:"timeout_ms"`
	DisableReprompting bool    `mapstructure:"disable_reprompting"`
}

// ModelsConfig holds the ranked answer models and generation settings.
type ModelsConfig struct {
	Ranked      []ModelCandidate `mapstructure:"ranked"`
	MaxTokens   int              `mapstructure:"max_tokens"`
	Temperature float64          `mapstructure:"temperature"`
}

// IDs returns the ranked model identifiers in order.
func (m ModelsConfig) IDs() []string {
	ids := make([]string, 0, len(m.Ranked))
	for _, c := range m.Ranked {
		ids = append(ids, c.ID)
	}
	return ids
}

// CacheConfig controls the historical fetch cache.
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	TTLMs     int    `mapstructure:"ttl_ms"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AlertsConfig controls the backend outage notice.
type AlertsConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	TopicARN        string `mapstructure:"topic_arn"`
	OutageThreshold int    `mapstructure:"outage_threshold"`
	WindowMs        int    `mapstructure:"window_ms"`
}

// TracingConfig controls the Jaeger exporter.
type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
