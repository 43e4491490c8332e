// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads .env, the base and environment config files, and env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// ENV override like APIS_MODEL_PROVIDER_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.ModelProvider.APIKey == "" {
		if val := os.Getenv("MODEL_PROVIDER_API_KEY"); val != "" {
			cfg.APIs.ModelProvider.APIKey = val
		}
	}
	if cfg.APIs.Live.APIKey == "" {
		if val := os.Getenv("LIVE_API_KEY"); val != "" {
			cfg.APIs.Live.APIKey = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}

	if cfg.Alerts.TopicARN == "" {
		if val := os.Getenv("ALERTS_TOPIC_ARN"); val != "" {
			cfg.Alerts.TopicARN = val
		}
	}
}

// LoadFromFile reads a single config file plus env overrides.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "analytics-assistant"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.EngageIndex == "" {
		cfg.Database.Elasticsearch.EngageIndex = "engagement-events"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	// API defaults
	if cfg.APIs.ModelProvider.Timeout == 0 {
		cfg.APIs.ModelProvider.Timeout = 60000
	}
	if cfg.APIs.ModelProvider.MaxRetries == 0 {
		cfg.APIs.ModelProvider.MaxRetries = 2
	}
	if cfg.APIs.Live.Timeout == 0 {
		cfg.APIs.Live.Timeout = 10000
	}
	if cfg.APIs.Live.RatePerSecond == 0 {
		cfg.APIs.Live.RatePerSecond = 3
	}
	if cfg.APIs.Live.Burst == 0 {
		cfg.APIs.Live.Burst = 3
	}
	if cfg.APIs.Live.ResultCap == 0 {
		cfg.APIs.Live.ResultCap = 100
	}

	// Routing defaults
	if cfg.Routing.RouterTimeoutMs == 0 {
		cfg.Routing.RouterTimeoutMs = 3000
	}
	if cfg.Routing.RouterMaxTokens == 0 {
		cfg.Routing.RouterMaxTokens = 200
	}
	if cfg.Routing.SnapshotTopN == 0 {
		cfg.Routing.SnapshotTopN = 10
	}
	if cfg.Routing.SnapshotMaxList == 0 {
		cfg.Routing.SnapshotMaxList = 100
	}
	if cfg.Routing.SnapshotMaxPoints == 0 {
		cfg.Routing.SnapshotMaxPoints = 400
	}
	if cfg.Routing.RouterModel == "" && len(cfg.Models.Ranked) > 0 {
		cfg.Routing.RouterModel = cfg.Models.Ranked[len(cfg.Models.Ranked)-1].ID
	}

	// Mode defaults
	if cfg.Mode.SingleEntityDays == 0 {
		cfg.Mode.SingleEntityDays = 90
	}
	if cfg.Mode.PortfolioDays == 0 {
		cfg.Mode.PortfolioDays = 14
	}
	if cfg.Mode.SingleEntityMaxRecords == 0 {
		cfg.Mode.SingleEntityMaxRecords = 1000
	}
	if cfg.Mode.PortfolioMaxRecords == 0 {
		cfg.Mode.PortfolioMaxRecords = 100
	}
	if cfg.Mode.SingleEntityTokenBudget == 0 {
		cfg.Mode.SingleEntityTokenBudget = 50000
	}
	if cfg.Mode.PortfolioTokenBudget == 0 {
		cfg.Mode.PortfolioTokenBudget = 30000
	}
	if cfg.Mode.PromptReserveTokens == 0 {
		cfg.Mode.PromptReserveTokens = 6000
	}
	if cfg.Mode.MaxLimit == 0 {
		cfg.Mode.MaxLimit = 1000
	}

	if cfg.Budget.TokenDivisor == 0 {
		cfg.Budget.TokenDivisor = 4
	}

	if cfg.Models.MaxTokens == 0 {
		cfg.Models.MaxTokens = 2000
	}
	if cfg.Models.Temperature == 0 {
		cfg.Models.Temperature = 0.3
	}

	if cfg.Cache.TTLMs == 0 {
		cfg.Cache.TTLMs = 300000
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "assistant:fetch:"
	}

	if cfg.Alerts.OutageThreshold == 0 {
		cfg.Alerts.OutageThreshold = 5
	}
	if cfg.Alerts.WindowMs == 0 {
		cfg.Alerts.WindowMs = 60000
	}
	if cfg.Alerts.Region == "" {
		cfg.Alerts.Region = "us-east-1"
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = cfg.App.Name
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Models.Ranked) == 0 {
		return fmt.Errorf("models.ranked must list at least one model")
	}
	for i, m := range cfg.Models.Ranked {
		if m.ID == "" {
			return fmt.Errorf("models.ranked[%d].id is required", i)
		}
	}
	if cfg.APIs.ModelProvider.BaseURL == "" {
		return fmt.Errorf("apis.model_provider.base_url is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	if (cfg.Cache.Enabled || cfg.Alerts.Enabled) && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when cache or alerts are enabled")
	}
	if cfg.Alerts.Enabled && cfg.Alerts.TopicARN == "" {
		return fmt.Errorf("alerts.topic_arn is required when alerts are enabled")
	}

	if cfg.Mode.PromptReserveTokens >= cfg.Mode.PortfolioTokenBudget ||
		cfg.Mode.PromptReserveTokens >= cfg.Mode.SingleEntityTokenBudget {
		return fmt.Errorf("mode.prompt_reserve_tokens must be below every mode token budget")
	}
	if cfg.Budget.TokenDivisor < 1 {
		return fmt.Errorf("budget.token_divisor must be positive")
	}

	return nil
}

// ValidateForWorkers adds the checks only the Zeebe service needs.
func ValidateForWorkers(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	return nil
}

// GetDuration converts a millisecond setting to a duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig returns the worker settings, or defaults when absent.
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled defaults to true for unlisted workers.
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}

// PriceOf returns the configured candidate for modelID.
func PriceOf(cfg *Config, modelID string) (ModelCandidate, bool) {
	for _, c := range cfg.Models.Ranked {
		if c.ID == modelID {
			return c, true
		}
	}
	return ModelCandidate{}, false
}
