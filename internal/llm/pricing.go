// internal/llm/pricing.go
package llm

import (
	"math"

	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/models"
)

// Price is USD per one million tokens.
type Price struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps model ids to their price.
type Pricing map[string]Price

// PricingFromConfig reads prices from the ranked model list.
func PricingFromConfig(cfg config.ModelsConfig) Pricing {
	p := make(Pricing, len(cfg.Ranked))
	for _, c := range cfg.Ranked {
		p[c.ID] = Price{InputPerMillion: c.InputPerMillion, OutputPerMillion: c.OutputPerMillion}
	}
	return p
}

// Cost is zero for models without a configured price.
func (p Pricing) Cost(model string, usage models.Usage) float64 {
	price, ok := p[model]
	if !ok {
		return 0
	}
	cost := float64(usage.InputTokens)/1e6*price.InputPerMillion +
		float64(usage.OutputTokens)/1e6*price.OutputPerMillion
	return math.Round(cost*1e6) / 1e6
}
