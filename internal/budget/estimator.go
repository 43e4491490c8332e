// internal/budget/estimator.go
package budget

import (
	"encoding/json"
	"sort"

	"analytics-assistant/internal/models"
)

// DefaultDivisor is bytes per token.
const DefaultDivisor = 4

// Estimator approximates token counts from serialized size. Every fetcher
// uses the same divisor so budgets compare across sources.
type Estimator struct {
	Divisor int
}

// NewEstimator uses DefaultDivisor when divisor is not positive.
func NewEstimator(divisor int) *Estimator {
	if divisor < 1 {
		divisor = DefaultDivisor
	}
	return &Estimator{Divisor: divisor}
}

// Estimate returns ceil(len(json(v)) / divisor). Unserializable values count as zero.
func (e *Estimator) Estimate(v interface{}) int {
	if v == nil {
		return 0
	}
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return e.tokens(len(data))
}

func (e *Estimator) tokens(n int) int {
	d := e.Divisor
	if d < 1 {
		d = DefaultDivisor
	}
	return (n + d - 1) / d
}

// Fits reports whether v is estimated within budget.
func (e *Estimator) Fits(v interface{}, budget int) bool {
	return e.Estimate(v) <= budget
}

// Stamp sets the payload's TokenEstimate from its current content.
func (e *Estimator) Stamp(p *models.DataPayload) {
	if p == nil {
		return
	}
	if p.Snapshot != nil && len(p.Rows) == 0 {
		p.TokenEstimate = e.Estimate(p.Snapshot)
		return
	}
	p.TokenEstimate = e.Estimate(p.Rows)
}

// Trim shrinks the payload in place until its estimate fits budget.
// Rows keep their order and the head survives. It reports whether anything was cut.
func (e *Estimator) Trim(p *models.DataPayload, budget int) bool {
	if p == nil {
		return false
	}
	e.Stamp(p)
	if p.TokenEstimate <= budget {
		return false
	}

	if len(p.Rows) > 0 {
		keep := sort.Search(len(p.Rows)+1, func(n int) bool {
			return e.Estimate(p.Rows[:n]) > budget
		}) - 1
		if keep < 0 {
			keep = 0
		}
		p.Rows = p.Rows[:keep]
	} else if p.Snapshot != nil {
		p.Snapshot = e.trimSnapshot(p.Snapshot, budget)
	}

	e.Stamp(p)
	p.Truncated = true
	return true
}

// trimSnapshot halves the longest list until the snapshot fits. The input is
// never modified.
func (e *Estimator) trimSnapshot(s *models.Snapshot, budget int) *models.Snapshot {
	c := *s
	if len(s.Breakdowns) > 0 {
		c.Breakdowns = make(map[string][]models.BreakdownRow, len(s.Breakdowns))
		for k, v := range s.Breakdowns {
			c.Breakdowns[k] = v
		}
	}

	for e.Estimate(&c) > budget {
		longest, n := "", 0
		if len(c.EntityRecords) > n {
			longest, n = "entityRecords", len(c.EntityRecords)
		}
		if len(c.TimeSeries) > n {
			longest, n = "timeSeries", len(c.TimeSeries)
		}
		if len(c.TopPerformers) > n {
			longest, n = "topPerformers", len(c.TopPerformers)
		}
		dims := make([]string, 0, len(c.Breakdowns))
		for k := range c.Breakdowns {
			dims = append(dims, k)
		}
		sort.Strings(dims)
		for _, k := range dims {
			if len(c.Breakdowns[k]) > n {
				longest, n = "breakdown:"+k, len(c.Breakdowns[k])
			}
		}
		if n == 0 {
			break
		}

		half := n / 2
		switch longest {
		case "entityRecords":
			c.EntityRecords = c.EntityRecords[:half]
		case "timeSeries":
			// the most recent points matter most
			c.TimeSeries = c.TimeSeries[n-half:]
		case "topPerformers":
			c.TopPerformers = c.TopPerformers[:half]
		default:
			k := longest[len("breakdown:"):]
			c.Breakdowns[k] = c.Breakdowns[k][:half]
		}
	}
	return &c
}
