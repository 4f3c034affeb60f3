package usage

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of AI usage.
type Stats struct {
	TotalCalls    int64   `json:"total_calls"`
	TodayCalls    int64   `json:"today_calls"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// Meter tracks AI call volume and a running cost estimate. It is
// advisory only: nothing consults it for admission decisions. Crossing
// the daily threshold emits a log warning as a side channel.
type Meter struct {
	logger        *slog.Logger
	costPerToken  float64
	warnThreshold int64

	mu         sync.Mutex
	totalCalls int64
	dailyCalls map[string]int64
	cost       float64
	now        func() time.Time
}

// NewMeter creates a meter. costPerToken <= 0 disables cost
// accounting; warnThreshold <= 0 disables the daily warning.
func NewMeter(logger *slog.Logger, costPerToken float64, warnThreshold int) *Meter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Meter{
		logger:        logger,
		costPerToken:  costPerToken,
		warnThreshold: int64(warnThreshold),
		dailyCalls:    make(map[string]int64),
		now:           time.Now,
	}
}

// Track records one completed AI call and its token usage.
func (m *Meter) Track(tokensUsed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalCalls++
	today := m.now().Format("2006-01-02")
	m.dailyCalls[today]++
	if m.costPerToken > 0 {
		m.cost += float64(tokensUsed) * m.costPerToken
	}

	if m.warnThreshold > 0 && m.dailyCalls[today] > m.warnThreshold {
		m.logger.Warn("daily AI call threshold exceeded",
			slog.Int64("today_calls", m.dailyCalls[today]),
			slog.Int64("threshold", m.warnThreshold),
			slog.Float64("estimated_cost", m.cost),
		)
	}
}

// Snapshot returns current totals. Cost is rounded to four decimal
// places, matching what operators see in logs.
func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := m.now().Format("2006-01-02")
	return Stats{
		TotalCalls:    m.totalCalls,
		TodayCalls:    m.dailyCalls[today],
		EstimatedCost: math.Round(m.cost*10000) / 10000,
	}
}
