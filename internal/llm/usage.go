package llm

import (
	"sync"
	"time"

	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/models"
)

// usageStats is the mutable per-backend counter state.
type usageStats struct {
	requestsMade   int
	requestsFailed int
	lastReset      time.Time
}

// UsageTracker owns the per-backend daily counters. Counters reset
// lazily: the first operation that observes the current time past the
// configured reset hour since the last reset zeroes them. All state is
// guarded by one mutex because the quota check is read-then-increment.
type UsageTracker struct {
	mu        sync.Mutex
	stats     map[string]*usageStats
	backends  map[string]config.BackendConfig
	poolSizes map[string]int
	resetHour int
	now       func() time.Time
}

// NewUsageTracker creates a tracker for the configured backends.
// poolSizes carries the fixed credential pool size per backend, so that
// availability checks need no reference to the rotators.
func NewUsageTracker(backends map[string]config.BackendConfig, poolSizes map[string]int, resetHourUTC int) *UsageTracker {
	t := &UsageTracker{
		stats:     make(map[string]*usageStats, len(backends)),
		backends:  backends,
		poolSizes: poolSizes,
		resetHour: resetHourUTC,
		now:       time.Now,
	}
	for id := range backends {
		t.stats[id] = &usageStats{lastReset: t.now()}
	}
	return t
}

// resetIfDueLocked zeroes the counters once per boundary crossing.
// Caller holds t.mu.
func (t *UsageTracker) resetIfDueLocked(s *usageStats) {
	now := t.now().UTC()
	boundary := time.Date(now.Year(), now.Month(), now.Day(), t.resetHour, 0, 0, 0, time.UTC)
	if now.After(boundary) || now.Equal(boundary) {
		if s.lastReset.UTC().Before(boundary) {
			s.requestsMade = 0
			s.requestsFailed = 0
			s.lastReset = t.now()
		}
	}
}

// Acquire reserves one request against a backend's quota. The
// availability check and the counter increment happen under one lock so
// requestsMade can never pass the daily limit. When the backend is not
// usable the reason is returned and nothing is counted.
func (t *UsageTracker) Acquire(backend string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg, ok := t.backends[backend]
	if !ok {
		return false, "unknown backend"
	}
	s := t.stats[backend]
	t.resetIfDueLocked(s)

	if !cfg.Enabled {
		return false, "disabled"
	}
	if t.poolSizes[backend] == 0 {
		return false, "no credential"
	}
	if s.requestsMade >= cfg.DailyLimit {
		return false, "quota exhausted"
	}
	s.requestsMade++
	return true, ""
}

// CanUse reports whether a backend could serve a request right now,
// without reserving quota.
func (t *UsageTracker) CanUse(backend string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg, ok := t.backends[backend]
	if !ok {
		return false
	}
	s := t.stats[backend]
	t.resetIfDueLocked(s)
	return cfg.Enabled && t.poolSizes[backend] > 0 && s.requestsMade < cfg.DailyLimit
}

// RecordFailure counts a failed request against a backend.
func (t *UsageTracker) RecordFailure(backend string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.stats[backend]; ok {
		s.requestsFailed++
	}
}

// Summary returns a point-in-time usage report across all backends.
func (t *UsageTracker) Summary() models.UsageSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	summary := models.UsageSummary{Providers: make(map[string]models.ProviderUsage, len(t.stats))}
	for id, s := range t.stats {
		t.resetIfDueLocked(s)
		cfg := t.backends[id]

		remaining := cfg.DailyLimit - s.requestsMade
		if remaining < 0 {
			remaining = 0
		}
		successRate := 100.0
		if s.requestsMade > 0 {
			successRate = float64(s.requestsMade-s.requestsFailed) / float64(s.requestsMade) * 100
		}
		summary.TotalRequests += s.requestsMade
		summary.TotalFailures += s.requestsFailed
		summary.Providers[id] = models.ProviderUsage{
			RequestsMade:   s.requestsMade,
			RequestsFailed: s.requestsFailed,
			DailyLimit:     cfg.DailyLimit,
			Remaining:      remaining,
			SuccessRate:    successRate,
			Available:      cfg.Enabled && t.poolSizes[id] > 0 && s.requestsMade < cfg.DailyLimit,
		}
	}
	return summary
}

// Costs estimates daily spend from per-request pricing. All free-tier
// backends report zero.
func (t *UsageTracker) Costs() models.CostEstimate {
	t.mu.Lock()
	defer t.mu.Unlock()

	est := models.CostEstimate{Providers: make(map[string]float64, len(t.stats))}
	for id, s := range t.stats {
		cost := float64(s.requestsMade) * t.backends[id].CostPerRequest
		est.Providers[id] = cost
		est.TotalDailyCost += cost
	}
	est.MonthlyEstimate = est.TotalDailyCost * 30
	return est
}
