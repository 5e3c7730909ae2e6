package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/models"
	"dev.roundtable.agent/internal/observability/metrics"
)

// defaultMapping routes roles without an explicit mapping. gemini is the
// only backend enabled out of the box, so it is both primary and fallback.
var defaultMapping = config.RoleMapping{Primary: "gemini", Fallback: "gemini", LogicalModel: "primary"}

// GenerateOptions carries the per-call generation parameters.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Router picks a backend for each role, enforces quotas and credential
// rotation, performs the call, and normalizes the reply into plain text.
// It is safe for concurrent use: the tracker and the rotators guard the
// only mutable state.
type Router struct {
	backends  map[string]config.BackendConfig
	roles     map[string]config.RoleMapping
	providers map[string]Provider
	rotators  map[string]*CredentialRotator
	usage     *UsageTracker
	log       *logrus.Logger
	metrics   *metrics.Collector
}

// NewRouter wires the routing table. providers maps backend id to its
// wire adapter; injecting it keeps the router testable with fakes.
// collector may be nil.
func NewRouter(cfg config.LLMConfig, provs map[string]Provider, log *logrus.Logger, collector *metrics.Collector) *Router {
	rotators := make(map[string]*CredentialRotator, len(cfg.Backends))
	poolSizes := make(map[string]int, len(cfg.Backends))
	for id, backend := range cfg.Backends {
		rotators[id] = NewCredentialRotator(backend.Credentials)
		poolSizes[id] = rotators[id].Size()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Router{
		backends:  cfg.Backends,
		roles:     cfg.Roles,
		providers: provs,
		rotators:  rotators,
		usage:     NewUsageTracker(cfg.Backends, poolSizes, cfg.ResetHourUTC),
		log:       log,
		metrics:   collector,
	}
}

// Generate routes one completion request for a role. It tries the role's
// primary backend then its fallback, skipping any candidate that is
// disabled, quota-exhausted or credential-less, and returns the reply
// text together with the id of the backend that served it. When every
// candidate is skipped or fails the returned error is an *ExhaustedError
// listing each attempt.
func (r *Router) Generate(ctx context.Context, role string, msgs []models.ChatMessage, opts GenerateOptions) (string, string, error) {
	mapping, ok := r.roles[role]
	if !ok {
		mapping = defaultMapping
	}

	var attempts []Attempt
	for _, candidate := range []string{mapping.Primary, mapping.Fallback} {
		acquired, reason := r.usage.Acquire(candidate)
		if !acquired {
			attempts = append(attempts, Attempt{Backend: candidate, Reason: reason})
			continue
		}

		text, err := r.callBackend(ctx, candidate, role, mapping.LogicalModel, msgs, opts)
		if err != nil {
			r.usage.RecordFailure(candidate)
			if r.metrics != nil {
				r.metrics.ProviderErrors.WithLabelValues(candidate, role).Inc()
			}
			r.log.WithFields(logrus.Fields{
				"provider": candidate,
				"role":     role,
			}).WithError(err).Warn("provider call failed, trying next candidate")
			attempts = append(attempts, Attempt{Backend: candidate, Reason: err.Error()})
			continue
		}
		return text, candidate, nil
	}

	return "", "", &ExhaustedError{Role: role, Attempts: attempts}
}

func (r *Router) callBackend(ctx context.Context, backend, role, logicalModel string, msgs []models.ChatMessage, opts GenerateOptions) (string, error) {
	provider, ok := r.providers[backend]
	if !ok {
		return "", ErrNoProvider
	}
	cred, err := r.rotators[backend].Next()
	if err != nil {
		return "", err
	}

	req := &models.CompletionRequest{
		Model:       r.backends[backend].Model(logicalModel),
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	start := time.Now()
	text, err := provider.Complete(ctx, cred.Key, req)
	if r.metrics != nil {
		r.metrics.ProviderRequests.WithLabelValues(backend, role).Inc()
		r.metrics.ProviderLatency.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", err
	}

	r.log.WithFields(logrus.Fields{
		"provider":   backend,
		"role":       role,
		"model":      req.Model,
		"credential": cred.Label,
		"elapsed":    time.Since(start).Round(time.Millisecond).String(),
	}).Debug("completion served")
	return text, nil
}

// CanUse reports whether a backend could serve a request right now.
func (r *Router) CanUse(backend string) bool {
	return r.usage.CanUse(backend)
}

// Usage returns the current usage summary across backends.
func (r *Router) Usage() models.UsageSummary {
	return r.usage.Summary()
}

// Costs returns the current cost estimate across backends.
func (r *Router) Costs() models.CostEstimate {
	return r.usage.Costs()
}

// Backends lists the configured backend ids.
func (r *Router) Backends() []string {
	ids := make([]string, 0, len(r.backends))
	for id := range r.backends {
		ids = append(ids, id)
	}
	return ids
}
