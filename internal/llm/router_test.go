package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/models"
)

// fakeProvider returns a scripted reply or error and records what it was asked.
type fakeProvider struct {
	reply string
	err   error

	calls    int
	lastKey  string
	lastReq  *models.CompletionRequest
	healthOK bool
}

func (f *fakeProvider) Complete(_ context.Context, key string, req *models.CompletionRequest) (string, error) {
	f.calls++
	f.lastKey = key
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) HealthCheck(context.Context, string) error {
	if f.healthOK {
		return nil
	}
	return errors.New("unhealthy")
}

func routerConfig() config.LLMConfig {
	return config.LLMConfig{
		Backends: map[string]config.BackendConfig{
			"gemini": {
				Name:        "Google AI Studio",
				Wire:        "gemini",
				Models:      map[string]string{"primary": "gemini-2.0-flash", "premium": "gemini-2.5-pro"},
				DailyLimit:  10,
				Enabled:     true,
				Credentials: []config.CredentialSlot{{Label: "key_1", Key: "k1"}, {Label: "key_2", Key: "k2"}},
			},
			"groq": {
				Name:        "Groq",
				Wire:        "openai",
				Models:      map[string]string{"primary": "llama-3.3-70b"},
				DailyLimit:  10,
				Enabled:     true,
				Credentials: []config.CredentialSlot{{Label: "key_1", Key: "g1"}},
			},
		},
		Roles: map[string]config.RoleMapping{
			"skeptic": {Primary: "gemini", Fallback: "groq", LogicalModel: "primary"},
			"analyst": {Primary: "gemini", Fallback: "groq", LogicalModel: "premium"},
		},
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRouter_GenerateUsesPrimary(t *testing.T) {
	primary := &fakeProvider{reply: "primary says hi"}
	fallback := &fakeProvider{reply: "fallback says hi"}
	r := NewRouter(routerConfig(), map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	msgs := []models.ChatMessage{{Role: "user", Content: "hello"}}
	text, backend, err := r.Generate(context.Background(), "skeptic", msgs, GenerateOptions{Temperature: 0.3, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, "primary says hi", text)
	assert.Equal(t, "gemini", backend)
	assert.Zero(t, fallback.calls)

	require.NotNil(t, primary.lastReq)
	assert.Equal(t, "gemini-2.0-flash", primary.lastReq.Model)
	assert.InDelta(t, 0.3, primary.lastReq.Temperature, 1e-9)
}

func TestRouter_GenerateResolvesLogicalModel(t *testing.T) {
	primary := &fakeProvider{reply: "ok"}
	r := NewRouter(routerConfig(), map[string]Provider{"gemini": primary}, quietLogger(), nil)

	_, _, err := r.Generate(context.Background(), "analyst", nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", primary.lastReq.Model)
}

func TestRouter_GenerateFailsOverOnError(t *testing.T) {
	primary := &fakeProvider{err: context.DeadlineExceeded}
	fallback := &fakeProvider{reply: "fallback answer"}
	r := NewRouter(routerConfig(), map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	text, backend, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", text)
	assert.Equal(t, "groq", backend)
	assert.Equal(t, 1, primary.calls)

	// The primary failure shows up in the usage report.
	summary := r.Usage()
	assert.Equal(t, 1, summary.Providers["gemini"].RequestsFailed)
}

func TestRouter_GenerateSkipsDisabledWithoutCalling(t *testing.T) {
	cfg := routerConfig()
	backend := cfg.Backends["gemini"]
	backend.Enabled = false
	cfg.Backends["gemini"] = backend

	primary := &fakeProvider{reply: "should not be called"}
	fallback := &fakeProvider{reply: "from fallback"}
	r := NewRouter(cfg, map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	text, served, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", text)
	assert.Equal(t, "groq", served)
	assert.Zero(t, primary.calls)
}

func TestRouter_GenerateExhaustedError(t *testing.T) {
	cfg := routerConfig()
	gem := cfg.Backends["gemini"]
	gem.Enabled = false
	cfg.Backends["gemini"] = gem
	grq := cfg.Backends["groq"]
	grq.Credentials = nil
	cfg.Backends["groq"] = grq

	primary := &fakeProvider{}
	fallback := &fakeProvider{}
	r := NewRouter(cfg, map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	_, _, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "skeptic", exhausted.Role)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, Attempt{Backend: "gemini", Reason: "disabled"}, exhausted.Attempts[0])
	assert.Equal(t, Attempt{Backend: "groq", Reason: "no credential"}, exhausted.Attempts[1])

	// No network calls were made for skipped candidates.
	assert.Zero(t, primary.calls)
	assert.Zero(t, fallback.calls)
}

func TestRouter_DisabledPrimaryExhaustedFallback(t *testing.T) {
	cfg := routerConfig()
	gem := cfg.Backends["gemini"]
	gem.Enabled = false
	cfg.Backends["gemini"] = gem
	grq := cfg.Backends["groq"]
	grq.DailyLimit = 1
	cfg.Backends["groq"] = grq

	primary := &fakeProvider{reply: "unused"}
	fallback := &fakeProvider{reply: "once"}
	r := NewRouter(cfg, map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	// Burn groq's only slot.
	_, served, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, "groq", served)

	// Now both candidates are unusable; nothing reaches the network.
	calls := fallback.calls
	_, _, err = r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, calls, fallback.calls)
	assert.Zero(t, primary.calls)
}

func TestRouter_GenerateRotatesCredentials(t *testing.T) {
	primary := &fakeProvider{reply: "ok"}
	r := NewRouter(routerConfig(), map[string]Provider{"gemini": primary}, quietLogger(), nil)

	var keys []string
	for i := 0; i < 4; i++ {
		_, _, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
		require.NoError(t, err)
		keys = append(keys, primary.lastKey)
	}
	assert.Equal(t, []string{"k1", "k2", "k1", "k2"}, keys)
}

func TestRouter_GenerateUnknownRoleUsesDefaultMapping(t *testing.T) {
	primary := &fakeProvider{reply: "ok"}
	r := NewRouter(routerConfig(), map[string]Provider{"gemini": primary}, quietLogger(), nil)

	_, backend, err := r.Generate(context.Background(), "moderator", nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "gemini", backend)
}

func TestRouter_GenerateMissingProviderAdapter(t *testing.T) {
	r := NewRouter(routerConfig(), map[string]Provider{}, quietLogger(), nil)

	_, _, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, ErrNoProvider.Error(), exhausted.Attempts[0].Reason)
}

func TestRouter_QuotaExhaustionFailsOver(t *testing.T) {
	cfg := routerConfig()
	gem := cfg.Backends["gemini"]
	gem.DailyLimit = 2
	cfg.Backends["gemini"] = gem

	primary := &fakeProvider{reply: "from primary"}
	fallback := &fakeProvider{reply: "from fallback"}
	r := NewRouter(cfg, map[string]Provider{"gemini": primary, "groq": fallback}, quietLogger(), nil)

	for i := 0; i < 2; i++ {
		_, backend, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "gemini", backend)
	}

	_, backend, err := r.Generate(context.Background(), "skeptic", nil, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "groq", backend)
	assert.False(t, r.CanUse("gemini"))
	assert.True(t, r.CanUse("groq"))
}

func TestRouter_Backends(t *testing.T) {
	r := NewRouter(routerConfig(), nil, quietLogger(), nil)
	assert.ElementsMatch(t, []string{"gemini", "groq"}, r.Backends())
}
