package discussion

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/llm"
	"dev.roundtable.agent/internal/models"
)

// stubProvider satisfies llm.Provider with a fixed reply.
type stubProvider struct {
	reply   string
	lastReq *models.CompletionRequest
}

func (s *stubProvider) Complete(_ context.Context, _ string, req *models.CompletionRequest) (string, error) {
	s.lastReq = req
	return s.reply, nil
}

func (s *stubProvider) HealthCheck(context.Context, string) error { return nil }

func agentRouterConfig(enabled bool) config.LLMConfig {
	return config.LLMConfig{
		Backends: map[string]config.BackendConfig{
			"gemini": {
				Name:        "Google AI Studio",
				Models:      map[string]string{"primary": "gemini-2.0-flash"},
				DailyLimit:  100,
				Enabled:     enabled,
				Credentials: []config.CredentialSlot{{Label: "key_1", Key: "k1"}},
			},
		},
		Roles: map[string]config.RoleMapping{
			"skeptic": {Primary: "gemini", Fallback: "gemini", LogicalModel: "primary"},
		},
	}
}

func agentLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestProviderAgent_TagsUntaggedReplies(t *testing.T) {
	stub := &stubProvider{reply: "I doubt this very much."}
	router := llm.NewRouter(agentRouterConfig(true), map[string]llm.Provider{"gemini": stub}, agentLogger(), nil)
	agent := NewProviderAgent(Personas["skeptic"], router, 3, agentLogger())

	text, err := agent.GenerateResponse(context.Background(), "cold fusion", nil)
	require.NoError(t, err)
	assert.Equal(t, "[SKEPTIC] I doubt this very much.", text)
}

func TestProviderAgent_KeepsExistingTag(t *testing.T) {
	stub := &stubProvider{reply: "[SKEPTIC] Already tagged."}
	router := llm.NewRouter(agentRouterConfig(true), map[string]llm.Provider{"gemini": stub}, agentLogger(), nil)
	agent := NewProviderAgent(Personas["skeptic"], router, 3, agentLogger())

	text, err := agent.GenerateResponse(context.Background(), "topic", nil)
	require.NoError(t, err)
	assert.Equal(t, "[SKEPTIC] Already tagged.", text)
}

func TestProviderAgent_PromptCarriesPersonaAndContext(t *testing.T) {
	stub := &stubProvider{reply: "ok"}
	router := llm.NewRouter(agentRouterConfig(true), map[string]llm.Provider{"gemini": stub}, agentLogger(), nil)
	agent := NewProviderAgent(Personas["skeptic"], router, 2, agentLogger())

	recent := []string{"alice: first", "bob: second", "carol: third"}
	_, err := agent.GenerateResponse(context.Background(), "cold fusion", recent)
	require.NoError(t, err)

	require.NotNil(t, stub.lastReq)
	require.Len(t, stub.lastReq.Messages, 2)
	assert.Equal(t, "system", stub.lastReq.Messages[0].Role)
	assert.Equal(t, Personas["skeptic"].SystemPrompt, stub.lastReq.Messages[0].Content)

	prompt := stub.lastReq.Messages[1].Content
	assert.Contains(t, prompt, "Topic: cold fusion")
	// A window of 2 keeps only the trailing two lines.
	assert.NotContains(t, prompt, "alice: first")
	assert.Contains(t, prompt, "bob: second")
	assert.Contains(t, prompt, "carol: third")

	assert.InDelta(t, Personas["skeptic"].Temperature, stub.lastReq.Temperature, 1e-9)
	assert.Equal(t, Personas["skeptic"].MaxTokens, stub.lastReq.MaxTokens)
}

func TestProviderAgent_DegradedResponseOnRouterFailure(t *testing.T) {
	// Backend disabled: every candidate is skipped and generation fails.
	router := llm.NewRouter(agentRouterConfig(false), map[string]llm.Provider{}, agentLogger(), nil)
	agent := NewProviderAgent(Personas["skeptic"], router, 3, agentLogger())

	text, err := agent.GenerateResponse(context.Background(), "cold fusion", nil)
	require.NoError(t, err)
	assert.Equal(t, "[SKEPTIC] I need to respond to: cold fusion...", text)
}

func TestProviderAgent_DegradedResponseTruncatesTopic(t *testing.T) {
	router := llm.NewRouter(agentRouterConfig(false), map[string]llm.Provider{}, agentLogger(), nil)
	agent := NewProviderAgent(Personas["explorer"], router, 3, agentLogger())

	topic := strings.Repeat("x", 150)
	text, err := agent.GenerateResponse(context.Background(), topic, nil)
	require.NoError(t, err)
	assert.Equal(t, "[EXPLORER] I need to respond to: "+strings.Repeat("x", 100)+"...", text)
}

func TestNewProviderAgents_CoversAllPersonas(t *testing.T) {
	router := llm.NewRouter(agentRouterConfig(true), nil, agentLogger(), nil)
	agents := NewProviderAgents(router, 3, agentLogger())

	require.Len(t, agents, len(RoleOrder))
	for _, role := range RoleOrder {
		agent, ok := agents[role]
		require.True(t, ok, "missing agent for %s", role)
		assert.Equal(t, role, agent.Role())
		assert.Equal(t, Personas[role].Name, agent.Name())
	}
}

func TestTemplateAgents_FillTopicAndStayOffline(t *testing.T) {
	agents := NewTemplateAgents(42)
	require.Len(t, agents, len(RoleOrder))

	for _, role := range RoleOrder {
		text, err := agents[role].GenerateResponse(context.Background(), "renewable energy", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(text, Personas[role].Tag), "reply %q misses tag", text)
		assert.NotContains(t, text, "{topic}")
	}
}

func TestTemplateAgents_Deterministic(t *testing.T) {
	a := NewTemplateAgents(7)
	b := NewTemplateAgents(7)

	for _, role := range RoleOrder {
		first, err := a[role].GenerateResponse(context.Background(), "topic", nil)
		require.NoError(t, err)
		second, err := b[role].GenerateResponse(context.Background(), "topic", nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}
