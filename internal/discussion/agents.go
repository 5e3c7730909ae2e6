package discussion

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/llm"
	"dev.roundtable.agent/internal/models"
)

// Agent produces one contribution per turn. Implementations must never
// block indefinitely and should prefer degrading over failing: a
// returned error is recorded by the scheduler as a system message.
type Agent interface {
	Role() string
	Name() string
	GenerateResponse(ctx context.Context, topic string, recent []string) (string, error)
}

// ProviderAgent generates through the multi-provider router. Router
// failures never escape: the agent answers with a degraded, tagged echo
// of the context instead.
type ProviderAgent struct {
	persona Persona
	router  *llm.Router
	window  int
	log     *logrus.Logger
}

// NewProviderAgent wraps a persona around the router. window is how many
// trailing messages are passed as context on each call.
func NewProviderAgent(persona Persona, router *llm.Router, window int, log *logrus.Logger) *ProviderAgent {
	if window <= 0 {
		window = 3
	}
	if log == nil {
		log = logrus.New()
	}
	return &ProviderAgent{persona: persona, router: router, window: window, log: log}
}

// Role returns the agent's role id.
func (a *ProviderAgent) Role() string { return a.persona.Role }

// Name returns the agent's display name.
func (a *ProviderAgent) Name() string { return a.persona.Name }

// GenerateResponse builds the prompt from the persona, the topic, and
// the trailing context window, then routes it. The reply always carries
// the role tag.
func (a *ProviderAgent) GenerateResponse(ctx context.Context, topic string, recent []string) (string, error) {
	msgs := []models.ChatMessage{
		{Role: "system", Content: a.persona.SystemPrompt},
		{Role: "user", Content: a.buildContext(topic, recent)},
	}

	text, backend, err := a.router.Generate(ctx, a.persona.Role, msgs, llm.GenerateOptions{
		Temperature: a.persona.Temperature,
		MaxTokens:   a.persona.MaxTokens,
	})
	if err != nil {
		a.log.WithFields(logrus.Fields{
			"role": a.persona.Role,
		}).WithError(err).Warn("generation failed, returning degraded response")
		return a.degradedResponse(topic), nil
	}

	a.log.WithFields(logrus.Fields{
		"role":     a.persona.Role,
		"provider": backend,
	}).Debug("agent response generated")
	return a.ensureTag(text), nil
}

func (a *ProviderAgent) buildContext(topic string, recent []string) string {
	var b strings.Builder
	b.WriteString("Discussion context: Topic: ")
	b.WriteString(topic)
	if len(recent) > 0 {
		start := len(recent) - a.window
		if start < 0 {
			start = 0
		}
		b.WriteString("\n\nPrevious messages:\n")
		b.WriteString(strings.Join(recent[start:], "\n"))
	}
	return b.String()
}

func (a *ProviderAgent) degradedResponse(topic string) string {
	const maxEcho = 100
	if len(topic) > maxEcho {
		topic = topic[:maxEcho]
	}
	return a.persona.Tag + " I need to respond to: " + topic + "..."
}

func (a *ProviderAgent) ensureTag(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, a.persona.Tag) {
		return a.persona.Tag + " " + text
	}
	return text
}

// NewProviderAgents builds one ProviderAgent per built-in persona.
func NewProviderAgents(router *llm.Router, window int, log *logrus.Logger) map[string]Agent {
	agents := make(map[string]Agent, len(Personas))
	for role, persona := range Personas {
		agents[role] = NewProviderAgent(persona, router, window, log)
	}
	return agents
}
