package discussion

import (
	"context"
	"math/rand"
	"strings"
)

// TemplateAgent answers from canned templates without any network
// traffic. It backs demo/offline mode behind the same Agent interface
// the provider-backed agents implement.
type TemplateAgent struct {
	persona   Persona
	templates []string
	rng       *rand.Rand
}

// NewTemplateAgent creates a template agent for a persona.
func NewTemplateAgent(persona Persona, templates []string, seed int64) *TemplateAgent {
	return &TemplateAgent{
		persona:   persona,
		templates: templates,
		rng:       rand.New(rand.NewSource(seed)), // #nosec G404 - demo responses, not security material
	}
}

// Role returns the agent's role id.
func (a *TemplateAgent) Role() string { return a.persona.Role }

// Name returns the agent's display name.
func (a *TemplateAgent) Name() string { return a.persona.Name }

// GenerateResponse fills a random template with the topic.
func (a *TemplateAgent) GenerateResponse(_ context.Context, topic string, _ []string) (string, error) {
	template := a.templates[a.rng.Intn(len(a.templates))]
	return strings.ReplaceAll(template, "{topic}", topic), nil
}

var demoTemplates = map[string][]string{
	"skeptic": {
		"[SKEPTIC] I question the assumptions underlying {topic}. What evidence supports this position?",
		"[SKEPTIC] This raises several red flags. Have we considered the potential downsides of {topic}?",
		"[SKEPTIC] I'm not convinced by this argument. What alternative explanations might exist?",
		"[SKEPTIC] The claims about {topic} seem overstated. What data backs this up?",
		"[SKEPTIC] Before accepting this, we should examine the methodology behind these conclusions.",
	},
	"synthesizer": {
		"[SYNTHESIZER] Building on the previous points, I see a common thread in how we approach {topic}.",
		"[SYNTHESIZER] Both perspectives on {topic} share an underlying concern we can address together.",
		"[SYNTHESIZER] Let me connect these ideas: the disagreement about {topic} may be smaller than it looks.",
		"[SYNTHESIZER] An integrated view of {topic} would take the strongest part of each argument.",
	},
	"analyst": {
		"[ANALYST] The available data on {topic} suggests we should quantify the claims being made.",
		"[ANALYST] Several studies are relevant to {topic}; we should check what the evidence actually shows.",
		"[ANALYST] Before going further, the key metrics around {topic} need to be on the table.",
		"[ANALYST] The trend lines for {topic} deserve a closer, number-driven look.",
	},
	"explorer": {
		"[EXPLORER] What if we approached {topic} from a completely different angle?",
		"[EXPLORER] Imagine a future where {topic} evolves beyond its current form entirely.",
		"[EXPLORER] An unconventional framing of {topic} might unlock options nobody has raised yet.",
		"[EXPLORER] Let's entertain a thought experiment about {topic} and see where it leads.",
	},
}

// NewTemplateAgents builds the full demo roster.
func NewTemplateAgents(seed int64) map[string]Agent {
	agents := make(map[string]Agent, len(Personas))
	for role, persona := range Personas {
		agents[role] = NewTemplateAgent(persona, demoTemplates[role], seed+int64(len(role)))
	}
	return agents
}
