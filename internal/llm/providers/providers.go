// Package providers builds wire-format adapters from backend
// configuration.
package providers

import (
	"dev.roundtable.agent/internal/config"
	"dev.roundtable.agent/internal/llm"
	"dev.roundtable.agent/internal/llm/providers/gemini"
	"dev.roundtable.agent/internal/llm/providers/openaicompat"
)

// FromConfig creates one Provider per configured backend, keyed by
// backend id. Unknown wire formats are skipped; the router treats a
// backend without a provider as unusable.
func FromConfig(cfg config.LLMConfig) map[string]llm.Provider {
	result := make(map[string]llm.Provider, len(cfg.Backends))
	for id, backend := range cfg.Backends {
		switch backend.Wire {
		case "gemini":
			result[id] = gemini.NewProvider(backend.BaseURL, cfg.RequestTimeout)
		case "openai":
			var headers map[string]string
			if id == "openrouter" {
				headers = map[string]string{
					"HTTP-Referer": "https://github.com/roundtable/roundtable",
					"X-Title":      "Roundtable Discussion System",
				}
			}
			result[id] = openaicompat.NewProvider(backend.BaseURL, cfg.RequestTimeout, headers)
		}
	}
	return result
}
