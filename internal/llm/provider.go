package llm

import (
	"context"

	"dev.roundtable.agent/internal/models"
)

// Provider performs completion calls against one backend wire format.
// The credential is supplied per call because keys rotate between calls.
type Provider interface {
	Complete(ctx context.Context, key string, req *models.CompletionRequest) (string, error)
	HealthCheck(ctx context.Context, key string) error
}
