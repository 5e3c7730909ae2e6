package models

import "time"

// MessageKind classifies who produced a message.
type MessageKind string

const (
	KindAgent  MessageKind = "agent"
	KindHuman  MessageKind = "human"
	KindSystem MessageKind = "system"
)

// Message is a single entry in a discussion transcript. Messages are
// append-only and never mutated after creation.
type Message struct {
	ID        string      `json:"id"`
	Speaker   string      `json:"speaker"`
	Content   string      `json:"content"`
	Kind      MessageKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Round     int         `json:"round"`
}

// ChatMessage is a role/content pair in the request format shared by the
// completion backends.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the provider-independent parameters of a
// single text-generation call.
type CompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// ProviderUsage is the per-backend slice of a usage report.
type ProviderUsage struct {
	RequestsMade   int     `json:"requests_made"`
	RequestsFailed int     `json:"requests_failed"`
	DailyLimit     int     `json:"daily_limit"`
	Remaining      int     `json:"remaining"`
	SuccessRate    float64 `json:"success_rate"`
	Available      bool    `json:"available"`
}

// UsageSummary aggregates usage across all configured backends.
type UsageSummary struct {
	TotalRequests int                      `json:"total_requests"`
	TotalFailures int                      `json:"total_failures"`
	Providers     map[string]ProviderUsage `json:"providers"`
}

// CostEstimate reports spend derived from per-request pricing.
type CostEstimate struct {
	TotalDailyCost  float64            `json:"total_daily_cost"`
	Providers       map[string]float64 `json:"providers"`
	MonthlyEstimate float64            `json:"monthly_estimate"`
}

// SessionStatus is a point-in-time snapshot of a discussion session.
type SessionStatus struct {
	Status             string         `json:"status"`
	SessionID          string         `json:"session_id,omitempty"`
	Topic              string         `json:"topic,omitempty"`
	Round              int            `json:"round"`
	TotalMessages      int            `json:"total_messages"`
	AgentParticipation map[string]int `json:"agent_participation,omitempty"`
	HumanParticipants  []string       `json:"human_participants,omitempty"`
	APIUsage           *UsageSummary  `json:"api_usage,omitempty"`
	CostEstimate       *CostEstimate  `json:"cost_estimate,omitempty"`
}

// DiscussionSummary is returned when a session ends.
type DiscussionSummary struct {
	SessionID     string            `json:"session_id"`
	Topic         string            `json:"topic"`
	TotalMessages int               `json:"total_messages"`
	Rounds        int               `json:"rounds"`
	Summary       string            `json:"summary"`
	AgentNames    []string          `json:"agents"`
	Humans        []string          `json:"humans"`
	SavedFiles    map[string]string `json:"saved_files,omitempty"`
	SaveError     string            `json:"save_error,omitempty"`
}
