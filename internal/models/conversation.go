package models

import "time"

// ConversationRecord is the persisted form of a discussion session,
// produced when a session ends and consumed by the storage layer.
type ConversationRecord struct {
	SessionID         string              `json:"session_id"`
	Topic             string              `json:"topic"`
	CreatedAt         time.Time           `json:"created_at"`
	RoundNumber       int                 `json:"round_number"`
	IsActive          bool                `json:"is_active"`
	HumanParticipants []string            `json:"human_participants"`
	Messages          []Message           `json:"messages"`
	Metrics           ConversationMetrics `json:"metrics"`
}

// ConversationMetrics summarizes a transcript for analysis output.
type ConversationMetrics struct {
	TotalMessages      int            `json:"total_messages"`
	AgentMessages      int            `json:"agent_messages"`
	HumanMessages      int            `json:"human_messages"`
	Rounds             int            `json:"rounds"`
	AvgMessageLength   float64        `json:"avg_message_length"`
	AgentParticipation map[string]int `json:"agent_participation"`
	DurationMinutes    float64        `json:"duration_minutes"`
}
