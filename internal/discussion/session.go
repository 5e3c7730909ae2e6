package discussion

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"dev.roundtable.agent/internal/models"
)

// ErrSessionEnded is returned when appending to a session that has ended.
var ErrSessionEnded = errors.New("discussion session has ended")

// ErrNoActiveSession is returned by operations that need a live session.
var ErrNoActiveSession = errors.New("no active discussion session")

// Session holds the ordered transcript of one discussion. The message
// log and the round counter are order-dependent, so every mutation goes
// through one mutex.
type Session struct {
	mu sync.Mutex

	id        string
	topic     string
	createdAt time.Time
	messages  []models.Message
	round     int
	active    bool
	humans    []string
}

// NewSession starts a fresh session for a topic. An empty id gets a
// generated one.
func NewSession(topic, id string) *Session {
	if id == "" {
		id = "session_" + uuid.NewString()
	}
	return &Session{
		id:        id,
		topic:     topic,
		createdAt: time.Now(),
		active:    true,
	}
}

// AddMessage appends a message to the transcript. It fails once the
// session has ended and leaves the log untouched in that case.
func (s *Session) AddMessage(speaker, content string, kind models.MessageKind) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return models.Message{}, ErrSessionEnded
	}
	msg := models.Message{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Content:   content,
		Kind:      kind,
		Timestamp: time.Now(),
		Round:     s.round,
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// RecentMessages returns up to n of the latest messages, oldest first.
func (s *Session) RecentMessages(n int) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || len(s.messages) == 0 {
		return nil
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]models.Message, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// MessagesByRound returns the messages recorded during one round.
func (s *Session) MessagesByRound(round int) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.Round == round {
			out = append(out, m)
		}
	}
	return out
}

// Messages returns a copy of the full transcript.
func (s *Session) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AdvanceRound moves the session to the next round and returns it.
func (s *Session) AdvanceRound() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return s.round, ErrSessionEnded
	}
	s.round++
	return s.round, nil
}

// End marks the session inactive. Subsequent AddMessage calls fail.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// AddHumanParticipant records a distinct human speaker name.
func (s *Session) AddHumanParticipant(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.humans {
		if h == name {
			return
		}
	}
	s.humans = append(s.humans, name)
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Topic returns the discussion topic.
func (s *Session) Topic() string { return s.topic }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Round returns the current round number.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Active reports whether the session still accepts messages.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HumanParticipants returns the distinct human speaker names.
func (s *Session) HumanParticipants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.humans))
	copy(out, s.humans)
	return out
}

// Record converts the session into its persisted form.
func (s *Session) Record(participation map[string]int) models.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]models.Message, len(s.messages))
	copy(messages, s.messages)

	metrics := models.ConversationMetrics{
		TotalMessages:      len(messages),
		Rounds:             s.round,
		AgentParticipation: participation,
	}
	var totalLen int
	for _, m := range messages {
		totalLen += len(m.Content)
		switch m.Kind {
		case models.KindAgent:
			metrics.AgentMessages++
		case models.KindHuman:
			metrics.HumanMessages++
		}
	}
	if len(messages) > 0 {
		metrics.AvgMessageLength = float64(totalLen) / float64(len(messages))
		metrics.DurationMinutes = messages[len(messages)-1].Timestamp.Sub(s.createdAt).Minutes()
	}

	humans := make([]string, len(s.humans))
	copy(humans, s.humans)

	return models.ConversationRecord{
		SessionID:         s.id,
		Topic:             s.topic,
		CreatedAt:         s.createdAt,
		RoundNumber:       s.round,
		IsActive:          s.active,
		HumanParticipants: humans,
		Messages:          messages,
		Metrics:           metrics,
	}
}
