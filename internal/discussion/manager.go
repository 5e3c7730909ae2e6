package discussion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/models"
	"dev.roundtable.agent/internal/observability/metrics"
)

// Store persists an ended conversation and returns the written files
// keyed by format.
type Store interface {
	Save(rec models.ConversationRecord, formats []string) (map[string]string, error)
}

// UsageReporter surfaces router usage for status reports.
type UsageReporter interface {
	Usage() models.UsageSummary
	Costs() models.CostEstimate
	CanUse(backend string) bool
	Backends() []string
}

// Researcher is the black-box web search helper. An unconfigured
// researcher is represented by nil.
type Researcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Options configures a Manager.
type Options struct {
	Agents            map[string]Agent
	Usage             UsageReporter // may be nil in demo mode
	Store             Store         // may be nil
	Researcher        Researcher    // may be nil
	MaxRounds         int
	MaxAgentsPerRound int
	ContextWindow     int
	Log               *logrus.Logger
	Metrics           *metrics.Collector // may be nil
}

// Manager orchestrates the turn-taking discussion: it owns the session,
// tracks participation, selects the next speakers, and fans agent
// generation failures into system messages instead of aborting a batch.
// Scheduler state is serialized by one mutex.
type Manager struct {
	mu sync.Mutex

	agents        map[string]Agent
	participation map[string]int
	session       *Session
	endSummary    *models.DiscussionSummary

	usage      UsageReporter
	store      Store
	researcher Researcher

	maxRounds         int
	maxAgentsPerRound int
	contextWindow     int

	log     *logrus.Logger
	metrics *metrics.Collector

	subMu       sync.Mutex
	subscribers map[chan models.Message]struct{}
}

// NewManager builds a scheduler over the given agents.
func NewManager(opts Options) *Manager {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 10
	}
	if opts.MaxAgentsPerRound <= 0 {
		opts.MaxAgentsPerRound = 2
	}
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = 5
	}
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	m := &Manager{
		agents:            opts.Agents,
		participation:     make(map[string]int, len(opts.Agents)),
		usage:             opts.Usage,
		store:             opts.Store,
		researcher:        opts.Researcher,
		maxRounds:         opts.MaxRounds,
		maxAgentsPerRound: opts.MaxAgentsPerRound,
		contextWindow:     opts.ContextWindow,
		log:               opts.Log,
		metrics:           opts.Metrics,
		subscribers:       make(map[chan models.Message]struct{}),
	}
	for role := range opts.Agents {
		m.participation[role] = 0
	}
	return m
}

// StartDiscussion opens a new session for a topic, replacing any
// previous one, and resets participation tracking.
func (m *Manager) StartDiscussion(ctx context.Context, topic, sessionID string) *Session {
	m.mu.Lock()
	m.session = NewSession(topic, sessionID)
	m.endSummary = nil
	for role := range m.agents {
		m.participation[role] = 0
	}
	session := m.session
	m.mu.Unlock()

	m.append(session, "SYSTEM", "Discussion started on topic: "+topic, models.KindSystem)

	if m.researcher != nil {
		if background, err := m.researcher.Search(ctx, topic); err != nil {
			m.log.WithError(err).Warn("background research failed")
		} else if background != "" {
			m.append(session, "SYSTEM", "Background research:\n"+background, models.KindSystem)
		}
	}
	return session
}

// AddHumanMessage records a human participant's contribution.
func (m *Manager) AddHumanMessage(speaker, content string) (models.Message, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return models.Message{}, ErrNoActiveSession
	}
	msg, err := m.append(session, speaker, content, models.KindHuman)
	if err != nil {
		return models.Message{}, err
	}
	session.AddHumanParticipant(speaker)
	return msg, nil
}

// NextSpeakers returns up to maxN roles, those with the lowest
// cumulative participation first. Ties break by the canonical role
// order, so the selection is deterministic.
func (m *Manager) NextSpeakers(maxN int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	if maxN <= 0 {
		maxN = m.maxAgentsPerRound
	}

	roles := make([]string, 0, len(m.agents))
	for _, role := range RoleOrder {
		if _, ok := m.agents[role]; ok {
			roles = append(roles, role)
		}
	}
	sort.SliceStable(roles, func(i, j int) bool {
		return m.participation[roles[i]] < m.participation[roles[j]]
	})

	if len(roles) > maxN {
		roles = roles[:maxN]
	}
	return roles
}

// GenerateAgentResponses asks the named agents (or the next scheduled
// speakers when roles is nil) to contribute. Calls run concurrently; a
// failing agent becomes a system message and never aborts the batch.
// Results whose session ended while the call was in flight are dropped.
func (m *Manager) GenerateAgentResponses(ctx context.Context, roles []string) []models.Message {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil || !session.Active() {
		return nil
	}
	if roles == nil {
		roles = m.NextSpeakers(m.maxAgentsPerRound)
	}

	recent := m.formatRecent(session)
	topic := session.Topic()

	type result struct {
		role string
		text string
		err  error
	}
	results := make([]result, len(roles))

	var wg sync.WaitGroup
	for i, role := range roles {
		agent, ok := m.agents[role]
		if !ok {
			results[i] = result{role: role, err: fmt.Errorf("unknown agent role %q", role)}
			continue
		}
		wg.Add(1)
		go func(i int, role string, agent Agent) {
			defer wg.Done()
			text, err := agent.GenerateResponse(ctx, topic, recent)
			results[i] = result{role: role, text: text, err: err}
		}(i, role, agent)
	}
	wg.Wait()

	var out []models.Message
	for _, res := range results {
		if res.role == "" {
			continue
		}
		if res.err != nil {
			errText := fmt.Sprintf("Error generating response from %s: %v", res.role, res.err)
			if _, err := m.append(session, "SYSTEM", errText, models.KindSystem); err != nil {
				m.log.WithField("role", res.role).Warn("dropping failure notice for ended session")
			}
			continue
		}
		agent := m.agents[res.role]
		msg, err := m.append(session, agent.Name(), res.text, models.KindAgent)
		if err != nil {
			m.log.WithField("role", res.role).Warn("dropping response for ended session")
			continue
		}
		m.mu.Lock()
		m.participation[res.role]++
		m.mu.Unlock()
		out = append(out, msg)
	}
	return out
}

// AdvanceRound moves to the next round and appends a round marker.
func (m *Manager) AdvanceRound() (int, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return 0, ErrNoActiveSession
	}
	round, err := session.AdvanceRound()
	if err != nil {
		return round, err
	}
	if m.metrics != nil {
		m.metrics.DiscussionRounds.Inc()
	}
	_, _ = m.append(session, "SYSTEM", fmt.Sprintf("--- Round %d ---", round), models.KindSystem)
	return round, nil
}

// ShouldContinue reports whether another round may run.
func (m *Manager) ShouldContinue() bool {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil || !session.Active() {
		return false
	}
	return session.Round() < m.maxRounds
}

// EndDiscussion closes the session, generates a summary, and persists
// the transcript. Ending an already-ended discussion is a no-op that
// returns the cached summary, so nothing is persisted twice.
func (m *Manager) EndDiscussion() (*models.DiscussionSummary, error) {
	m.mu.Lock()
	session := m.session
	if session == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if m.endSummary != nil {
		cached := m.endSummary
		m.mu.Unlock()
		return cached, nil
	}
	participation := m.participationSnapshotLocked()
	m.mu.Unlock()

	summaryText := m.summarize(session)
	_, _ = m.append(session, "SYSTEM", "Discussion ended. Summary: "+summaryText, models.KindSystem)
	session.End()

	summary := &models.DiscussionSummary{
		SessionID:     session.ID(),
		Topic:         session.Topic(),
		TotalMessages: len(session.Messages()),
		Rounds:        session.Round(),
		Summary:       summaryText,
		AgentNames:    m.agentNames(),
		Humans:        session.HumanParticipants(),
	}

	if m.store != nil {
		saved, err := m.store.Save(session.Record(participation), nil)
		if err != nil {
			summary.SaveError = err.Error()
			m.log.WithError(err).Error("failed to save conversation")
		} else {
			summary.SavedFiles = saved
		}
	}

	m.mu.Lock()
	m.endSummary = summary
	m.mu.Unlock()
	return summary, nil
}

// SessionStatus returns a snapshot of the current session and, when a
// usage reporter is wired, the API usage and cost estimates.
func (m *Manager) SessionStatus() models.SessionStatus {
	m.mu.Lock()
	session := m.session
	participation := m.participationSnapshotLocked()
	m.mu.Unlock()

	if session == nil {
		return models.SessionStatus{Status: "no_active_session"}
	}
	status := models.SessionStatus{
		Status:             "active",
		SessionID:          session.ID(),
		Topic:              session.Topic(),
		Round:              session.Round(),
		TotalMessages:      len(session.Messages()),
		AgentParticipation: participation,
		HumanParticipants:  session.HumanParticipants(),
	}
	if !session.Active() {
		status.Status = "ended"
	}
	if m.usage != nil {
		usage := m.usage.Usage()
		costs := m.usage.Costs()
		status.APIUsage = &usage
		status.CostEstimate = &costs
	}
	return status
}

// UsageReport returns the detailed API usage report.
func (m *Manager) UsageReport() (models.UsageSummary, models.CostEstimate, map[string]bool) {
	if m.usage == nil {
		return models.UsageSummary{}, models.CostEstimate{}, nil
	}
	availability := make(map[string]bool)
	for _, backend := range m.usage.Backends() {
		availability[backend] = m.usage.CanUse(backend)
	}
	return m.usage.Usage(), m.usage.Costs(), availability
}

// Session returns the current session, or nil.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Subscribe registers a listener for appended messages. The returned
// cancel function must be called to release the channel. Slow listeners
// miss messages rather than blocking the scheduler.
func (m *Manager) Subscribe() (<-chan models.Message, func()) {
	ch := make(chan models.Message, 16)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		delete(m.subscribers, ch)
		m.subMu.Unlock()
	}
	return ch, cancel
}

// append writes a message to the session, publishes it to subscribers,
// and counts it.
func (m *Manager) append(session *Session, speaker, content string, kind models.MessageKind) (models.Message, error) {
	msg, err := session.AddMessage(speaker, content, kind)
	if err != nil {
		return models.Message{}, err
	}
	if m.metrics != nil {
		m.metrics.DiscussionMessages.WithLabelValues(string(kind)).Inc()
	}
	m.subMu.Lock()
	for ch := range m.subscribers {
		select {
		case ch <- msg:
		default:
		}
	}
	m.subMu.Unlock()
	return msg, nil
}

// formatRecent renders the trailing context window as "speaker: content"
// lines, skipping system messages.
func (m *Manager) formatRecent(session *Session) []string {
	var lines []string
	for _, msg := range session.RecentMessages(m.contextWindow) {
		if msg.Kind == models.KindSystem {
			continue
		}
		lines = append(lines, msg.Speaker+": "+msg.Content)
	}
	return lines
}

func (m *Manager) summarize(session *Session) string {
	var agentCount, humanCount int
	for _, msg := range session.Messages() {
		switch msg.Kind {
		case models.KindAgent:
			agentCount++
		case models.KindHuman:
			humanCount++
		}
	}
	return fmt.Sprintf("Discussion on %q with %d agent contributions and %d human contributions across %d rounds.",
		session.Topic(), agentCount, humanCount, session.Round())
}

func (m *Manager) participationSnapshotLocked() map[string]int {
	snapshot := make(map[string]int, len(m.participation))
	for role, n := range m.participation {
		snapshot[role] = n
	}
	return snapshot
}

func (m *Manager) agentNames() []string {
	names := make([]string, 0, len(m.agents))
	for _, role := range RoleOrder {
		if agent, ok := m.agents[role]; ok {
			names = append(names, agent.Name())
		}
	}
	return names
}
