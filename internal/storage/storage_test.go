package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev.roundtable.agent/internal/models"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testRecord(sessionID, topic string, createdAt time.Time) models.ConversationRecord {
	return models.ConversationRecord{
		SessionID:         sessionID,
		Topic:             topic,
		CreatedAt:         createdAt,
		RoundNumber:       2,
		HumanParticipants: []string{"alice"},
		Messages: []models.Message{
			{ID: "m1", Speaker: "SYSTEM", Content: "Discussion started on topic: " + topic, Kind: models.KindSystem, Timestamp: createdAt, Round: 0},
			{ID: "m2", Speaker: "Dr. Skeptic", Content: "[SKEPTIC] Where is the evidence?", Kind: models.KindAgent, Timestamp: createdAt.Add(time.Minute), Round: 1},
			{ID: "m3", Speaker: "alice", Content: "Here is a study.", Kind: models.KindHuman, Timestamp: createdAt.Add(2 * time.Minute), Round: 2},
		},
		Metrics: models.ConversationMetrics{
			TotalMessages: 3,
			AgentMessages: 1,
			HumanMessages: 1,
			Rounds:        2,
		},
	}
}

func newTestStorage(t *testing.T, formats []string) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), formats, quietLogger())
	require.NoError(t, err)
	return s
}

func TestNew_CreatesSubdirs(t *testing.T) {
	dir := t.TempDir()
	_, err := New(dir, nil, quietLogger())
	require.NoError(t, err)
	for _, sub := range []string{"json", "markdown", "csv", "analysis"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSave_RoundTripJSON(t *testing.T) {
	s := newTestStorage(t, nil)
	rec := testRecord("session_abc", "AI Safety", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	saved, err := s.Save(rec, nil)
	require.NoError(t, err)

	// Default formats plus the always-on analysis file.
	require.Contains(t, saved, "json")
	require.Contains(t, saved, "markdown")
	require.Contains(t, saved, "analysis")
	assert.NotContains(t, saved, "csv")

	loaded, err := s.Load(filepath.Base(saved["json"]))
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, loaded.SessionID)
	assert.Equal(t, rec.Topic, loaded.Topic)
	require.Len(t, loaded.Messages, 3)
	assert.Equal(t, rec.Messages[1].Content, loaded.Messages[1].Content)
	assert.Equal(t, rec.Messages[1].Kind, loaded.Messages[1].Kind)
}

func TestSave_FilenameEncodesTimestampAndTopic(t *testing.T) {
	s := newTestStorage(t, []string{"json"})
	rec := testRecord("session_abc", "AI Safety & Ethics!", time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC))

	saved, err := s.Save(rec, nil)
	require.NoError(t, err)

	name := filepath.Base(saved["json"])
	assert.Equal(t, "20260301_123045_AI_Safety__Ethics_session_abc.json", name)
}

func TestSave_ExplicitFormats(t *testing.T) {
	s := newTestStorage(t, nil)
	rec := testRecord("session_abc", "topic", time.Now().UTC())

	saved, err := s.Save(rec, []string{"csv"})
	require.NoError(t, err)
	require.Contains(t, saved, "csv")
	assert.NotContains(t, saved, "json")

	data, err := os.ReadFile(saved["csv"])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "round,timestamp,speaker,kind,content", lines[0])
	assert.Contains(t, lines[2], "Dr. Skeptic")
}

func TestSave_MarkdownTranscript(t *testing.T) {
	s := newTestStorage(t, []string{"markdown"})
	rec := testRecord("session_abc", "AI Safety", time.Now().UTC())

	saved, err := s.Save(rec, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(saved["markdown"])
	require.NoError(t, err)
	md := string(data)
	assert.Contains(t, md, "# Discussion: AI Safety")
	assert.Contains(t, md, "### Round 0")
	assert.Contains(t, md, "### Round 1")
	assert.Contains(t, md, "**Dr. Skeptic**")
	assert.Contains(t, md, "> Discussion started on topic: AI Safety")
	assert.Contains(t, md, "**Human participants:** alice")
}

func TestSave_AnalysisSkipsSystemMessages(t *testing.T) {
	s := newTestStorage(t, []string{"json"})
	rec := testRecord("session_abc", "topic", time.Now().UTC())

	saved, err := s.Save(rec, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(saved["analysis"])
	require.NoError(t, err)
	var a analysis
	require.NoError(t, json.Unmarshal(data, &a))

	assert.Equal(t, "session_abc", a.SessionID)
	assert.NotContains(t, a.SpeakerActivity, "SYSTEM")
	assert.Equal(t, 1, a.SpeakerActivity["Dr. Skeptic"])
	assert.Equal(t, len("[SKEPTIC] Where is the evidence?"), a.LongestMessage)
}

func TestSave_UnknownFormatSkipped(t *testing.T) {
	s := newTestStorage(t, nil)
	rec := testRecord("session_abc", "topic", time.Now().UTC())

	saved, err := s.Save(rec, []string{"xml"})
	require.NoError(t, err)
	assert.NotContains(t, saved, "xml")
	assert.Contains(t, saved, "analysis")
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestStorage(t, []string{"json"})
	older := testRecord("session_old", "old topic", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := testRecord("session_new", "new topic", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	_, err := s.Save(older, nil)
	require.NoError(t, err)
	_, err = s.Save(newer, nil)
	require.NoError(t, err)

	infos, err := s.List()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "session_new", infos[0].SessionID)
	assert.Equal(t, "session_old", infos[1].SessionID)
	assert.Equal(t, 3, infos[0].TotalMessages)
}

func TestSearch_MatchesTopicAndContent(t *testing.T) {
	s := newTestStorage(t, []string{"json"})
	_, err := s.Save(testRecord("session_1", "Climate Change", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)
	_, err = s.Save(testRecord("session_2", "Space Travel", time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)

	byTopic, err := s.Search("climate")
	require.NoError(t, err)
	require.Len(t, byTopic, 1)
	assert.Equal(t, "session_1", byTopic[0].SessionID)

	// Message content matches both records.
	byContent, err := s.Search("evidence")
	require.NoError(t, err)
	assert.Len(t, byContent, 2)

	none, err := s.Search("nonexistent phrase")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLoad_MissingFile(t *testing.T) {
	s := newTestStorage(t, nil)
	_, err := s.Load("does_not_exist.json")
	assert.Error(t, err)
}
