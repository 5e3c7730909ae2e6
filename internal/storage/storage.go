// Package storage persists ended discussions to disk as JSON, Markdown
// and CSV, with a companion analysis file per conversation.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/models"
)

var subdirs = []string{"json", "markdown", "csv", "analysis"}

// Storage writes conversations under a base directory with one
// subdirectory per format.
type Storage struct {
	dir            string
	defaultFormats []string
	log            *logrus.Logger
}

// New creates the storage directory tree.
func New(dir string, defaultFormats []string, log *logrus.Logger) (*Storage, error) {
	if len(defaultFormats) == 0 {
		defaultFormats = []string{"json", "markdown"}
	}
	if log == nil {
		log = logrus.New()
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}
	return &Storage{dir: dir, defaultFormats: defaultFormats, log: log}, nil
}

// Save writes the record in the requested formats (the configured
// defaults when formats is nil) plus the analysis file, returning the
// written paths keyed by format.
func (s *Storage) Save(rec models.ConversationRecord, formats []string) (map[string]string, error) {
	if formats == nil {
		formats = s.defaultFormats
	}
	base := s.baseFilename(rec)
	saved := make(map[string]string, len(formats)+1)

	for _, format := range formats {
		var (
			path string
			err  error
		)
		switch format {
		case "json":
			path = filepath.Join(s.dir, "json", base+".json")
			err = writeJSON(path, rec)
		case "markdown":
			path = filepath.Join(s.dir, "markdown", base+".md")
			err = s.writeMarkdown(path, rec)
		case "csv":
			path = filepath.Join(s.dir, "csv", base+".csv")
			err = s.writeCSV(path, rec)
		default:
			s.log.WithField("format", format).Warn("unknown save format, skipping")
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("failed to save %s: %w", format, err)
		}
		saved[format] = path
	}

	analysisPath := filepath.Join(s.dir, "analysis", base+"_analysis.json")
	if err := writeJSON(analysisPath, s.analyze(rec)); err != nil {
		return saved, fmt.Errorf("failed to save analysis: %w", err)
	}
	saved["analysis"] = analysisPath
	return saved, nil
}

// ConversationInfo describes one stored conversation for listings.
type ConversationInfo struct {
	Filename      string    `json:"filename"`
	Topic         string    `json:"topic"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	TotalMessages int       `json:"total_messages"`
}

// List returns stored conversations, newest first.
func (s *Storage) List() ([]ConversationInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read storage dir: %w", err)
	}
	var infos []ConversationInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		rec, err := s.Load(entry.Name())
		if err != nil {
			s.log.WithField("file", entry.Name()).WithError(err).Warn("skipping unreadable conversation")
			continue
		}
		infos = append(infos, ConversationInfo{
			Filename:      entry.Name(),
			Topic:         rec.Topic,
			SessionID:     rec.SessionID,
			CreatedAt:     rec.CreatedAt,
			TotalMessages: len(rec.Messages),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos, nil
}

// Load reads one stored conversation by filename.
func (s *Storage) Load(filename string) (models.ConversationRecord, error) {
	var rec models.ConversationRecord
	path := filepath.Join(s.dir, "json", filepath.Base(filename))
	data, err := os.ReadFile(path) // #nosec G304 - path is constrained to the storage dir
	if err != nil {
		return rec, fmt.Errorf("failed to read conversation: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return rec, nil
}

// Search returns conversations whose topic or message content contains
// the query, case-insensitive.
func (s *Storage) Search(query string) ([]ConversationInfo, error) {
	infos, err := s.List()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var matches []ConversationInfo
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Topic), query) {
			matches = append(matches, info)
			continue
		}
		rec, err := s.Load(info.Filename)
		if err != nil {
			continue
		}
		for _, msg := range rec.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				matches = append(matches, info)
				break
			}
		}
	}
	return matches, nil
}

func (s *Storage) baseFilename(rec models.ConversationRecord) string {
	timestamp := rec.CreatedAt.Format("20060102_150405")
	safeTopic := sanitizeTopic(rec.Topic)
	return timestamp + "_" + safeTopic + "_" + rec.SessionID
}

// sanitizeTopic keeps letters, digits, dashes and underscores, mapping
// spaces to underscores and truncating to 30 characters.
func sanitizeTopic(topic string) string {
	var b strings.Builder
	for _, r := range topic {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r == '-' || r == '_':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}

func (s *Storage) writeMarkdown(path string, rec models.ConversationRecord) error {
	var b strings.Builder
	b.WriteString("# Discussion: " + rec.Topic + "\n\n")
	b.WriteString("- **Session:** " + rec.SessionID + "\n")
	b.WriteString("- **Created:** " + rec.CreatedAt.Format(time.RFC3339) + "\n")
	b.WriteString(fmt.Sprintf("- **Rounds:** %d\n", rec.RoundNumber))
	b.WriteString(fmt.Sprintf("- **Messages:** %d\n\n", len(rec.Messages)))
	if len(rec.HumanParticipants) > 0 {
		b.WriteString("**Human participants:** " + strings.Join(rec.HumanParticipants, ", ") + "\n\n")
	}
	b.WriteString("## Transcript\n\n")

	currentRound := -1
	for _, msg := range rec.Messages {
		if msg.Round != currentRound {
			currentRound = msg.Round
			b.WriteString(fmt.Sprintf("### Round %d\n\n", currentRound))
		}
		switch msg.Kind {
		case models.KindSystem:
			b.WriteString("> " + msg.Content + "\n\n")
		default:
			b.WriteString("**" + msg.Speaker + "** (" + msg.Timestamp.Format("15:04:05") + "):\n\n")
			b.WriteString(msg.Content + "\n\n")
		}
	}
	return os.WriteFile(path, []byte(b.String()), 0o640)
}

func (s *Storage) writeCSV(path string, rec models.ConversationRecord) error {
	f, err := os.Create(path) // #nosec G304 - path is constrained to the storage dir
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"round", "timestamp", "speaker", "kind", "content"}); err != nil {
		return err
	}
	for _, msg := range rec.Messages {
		row := []string{
			fmt.Sprintf("%d", msg.Round),
			msg.Timestamp.Format(time.RFC3339Nano),
			msg.Speaker,
			string(msg.Kind),
			msg.Content,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// analysis is the computed per-conversation report.
type analysis struct {
	SessionID       string                     `json:"session_id"`
	Topic           string                     `json:"topic"`
	Metrics         models.ConversationMetrics `json:"metrics"`
	SpeakerActivity map[string]int             `json:"speaker_activity"`
	LongestMessage  int                        `json:"longest_message"`
}

func (s *Storage) analyze(rec models.ConversationRecord) analysis {
	a := analysis{
		SessionID:       rec.SessionID,
		Topic:           rec.Topic,
		Metrics:         rec.Metrics,
		SpeakerActivity: make(map[string]int),
	}
	for _, msg := range rec.Messages {
		if msg.Kind == models.KindSystem {
			continue
		}
		a.SpeakerActivity[msg.Speaker]++
		if len(msg.Content) > a.LongestMessage {
			a.LongestMessage = len(msg.Content)
		}
	}
	return a
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o640)
}
