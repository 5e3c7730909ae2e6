// Package research wraps the Google Custom Search API behind a plain
// search(query) -> text helper with an on-disk result cache.
package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"dev.roundtable.agent/internal/config"
)

const searchEndpoint = "https://www.googleapis.com/customsearch/v1"

// Client performs web searches. A zero-valued key or engine id leaves
// the client unconfigured; callers should check IsConfigured and treat
// an unconfigured client as absent.
type Client struct {
	apiKey     string
	engineID   string
	cacheDir   string
	maxResults int
	endpoint   string
	httpClient *http.Client
	log        *logrus.Logger
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// New creates a research client from configuration.
func New(cfg config.ResearchConfig, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 || maxResults > 10 {
		maxResults = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		cacheDir:   cfg.CacheDir,
		maxResults: maxResults,
		endpoint:   searchEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// IsConfigured reports whether search credentials are present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != "" && c.engineID != ""
}

// Search runs a web search and renders the top results as a plain-text
// block. Results are cached on disk keyed by the query.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("research client not configured")
	}
	if cached, ok := c.readCache(query); ok {
		c.log.WithField("query", query).Debug("research cache hit")
		return cached, nil
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create search request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search API error: %d - %s", resp.StatusCode, string(body))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse search response: %w", err)
	}

	text := renderResults(query, parsed.Items)
	c.writeCache(query, text)
	return text, nil
}

func renderResults(query string, items []searchItem) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Search results for " + strconv.Quote(query) + ":\n")
	for i, item := range items {
		b.WriteString(fmt.Sprintf("%d. %s\n   %s\n   %s\n", i+1, item.Title, item.Snippet, item.Link))
	}
	return b.String()
}

func (c *Client) cachePath(query string) string {
	sum := sha256.Sum256([]byte(query))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:16])+".txt")
}

func (c *Client) readCache(query string) (string, bool) {
	if c.cacheDir == "" {
		return "", false
	}
	data, err := os.ReadFile(c.cachePath(query)) // #nosec G304 - path derives from a hash inside the cache dir
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Client) writeCache(query, text string) {
	if c.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.cacheDir, 0o750); err != nil {
		c.log.WithError(err).Warn("failed to create research cache dir")
		return
	}
	if err := os.WriteFile(c.cachePath(query), []byte(text), 0o640); err != nil {
		c.log.WithError(err).Warn("failed to write research cache")
	}
}
