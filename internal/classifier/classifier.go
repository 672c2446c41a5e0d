package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/config"
)

const (
	defaultSafeBrowsingURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	defaultPerspectiveURL  = "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"

	resolveUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Scores carries the probabilities returned by the text scoring service.
type Scores struct {
	Spam     float64
	Toxicity float64
}

type Classifier struct {
	cfg             config.Classifier
	apiClient       *http.Client
	resolveClient   *http.Client
	safeBrowsingURL string
	perspectiveURL  string
	logger          *log.Entry
}

type Option func(*Classifier)

// WithEndpoints overrides the external service URLs, used by tests.
func WithEndpoints(safeBrowsingURL, perspectiveURL string) Option {
	return func(c *Classifier) {
		if safeBrowsingURL != "" {
			c.safeBrowsingURL = safeBrowsingURL
		}
		if perspectiveURL != "" {
			c.perspectiveURL = perspectiveURL
		}
	}
}

func New(cfg config.Classifier, opts ...Option) *Classifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout
	retryClient.Logger = nil

	c := &Classifier{
		cfg:             cfg,
		apiClient:       retryClient.StandardClient(),
		resolveClient:   &http.Client{Timeout: cfg.RequestTimeout},
		safeBrowsingURL: defaultSafeBrowsingURL,
		perspectiveURL:  defaultPerspectiveURL,
		logger:          log.WithField("context", "classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveURL follows the redirect chain of a raw (possibly shortened) URL and
// returns the final destination. Any transport failure leaves the original URL
// as the answer.
func (c *Classifier) ResolveURL(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", resolveUserAgent)

	resp, err := c.resolveClient.Do(req)
	if err != nil {
		c.logger.WithField("url", rawURL).WithField("error", err.Error()).Debug("cant resolve url")
		return rawURL
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final != rawURL {
		c.logger.WithFields(log.Fields{"url": rawURL, "final": final}).Debug("resolved url")
	}
	return final
}

// IsMaliciousURL checks the URL against the reputation service. Any transport
// error or non-success response marks the URL unsafe: an unverifiable link is
// not allowed through.
func (c *Classifier) IsMaliciousURL(ctx context.Context, url string) bool {
	payload := map[string]any{
		"client": map[string]string{"clientId": "guardbot", "clientVersion": "1.0.0"},
		"threatInfo": map[string]any{
			"threatTypes":      []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION"},
			"platformTypes":    []string{"ANY_PLATFORM"},
			"threatEntryTypes": []string{"URL"},
			"threatEntries":    []map[string]string{{"url": url}},
		},
	}

	var result struct {
		Matches []json.RawMessage `json:"matches"`
	}
	if err := c.postJSON(ctx, c.safeBrowsingURL+"?key="+c.cfg.SafeBrowsingAPIKey, payload, &result); err != nil {
		c.logger.WithField("url", url).WithField("error", err.Error()).Warn("url reputation lookup failed, treating as unsafe")
		return true
	}
	if len(result.Matches) > 0 {
		c.logger.WithField("url", url).WithField("matches", len(result.Matches)).Info("unsafe url")
		return true
	}
	return false
}

// ScoreText submits free text for spam/toxicity scoring. Blank text and any
// failure score as benign: a transient API hiccup must not mute ordinary chat.
func (c *Classifier) ScoreText(ctx context.Context, text string) Scores {
	if strings.TrimSpace(text) == "" {
		return Scores{}
	}

	payload := map[string]any{
		"comment":             map[string]string{"text": text},
		"requestedAttributes": map[string]any{"SPAM": map[string]any{}, "TOXICITY": map[string]any{}},
		"languages":           []string{"en"},
	}

	var result struct {
		AttributeScores map[string]struct {
			SummaryScore struct {
				Value float64 `json:"value"`
			} `json:"summaryScore"`
		} `json:"attributeScores"`
	}
	if err := c.postJSON(ctx, c.perspectiveURL+"?key="+c.cfg.PerspectiveAPIKey, payload, &result); err != nil {
		c.logger.WithField("error", err.Error()).Warn("text scoring failed, treating as benign")
		return Scores{}
	}

	return Scores{
		Spam:     result.AttributeScores["SPAM"].SummaryScore.Value,
		Toxicity: result.AttributeScores["TOXICITY"].SummaryScore.Value,
	}
}

// IsSpamText applies the configured thresholds to a text score.
func (c *Classifier) IsSpamText(ctx context.Context, text string) bool {
	scores := c.ScoreText(ctx, text)
	return scores.Spam > c.cfg.SpamThreshold || scores.Toxicity > c.cfg.ToxicityThreshold
}

func (c *Classifier) postJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.apiClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
