package moderation

import (
	"context"
	"regexp"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/guardbot/internal/classifier"
	"github.com/iamwavecut/guardbot/internal/db"
	"github.com/iamwavecut/guardbot/internal/observability"
)

const (
	CheckBurst      = "message_burst"
	CheckBannedWord = "banned_word"
	CheckBadLink    = "suspicious_link"
	CheckSpamText   = "spam_text"
)

// TextClassifier is the remote-scoring capability the pipeline consumes.
type TextClassifier interface {
	ResolveURL(ctx context.Context, rawURL string) string
	IsMaliciousURL(ctx context.Context, url string) bool
	IsSpamText(ctx context.Context, text string) bool
}

// Verdict is the outcome of screening one message.
type Verdict struct {
	Violation bool
	Check     string
	Detail    string
}

// Pipeline runs the ordered violation checks over incoming messages. Checks
// short-circuit: the first hit wins and later checks never run.
type Pipeline struct {
	limiter    *RateLimiter
	classifier TextClassifier
	words      db.WordListStore
	logger     *log.Entry

	wordsMu     sync.RWMutex
	wordsLoaded bool
	wordMatch   []*regexp.Regexp
}

func NewPipeline(limiter *RateLimiter, textClassifier TextClassifier, words db.WordListStore) *Pipeline {
	return &Pipeline{
		limiter:    limiter,
		classifier: textClassifier,
		words:      words,
		logger:     log.WithField("context", "pipeline"),
	}
}

// Screen checks one group message. Bursts count against the sender even when
// the message text is empty.
func (p *Pipeline) Screen(ctx context.Context, userID int64, text string) Verdict {
	if p.limiter.Observe(userID) {
		return p.hit(CheckBurst, "message rate limit exceeded")
	}
	if word := p.matchBannedWord(ctx, text); word != "" {
		return p.hit(CheckBannedWord, word)
	}
	for _, rawURL := range classifier.ExtractURLs(text) {
		resolved := p.classifier.ResolveURL(ctx, rawURL)
		if p.classifier.IsMaliciousURL(ctx, resolved) {
			return p.hit(CheckBadLink, resolved)
		}
	}
	if strings.TrimSpace(text) != "" && p.classifier.IsSpamText(ctx, text) {
		return p.hit(CheckSpamText, "flagged by content scoring")
	}
	return Verdict{}
}

// ScreenName checks a joining member's display name, which never counts
// against any rate window.
func (p *Pipeline) ScreenName(ctx context.Context, name string) Verdict {
	if word := p.matchBannedWord(ctx, name); word != "" {
		return Verdict{Violation: true, Check: CheckBannedWord, Detail: word}
	}
	if strings.TrimSpace(name) != "" && p.classifier.IsSpamText(ctx, name) {
		return Verdict{Violation: true, Check: CheckSpamText, Detail: "name flagged by content scoring"}
	}
	return Verdict{}
}

// Reload drops the cached word list so the next message re-reads the store.
func (p *Pipeline) Reload() {
	p.wordsMu.Lock()
	p.wordsLoaded = false
	p.wordMatch = nil
	p.wordsMu.Unlock()
}

func (p *Pipeline) hit(check, detail string) Verdict {
	observability.ViolationsTotal.WithLabelValues(check).Inc()
	return Verdict{Violation: true, Check: check, Detail: detail}
}

func (p *Pipeline) matchBannedWord(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, matcher := range p.matchers(ctx) {
		if match := matcher.FindString(text); match != "" {
			return strings.ToLower(match)
		}
	}
	return ""
}

// matchers compiles one whole-word case-insensitive pattern per banned word.
// The list is cached until Reload; a store failure keeps the previous list.
func (p *Pipeline) matchers(ctx context.Context) []*regexp.Regexp {
	p.wordsMu.RLock()
	if p.wordsLoaded {
		defer p.wordsMu.RUnlock()
		return p.wordMatch
	}
	p.wordsMu.RUnlock()

	p.wordsMu.Lock()
	defer p.wordsMu.Unlock()
	if p.wordsLoaded {
		return p.wordMatch
	}

	words, err := p.words.GetBannedWords(ctx)
	if err != nil {
		p.logger.WithField("error", err.Error()).Error("cant load banned words")
		return p.wordMatch
	}

	compiled := make([]*regexp.Regexp, 0, len(words))
	for _, word := range words {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word.Word) + `\b`)
		if err != nil {
			p.logger.WithField("word", word.Word).Error("cant compile word pattern")
			continue
		}
		compiled = append(compiled, pattern)
	}
	p.wordMatch = compiled
	p.wordsLoaded = true
	return p.wordMatch
}
