// Package summary turns raw release notes into a short human summary
// through an OpenAI-compatible chat completions API (OpenRouter by
// default).
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"relwatch/pkg/logx"
	"relwatch/pkg/mdv2"
)

// Summary is the outcome of one summarization. A failed summarization is
// not an error for the pipeline: Unavailable summaries make the caller
// render simplified raw notes instead.
type Summary struct {
	Text        string
	Unavailable bool
	Reason      string
}

// NoNotesText is returned without an API call when a release carries no
// description at all.
const NoNotesText = "No release notes provided."

const (
	maxInputRunes    = 4000
	truncationMarker = "\n\n... (text truncated)"

	// Responses at or under this many runes are treated as a failed
	// completion (models occasionally answer with filler like "OK").
	minSummaryRunes = 10

	maxAttempts = 3
)

type Options struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string

	// Timeout bounds a single completion call.
	Timeout time.Duration
}

type Client struct {
	opts Options
	http *http.Client
	log  logx.Logger

	retryBase     time.Duration
	retryMaxDelay time.Duration
}

func New(opts Options, log logx.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		opts:          opts,
		http:          &http.Client{Timeout: timeout},
		log:           log,
		retryBase:     2 * time.Second,
		retryMaxDelay: 10 * time.Second,
	}
}

// Summarize produces a summary of notes in the configured language.
// It never returns an error: after exhausted retries the result is marked
// Unavailable and the caller falls back to the raw notes.
func (c *Client) Summarize(ctx context.Context, notes string) Summary {
	trimmed := strings.TrimSpace(notes)
	if trimmed == "" {
		return Summary{Text: NoNotesText}
	}

	if n := utf8.RuneCountInString(trimmed); n > maxInputRunes {
		trimmed = mdv2.TruncRunes(trimmed, maxInputRunes) + truncationMarker
		c.log.Info("release notes truncated for summarization",
			logx.Int("runes", n),
			logx.Int("limit", maxInputRunes),
		)
	}

	userContent, err := json.Marshal(promptStructure{
		Task: "Perform a deep analysis of the release notes and generate a comprehensive summary " +
			"for system administrators. Your goal is NOT just to list changes, but to EXPLAIN their practical impact.",
		TargetLanguage: c.opts.Language,
		FormattingRules: formattingRules{
			Format:    "Markdown",
			Verbosity: "Verbose and explanatory. Avoid brevity. Expand on 'why' a change matters.",
			Headers:   "Use **double asterisks** for headers (e.g. **New Features**)",
			Lists:     "Use • for list items",
			Emojis:    "Use 🔒 for security, ⚡ for performance, ⚠️ for breaking changes",
			Forbidden: "NO technical tags, NO metadata, NO code blocks unless necessary",
			Structure: []string{
				"**New Features** (list each feature, then a hyphen, then a detailed explanation of what it does and why it is useful)",
				"**Fixes** (explain the bug and the resolution)",
				"**Important Notes** (breaking changes, security advisories, migration steps)",
			},
		},
		SourceText: trimmed,
	})
	if err != nil {
		return Summary{Unavailable: true, Reason: fmt.Sprintf("marshal prompt: %v", err)}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.complete(ctx, string(userContent))
		if err == nil {
			return Summary{Text: text}
		}
		lastErr = err
		c.log.Warn("summarization attempt failed",
			logx.Int("attempt", attempt),
			logx.Err(err),
		)
		if attempt >= maxAttempts {
			break
		}
		if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return Summary{Unavailable: true, Reason: lastErr.Error()}
}

type promptStructure struct {
	Task            string          `json:"task"`
	TargetLanguage  string          `json:"target_language"`
	FormattingRules formattingRules `json:"formatting_rules"`
	SourceText      string          `json:"source_text"`
}

type formattingRules struct {
	Format    string   `json:"format"`
	Verbosity string   `json:"verbosity"`
	Headers   string   `json:"headers"`
	Lists     string   `json:"lists"`
	Emojis    string   `json:"emojis"`
	Forbidden string   `json:"forbidden"`
	Structure []string `json:"structure"`
}

const systemPrompt = "You are an expert Senior DevOps Engineer and System Administrator. " +
	"You excel at explaining technical changes to humans. " +
	"You will receive a JSON object with source text. " +
	"Analyze it deeply. If the release notes are brief, use your expert knowledge to infer the context " +
	"and importance of the changes (without hallucinating non-existent features). " +
	"Output strictly in the 'target_language'. " +
	"Output clean, formatted Markdown."

// complete performs one chat completions call and validates the content.
func (c *Client) complete(ctx context.Context, userContent string) (string, error) {
	payload := map[string]any{
		"model": c.opts.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userContent},
		},
		"max_tokens":  1000,
		"temperature": 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")
	// OpenRouter attribution headers.
	req.Header.Set("HTTP-Referer", "https://github.com/relwatch/relwatch")
	req.Header.Set("X-Title", "GitHub Release Monitor")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call completion API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("completion API responded with status %s", resp.Status)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("completion API returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if utf8.RuneCountInString(content) <= minSummaryRunes {
		return "", fmt.Errorf("completion suspiciously short (%d runes)", utf8.RuneCountInString(content))
	}
	c.log.Debug("summary received", logx.Int("total_tokens", parsed.Usage.TotalTokens))
	return content, nil
}

// backoff doubles from retryBase up to retryMaxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
