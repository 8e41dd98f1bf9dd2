package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Load reads the config file at path, applies environment overrides and
// defaults, and validates the result. Any failure here means the process
// must not start checking repositories.
func Load(path string) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes the file strictly: unknown fields and trailing tokens are
// rejected so typos surface immediately instead of silently doing nothing.
func Parse(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides file values with environment variables. The names
// predate this program and are kept for deployment compatibility.
func (c *Config) applyEnv() error {
	if v := os.Getenv("MONITOR_BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("MONITOR_ADMIN_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("MONITOR_ADMIN_CHAT_ID: invalid chat id %q: %w", v, err)
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Summary.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.Summary.Model = v
	}
	if v := os.Getenv("SUMMARY_LANGUAGE"); v != "" {
		c.Summary.Language = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Summary.BaseURL) == "" {
		c.Summary.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.Summary.Model) == "" {
		c.Summary.Model = DefaultModel
	}
	if strings.TrimSpace(c.Summary.Language) == "" {
		c.Summary.Language = DefaultLanguage
	}
	if strings.TrimSpace(c.State.Path) == "" {
		c.State.Path = DefaultStatePath
	}
}
