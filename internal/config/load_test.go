package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validJSON = `{
  "telegram": {"token": "123:abc", "chat_id": 42},
  "summary": {"api_key": "sk-or-test"},
  "repos": [
    {"name": "Tailscale", "repo": "tailscale/tailscale"},
    {"name": "Caddy", "repo": "caddyserver/caddy"}
  ]
}`

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("MONITOR_BOT_TOKEN", "")
	t.Setenv("MONITOR_ADMIN_CHAT_ID", "")
	t.Setenv("OPENROUTER_MODEL", "")
	path := writeConfigFile(t, "config.json", validJSON)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.ChatID != 42 {
		t.Fatalf("ChatID = %d, want 42", cfg.Telegram.ChatID)
	}
	if len(cfg.Repos) != 2 || cfg.Repos[0].Name != "Tailscale" {
		t.Fatalf("repos not preserved in order: %+v", cfg.Repos)
	}
	if cfg.Summary.Model != DefaultModel {
		t.Fatalf("Model default = %q", cfg.Summary.Model)
	}
	if cfg.Summary.BaseURL != DefaultBaseURL {
		t.Fatalf("BaseURL default = %q", cfg.Summary.BaseURL)
	}
	if cfg.State.Path != DefaultStatePath {
		t.Fatalf("State.Path default = %q", cfg.State.Path)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	t.Setenv("SUMMARY_LANGUAGE", "")
	path := writeConfigFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  chat_id: 42
summary:
  api_key: sk-or-test
  language: German
repos:
  - name: Zerolog
    repo: rs/zerolog
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Summary.Language != "German" {
		t.Fatalf("Language = %q", cfg.Summary.Language)
	}
	if cfg.Repos[0].Repo != "rs/zerolog" {
		t.Fatalf("Repo = %q", cfg.Repos[0].Repo)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, "config.json", `{
  "telegram": {"token": "123:abc", "chat_id": 42, "pol_timeout": "10s"},
  "summary": {"api_key": "k"},
  "repos": [{"name": "X", "repo": "a/b"}]
}`)

	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	path := writeConfigFile(t, "config.json", validJSON+`{"more": true}`)
	if _, err := Parse(path); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MONITOR_BOT_TOKEN", "999:zzz")
	t.Setenv("MONITOR_ADMIN_CHAT_ID", "-100200300")
	t.Setenv("OPENROUTER_MODEL", "openai/gpt-4o")
	t.Setenv("SUMMARY_LANGUAGE", "Russian")

	path := writeConfigFile(t, "config.json", validJSON)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.Token != "999:zzz" {
		t.Fatalf("Token override = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.ChatID != -100200300 {
		t.Fatalf("ChatID override = %d", cfg.Telegram.ChatID)
	}
	if cfg.Summary.Model != "openai/gpt-4o" {
		t.Fatalf("Model override = %q", cfg.Summary.Model)
	}
	if cfg.Summary.Language != "Russian" {
		t.Fatalf("Language override = %q", cfg.Summary.Language)
	}
}

func TestLoadRejectsBadEnvChatID(t *testing.T) {
	t.Setenv("MONITOR_ADMIN_CHAT_ID", "not-a-number")
	path := writeConfigFile(t, "config.json", validJSON)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid MONITOR_ADMIN_CHAT_ID")
	}
}

func TestValidateRepoShape(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		repo    string
		wantErr bool
	}{
		{name: "ok", repo: "owner/repo"},
		{name: "missing slash", repo: "ownerrepo", wantErr: true},
		{name: "empty owner", repo: "/repo", wantErr: true},
		{name: "empty repo", repo: "owner/", wantErr: true},
		{name: "extra slash", repo: "a/b/c", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "t", ChatID: 1},
				Summary:  SummaryConfig{APIKey: "k"},
				Repos:    []Repository{{Name: "X", Repo: tt.repo}},
			}
			err := Validate(cfg)
			if tt.wantErr && err == nil {
				t.Fatalf("Validate(%q) expected error", tt.repo)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate(%q) error: %v", tt.repo, err)
			}
		})
	}
}

func TestValidateRequiresRepos(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", ChatID: 1},
		Summary:  SummaryConfig{APIKey: "k"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty repos")
	}
	if !strings.Contains(err.Error(), "Repos") {
		t.Fatalf("error does not mention repos: %v", err)
	}
}

func TestValidateDurations(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Telegram: TelegramConfig{Token: "t", ChatID: 1},
			Summary:  SummaryConfig{APIKey: "k"},
			Repos:    []Repository{{Name: "X", Repo: "a/b"}},
		}
	}

	cfg := base()
	cfg.Telegram.SendTimeout = "20s"
	cfg.GitHub.RequestTimeout = "1m"
	if err := Validate(cfg); err != nil {
		t.Fatalf("valid durations rejected: %v", err)
	}

	cfg = base()
	cfg.Telegram.SendTimeout = "soon"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for malformed send_timeout")
	}

	cfg = base()
	cfg.Summary.RequestTimeout = "-5s"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative request_timeout")
	}
}
