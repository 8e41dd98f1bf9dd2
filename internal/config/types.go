package config

type Config struct {
	Telegram TelegramConfig `json:"telegram" validate:"required"`
	GitHub   GitHubConfig   `json:"github"`
	Summary  SummaryConfig  `json:"summary" validate:"required"`
	State    StateConfig    `json:"state"`
	Logging  LoggingConfig  `json:"logging"`

	// Repos is the ordered list of repositories to check. Order is
	// preserved: one run walks the list top to bottom.
	Repos []Repository `json:"repos" validate:"required,min=1,dive"`
}

// Repository pairs a display name with a GitHub "owner/repo" path.
type Repository struct {
	Name string `json:"name" validate:"required"`
	Repo string `json:"repo" validate:"required,ownerrepo"`
}

type TelegramConfig struct {
	Token  string `json:"token" validate:"required"`
	ChatID int64  `json:"chat_id" validate:"required"`

	// SendTimeout bounds a single sendMessage call.
	// Go duration string (e.g. "20s").
	SendTimeout string `json:"send_timeout,omitempty" validate:"duration"`
}

type GitHubConfig struct {
	// Token is optional; unauthenticated requests work with tighter
	// rate limits.
	Token string `json:"token,omitempty"`

	// RequestTimeout bounds a single API call. Go duration string.
	RequestTimeout string `json:"request_timeout,omitempty" validate:"duration"`
}

// SummaryConfig configures the OpenRouter-backed summarizer.
//
// BaseURL can point at any OpenAI-compatible chat completions endpoint;
// it defaults to OpenRouter.
type SummaryConfig struct {
	APIKey   string `json:"api_key" validate:"required"`
	BaseURL  string `json:"base_url,omitempty"`
	Model    string `json:"model,omitempty"`
	Language string `json:"language,omitempty"`

	// RequestTimeout bounds a single completion call. Go duration string.
	RequestTimeout string `json:"request_timeout,omitempty" validate:"duration"`
}

type StateConfig struct {
	Path string `json:"path,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level" validate:"omitempty,loglevel"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Defaults applied by Load when the corresponding field is empty.
const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "openai/gpt-4o-mini"
	DefaultLanguage  = "English"
	DefaultStatePath = "github_releases_state.json"
)
