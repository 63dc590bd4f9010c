// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCredential is returned when a required secret is not set.
var ErrMissingCredential = errors.New("missing required credential")

// Media acquisition backends.
const (
	BackendLibrary = "library"
	BackendYtdlp   = "ytdlp"
	BackendDocker  = "docker"
)

// Completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	LogLevel      slog.Level
	TelegramToken string
	WebhookURL    string // empty = long polling
	WebhookSecret string
	MessagesFile  string

	LLM      LLMConfig
	Media    MediaConfig
	Session  SessionConfig
	Upload   UploadConfig
	Render   RenderConfig
	ConvLog  ConversationLogConfig
	ProxyURL *url.URL
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider     string
	Model        string
	OpenAIAPIKey string
	GeminiAPIKey string
	MaxTokens    int
	Timeout      time.Duration
}

// MediaConfig controls media acquisition.
type MediaConfig struct {
	Backend         string
	DownloadDir     string
	AcquireTimeout  time.Duration
	MaxVideoBytes   int64
	YtdlpPath       string
	YtdlpImage      string
	JanitorInterval time.Duration
	JanitorMaxAge   time.Duration
}

// SessionConfig is the eviction policy for per-user state.
type SessionConfig struct {
	TTL      time.Duration
	MaxUsers int
}

// UploadConfig holds transport timeouts for large uploads.
type UploadConfig struct {
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// RenderConfig configures the PDF renderer.
type RenderConfig struct {
	ChromePath string
	Timeout    time.Duration
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      parseLevel(getEnv("LOG_LEVEL", "info")),
		TelegramToken: strings.TrimSpace(getEnv("TELEGRAM_TOKEN", "")),
		WebhookURL:    strings.TrimSpace(getEnv("WEBHOOK_URL", "")),
		WebhookSecret: strings.TrimSpace(getEnv("WEBHOOK_SECRET", "")),
		MessagesFile:  getEnv("MESSAGES_FILE", ""),
		LLM: LLMConfig{
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Model:        getEnv("LLM_MODEL", ""),
			OpenAIAPIKey: strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			GeminiAPIKey: strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
			MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 5000),
			Timeout:      getEnvDuration("LLM_TIMEOUT", 90*time.Second),
		},
		Media: MediaConfig{
			Backend:         strings.ToLower(getEnv("MEDIA_BACKEND", BackendLibrary)),
			DownloadDir:     getEnv("DOWNLOAD_DIR", "./downloads"),
			AcquireTimeout:  getEnvDuration("ACQUIRE_TIMEOUT", 5*time.Minute),
			MaxVideoBytes:   int64(getEnvInt("MAX_VIDEO_MB", 50)) * 1024 * 1024,
			YtdlpPath:       getEnv("YTDLP_PATH", "yt-dlp"),
			YtdlpImage:      getEnv("YTDLP_IMAGE", "jauderho/yt-dlp:latest"),
			JanitorInterval: getEnvDuration("JANITOR_INTERVAL", 5*time.Minute),
			JanitorMaxAge:   getEnvDuration("JANITOR_MAX_AGE", 30*time.Minute),
		},
		Session: SessionConfig{
			TTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),
			MaxUsers: getEnvInt("SESSION_MAX_USERS", 10000),
		},
		Upload: UploadConfig{
			ConnectTimeout: getEnvDuration("CONNECT_TIMEOUT", 60*time.Second),
			Timeout:        getEnvDuration("UPLOAD_TIMEOUT", 120*time.Second),
		},
		Render: RenderConfig{
			ChromePath: getEnv("CHROME_PATH", ""),
			Timeout:    getEnvDuration("RENDER_TIMEOUT", 30*time.Second),
		},
		ConvLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModel(cfg.LLM.Provider)
	}

	if raw := strings.TrimSpace(getEnv("PROXY_URL", "")); raw != "" {
		u, err := parseProxyURL(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		cfg.ProxyURL = u
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN", ErrMissingCredential)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
		}
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider)
	}
	switch c.Media.Backend {
	case BackendLibrary, BackendYtdlp, BackendDocker:
	default:
		return fmt.Errorf("MEDIA_BACKEND %q is not supported", c.Media.Backend)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Media.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR cannot be empty")
	}
	if c.Media.MaxVideoBytes <= 0 {
		return fmt.Errorf("MAX_VIDEO_MB must be > 0")
	}
	if c.Media.AcquireTimeout <= 0 {
		return fmt.Errorf("ACQUIRE_TIMEOUT must be > 0")
	}
	if c.Media.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be > 0")
	}
	if inFlight := c.Media.AcquireTimeout + c.Upload.Timeout; c.Media.JanitorMaxAge <= inFlight {
		return fmt.Errorf("JANITOR_MAX_AGE must exceed ACQUIRE_TIMEOUT + UPLOAD_TIMEOUT (%s)", inFlight)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if c.WebhookURL != "" && c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
	}
	if c.ConvLog.Enabled && c.ConvLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// UsesWebhook reports whether updates arrive over HTTP instead of long polling.
func (c *Config) UsesWebhook() bool {
	return c.WebhookURL != ""
}

// CompletionAPIKey returns the key for the configured provider.
func (c *Config) CompletionAPIKey() string {
	if c.LLM.Provider == ProviderGemini {
		return c.LLM.GeminiAPIKey
	}
	return c.LLM.OpenAIAPIKey
}

func defaultModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.0-flash"
	}
	return "gpt-4o-mini"
}

func parseProxyURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("PROXY_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("PROXY_URL must include scheme and host")
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("PROXY_URL scheme %q is not supported", u.Scheme)
	}
	return u, nil
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
