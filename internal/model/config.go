package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// APIConfig holds the backend REST settings.
type APIConfig struct {
	// BaseURL is the root URL of the backend (e.g., https://api.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// RealtimeConfig holds the socket channel settings.
type RealtimeConfig struct {
	// URL overrides the socket endpoint. Empty derives it from the API base URL.
	URL string `mapstructure:"url" yaml:"url"`

	// ReconnectSec is the minimum spacing between connection attempts.
	ReconnectSec int `mapstructure:"reconnect_sec" yaml:"reconnect_sec"`
}

// CacheConfig holds Remote Resource Cache tuning.
type CacheConfig struct {
	StaleSec        int `mapstructure:"stale_sec" yaml:"stale_sec"`
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// EmailConfig holds the contact/newsletter integration credentials.
type EmailConfig struct {
	// Provider selects the delivery integration: "emailjs" or "resend".
	Provider             string `mapstructure:"provider" yaml:"provider"`
	ServiceID            string `mapstructure:"service_id" yaml:"service_id"`
	ContactTemplateID    string `mapstructure:"contact_template_id" yaml:"contact_template_id"`
	NewsletterTemplateID string `mapstructure:"newsletter_template_id" yaml:"newsletter_template_id"`
	PublicKey            string `mapstructure:"public_key" yaml:"public_key"`
	ResendAPIKey         string `mapstructure:"resend_api_key" yaml:"resend_api_key"`
	From                 string `mapstructure:"from" yaml:"from"`
	To                   string `mapstructure:"to" yaml:"to"`
}

// ChatbotConfig holds settings for the chatbot widget.
type ChatbotConfig struct {
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	MaxHistory int    `mapstructure:"max_history" yaml:"max_history"`
}

// MediaConfig holds asset delivery settings.
type MediaConfig struct {
	CloudName string `mapstructure:"cloud_name" yaml:"cloud_name"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	// PrefsPath is the preferences file that persists the theme.
	PrefsPath string `mapstructure:"prefs_path" yaml:"prefs_path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables it.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	Chatbot  ChatbotConfig  `mapstructure:"chatbot" yaml:"chatbot"`
	Media    MediaConfig    `mapstructure:"media" yaml:"media"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	DBPath   string         `mapstructure:"db_path" yaml:"db_path"`
}

// legacyEnv maps the variable names used by the web frontend's build
// environment onto config keys, so one .env file serves both clients.
var legacyEnv = map[string]string{
	"api.base_url":                 "VITE_API_URL",
	"email.service_id":             "VITE_EMAILJS_SERVICE_ID",
	"email.contact_template_id":    "VITE_EMAILJS_TEMPLATE_ID",
	"email.newsletter_template_id": "VITE_EMAILJS_NEWSLETTER_TEMPLATE_ID",
	"email.public_key":             "VITE_EMAILJS_PUBLIC_KEY",
}

// ConfigDir returns ~/.config/agora, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "agora")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/agora/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "http://localhost:5000",
			TimeoutSec: 30,
		},
		Realtime: RealtimeConfig{ReconnectSec: 2},
		Cache: CacheConfig{
			StaleSec:        30,
			PollIntervalSec: 60,
		},
		Email:   EmailConfig{Provider: "emailjs"},
		Chatbot: ChatbotConfig{MaxHistory: 20},
		Display: DisplayConfig{PrefsPath: filepath.Join(dir, "prefs.yaml")},
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(dir, "agora.log"),
		},
		DBPath: filepath.Join(dir, "agora.db"),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// after loading any .env files into the process environment. Environment
// variables prefixed with AGORA_ override file values. If the file does not
// exist, defaults plus environment are used.
func LoadConfig(path string, envFiles ...string) (*AppConfig, error) {
	loadDotEnv(envFiles...)

	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("agora")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values and so
	// AutomaticEnv can see every key during Unmarshal.
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout_sec", def.API.TimeoutSec)
	v.SetDefault("realtime.url", "")
	v.SetDefault("realtime.reconnect_sec", def.Realtime.ReconnectSec)
	v.SetDefault("cache.stale_sec", def.Cache.StaleSec)
	v.SetDefault("cache.poll_interval_sec", def.Cache.PollIntervalSec)
	v.SetDefault("email.provider", def.Email.Provider)
	v.SetDefault("email.service_id", "")
	v.SetDefault("email.contact_template_id", "")
	v.SetDefault("email.newsletter_template_id", "")
	v.SetDefault("email.public_key", "")
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
	v.SetDefault("chatbot.endpoint", "")
	v.SetDefault("chatbot.max_history", def.Chatbot.MaxHistory)
	v.SetDefault("media.cloud_name", "")
	v.SetDefault("display.prefs_path", def.Display.PrefsPath)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.path", def.Log.Path)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("db_path", def.DBPath)

	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "AGORA_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = def.API.TimeoutSec
	}
	if cfg.Realtime.ReconnectSec <= 0 {
		cfg.Realtime.ReconnectSec = def.Realtime.ReconnectSec
	}
	if cfg.Chatbot.MaxHistory <= 0 {
		cfg.Chatbot.MaxHistory = def.Chatbot.MaxHistory
	}

	return cfg, nil
}

// loadDotEnv loads .env files without overriding variables already set.
// Missing files are not an error.
func loadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("realtime", cfg.Realtime)
	v.Set("cache", cfg.Cache)
	v.Set("email", cfg.Email)
	v.Set("chatbot", cfg.Chatbot)
	v.Set("media", cfg.Media)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// SocketURL returns the realtime endpoint: the explicit override when set,
// otherwise the API host with a ws/wss scheme and the /socket.io/ path.
func (c *AppConfig) SocketURL() (string, error) {
	raw := c.Realtime.URL
	if raw == "" {
		raw = c.API.BaseURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing socket url %q: %w", raw, err)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	if c.Realtime.URL == "" || u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()

	return u.String(), nil
}
