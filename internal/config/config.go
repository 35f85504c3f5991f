package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// Config holds all application configuration
// Supports environment variables (optionally from a .env file) with sensible defaults
//
// Environment Variables:
// Twitch:
// - TWITCH_CHANNEL: Channel to join (default: orslok)
// - TWITCH_NICK: Anonymous login nick (default: justinfan12345)
//
// LLM Configuration:
// - LLM_API_URL: Base URL of the OpenAI compatible server (default: http://localhost:1234)
// - LLM_API_KEY: API key, optional for local servers
// - LLM_MODEL: Model name (default: default)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 500)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.3)
//
// Translation:
// - TRANSLATION_ENABLED: Enable translation overlay (default: true)
// - TARGET_LANGUAGE: Target language name or tag (default: English)
// - MAX_MESSAGE_LENGTH: Longer bodies are not translated (default: 200)
// - CACHE_SIZE: Maximum cached translations (default: 100)
// - TRANSLATION_TIMEOUT: Seconds per inference request (default: 5)
// - TRANSLATION_WORKERS: Concurrent inference requests (default: 4)
// - TRANSLATION_QUEUE_SIZE: Pending translations before new ones are dropped (default: 64)
//
// Misc:
// - ICON_DIR: Directory with badge icons named <badge>.png (default: ./icons)
// - LOG_LEVEL, LOG_FILE, DEBUG
// - HTTP_ADDR: Control API listen address, empty disables it
// - CHAT_DB_PATH: SQLite transcript path, empty disables it
// - SETTINGS_FILE, SETTINGS_RELOAD_CRON
type Config struct {
	Twitch    TwitchConfig    `json:"twitch"`
	LLM       LLMConfig       `json:"llm"`
	Translate TranslateConfig `json:"translate"`
	Badges    BadgeConfig     `json:"badges"`
	Log       LogConfig       `json:"log"`
	HTTP      HTTPConfig      `json:"http"`
	Storage   StorageConfig   `json:"storage"`
	Settings  SettingsConfig  `json:"settings"`
}

type TwitchConfig struct {
	Channel string `json:"channel"`
	Nick    string `json:"nick"`
}

// LLMConfig holds the configuration for the inference server
type LLMConfig struct {
	APIKey      string  `json:"-"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type TranslateConfig struct {
	Enabled          bool          `json:"enabled"`
	TargetLanguage   Language      `json:"-"`
	MaxMessageLength int           `json:"max_message_length"`
	CacheSize        int           `json:"cache_size"`
	Timeout          time.Duration `json:"timeout"`
	Workers          int           `json:"workers"`
	QueueSize        int           `json:"queue_size"`
}

type BadgeConfig struct {
	IconDir string `json:"icon_dir"`
}

type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
	Debug bool   `json:"debug"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type StorageConfig struct {
	DBPath string `json:"db_path"`
}

type SettingsConfig struct {
	File       string `json:"file"`
	ReloadCron string `json:"reload_cron"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithChannel overrides the joined channel.
func WithChannel(channel string) Option {
	return func(c *Config) {
		if channel = strings.TrimSpace(channel); channel != "" {
			c.Twitch.Channel = channel
		}
	}
}

// WithTargetLanguage overrides the target language when name is supported.
func WithTargetLanguage(name string) Option {
	return func(c *Config) {
		if lang, err := ParseLanguage(name); err == nil {
			c.Translate.TargetLanguage = lang
		}
	}
}

// WithTranslationEnabled toggles the translation overlay.
func WithTranslationEnabled(enabled bool) Option {
	return func(c *Config) {
		c.Translate.Enabled = enabled
	}
}

// LoadDotEnv loads variables from the given .env files, ignoring missing ones.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn("Failed to load %s: %v", f, err)
		}
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	target := DefaultLanguage
	if raw := getEnvString("TARGET_LANGUAGE", ""); raw != "" {
		lang, err := ParseLanguage(raw)
		if err != nil {
			return nil, fmt.Errorf("TARGET_LANGUAGE: %w", err)
		}
		target = lang
	}

	config := &Config{
		Twitch: TwitchConfig{
			Channel: getEnvString("TWITCH_CHANNEL", "orslok"),
			Nick:    getEnvString("TWITCH_NICK", "justinfan12345"),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "http://localhost:1234"),
			Model:       getEnvString("LLM_MODEL", "default"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 500),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
		},
		Translate: TranslateConfig{
			Enabled:          getEnvBool("TRANSLATION_ENABLED", true),
			TargetLanguage:   target,
			MaxMessageLength: getEnvInt("MAX_MESSAGE_LENGTH", 200),
			CacheSize:        getEnvInt("CACHE_SIZE", 100),
			Timeout:          time.Duration(getEnvInt("TRANSLATION_TIMEOUT", 5)) * time.Second,
			Workers:          getEnvInt("TRANSLATION_WORKERS", 4),
			QueueSize:        getEnvInt("TRANSLATION_QUEUE_SIZE", 64),
		},
		Badges: BadgeConfig{
			IconDir: getEnvString("ICON_DIR", "icons"),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
			Debug: getEnvBool("DEBUG", false),
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ""),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("CHAT_DB_PATH", ""),
		},
		Settings: SettingsConfig{
			File:       getEnvString("SETTINGS_FILE", ""),
			ReloadCron: getEnvString("SETTINGS_RELOAD_CRON", "@every 5s"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if config.Log.Debug {
		config.Log.Level = "debug"
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: channel=%s target=%s llm=%s model=%s cache=%d workers=%d",
		config.Twitch.Channel, config.Translate.TargetLanguage, config.LLM.APIURL, config.LLM.Model,
		config.Translate.CacheSize, config.Translate.Workers)
	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	c.Twitch.Channel = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Twitch.Channel), "#"))
	if c.Twitch.Channel == "" {
		return fmt.Errorf("TWITCH_CHANNEL is required")
	}
	if c.LLM.APIURL == "" {
		return fmt.Errorf("LLM_API_URL is required")
	}
	if c.Translate.MaxMessageLength < 1 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be greater than 0")
	}
	if c.Translate.CacheSize < 1 {
		return fmt.Errorf("CACHE_SIZE must be greater than 0")
	}
	if c.Translate.Timeout <= 0 {
		return fmt.Errorf("TRANSLATION_TIMEOUT must be greater than 0")
	}
	if c.Translate.Workers < 1 {
		c.Translate.Workers = 1
	}
	if c.Translate.QueueSize < 1 {
		c.Translate.QueueSize = 1
	}
	return nil
}

// RuntimeSettings returns the part of the config that can change while running.
func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		TargetLanguage:     c.Translate.TargetLanguage.Name(),
		TranslationEnabled: c.Translate.Enabled,
		MaxMessageLength:   c.Translate.MaxMessageLength,
	}
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
