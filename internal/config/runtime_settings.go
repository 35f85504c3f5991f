package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeSettings are the settings that can be changed while the chat is running.
type RuntimeSettings struct {
	TargetLanguage     string `json:"target_language" yaml:"target_language"`
	TranslationEnabled bool   `json:"translation_enabled" yaml:"translation_enabled"`
	MaxMessageLength   int    `json:"max_message_length" yaml:"max_message_length"`
}

func (s RuntimeSettings) Validate() error {
	if strings.TrimSpace(s.TargetLanguage) == "" {
		return fmt.Errorf("target_language is required")
	}
	if _, err := ParseLanguage(s.TargetLanguage); err != nil {
		return fmt.Errorf("invalid target_language: %w", err)
	}
	if s.MaxMessageLength < 1 {
		return fmt.Errorf("max_message_length must be greater than 0")
	}
	return nil
}

// Language resolves TargetLanguage.
func (s RuntimeSettings) Language() (Language, error) {
	return ParseLanguage(s.TargetLanguage)
}

func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if lang, err := ParseLanguage(settings.TargetLanguage); err == nil {
			c.Translate.TargetLanguage = lang
		}
		if settings.MaxMessageLength > 0 {
			c.Translate.MaxMessageLength = settings.MaxMessageLength
		}
		c.Translate.Enabled = settings.TranslationEnabled
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadRuntimeSettingsFile reads a JSON settings file, or YAML when the
// extension is .yaml/.yml.
func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if isYAML(path) {
		err = yaml.Unmarshal(data, &settings)
	} else {
		err = json.Unmarshal(data, &settings)
	}
	if err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var (
		content []byte
		err     error
	)
	if isYAML(path) {
		content, err = yaml.Marshal(settings)
	} else {
		content, err = json.MarshalIndent(settings, "", "  ")
		content = append(content, '\n')
	}
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// SettingsListener is notified after the current settings changed.
type SettingsListener func(prev, next RuntimeSettings)

// RuntimeSettingsStore owns the current runtime settings. An empty path keeps
// them in memory only.
type RuntimeSettingsStore struct {
	path string

	mu        sync.RWMutex
	current   RuntimeSettings
	listeners []SettingsListener
}

func NewRuntimeSettingsStore(path string, initial RuntimeSettings) (*RuntimeSettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeSettingsStore{
		path:    strings.TrimSpace(path),
		current: initial,
	}, nil
}

func (s *RuntimeSettingsStore) Path() string {
	return s.path
}

// Subscribe registers fn for future changes.
func (s *RuntimeSettingsStore) Subscribe(fn SettingsListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *RuntimeSettingsStore) GetRuntimeSettings() (RuntimeSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, nil
}

// UpdateRuntimeSettings validates, persists and applies next.
func (s *RuntimeSettingsStore) UpdateRuntimeSettings(next RuntimeSettings) (RuntimeSettings, error) {
	if err := next.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	if s.path != "" {
		if err := WriteRuntimeSettingsFile(s.path, next); err != nil {
			return RuntimeSettings{}, err
		}
	}
	s.set(next)
	return next, nil
}

// Apply validates and applies next without writing the settings file.
func (s *RuntimeSettingsStore) Apply(next RuntimeSettings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.set(next)
	return nil
}

func (s *RuntimeSettingsStore) set(next RuntimeSettings) {
	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := append([]SettingsListener(nil), s.listeners...)
	s.mu.Unlock()

	if prev == next {
		return
	}
	for _, fn := range listeners {
		fn(prev, next)
	}
}
