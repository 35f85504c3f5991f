// Package translator translates chat bodies in the background and memoizes
// the results per target language.
package translator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/telemetry"
	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// Completer is the inference collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// Submitter schedules background work without blocking.
type Submitter interface {
	Submit(job jobs.Job) error
}

type Kind int

const (
	// Passthrough means the original text is final and no translation follows.
	Passthrough Kind = iota
	// Translated carries the translation in Outcome.Text.
	Translated
	// Pending means a translation was scheduled and will be delivered later.
	Pending
)

func (k Kind) String() string {
	switch k {
	case Translated:
		return "translated"
	case Pending:
		return "pending"
	default:
		return "passthrough"
	}
}

// Outcome is the result of a translation lookup.
type Outcome struct {
	Kind     Kind
	Text     string
	Language config.Language
}

// Request is a body to translate plus the emote codes it contains.
type Request struct {
	Text   string
	Emotes []string
}

// Options are the translation settings that can change at runtime.
type Options struct {
	Enabled          bool
	TargetLanguage   config.Language
	MaxMessageLength int
	Timeout          time.Duration
}

// Service owns the translation cache and schedules inference calls.
type Service struct {
	completer Completer
	pool      Submitter
	cache     *Cache
	flights   singleflight.Group

	mu      sync.RWMutex
	options Options

	// held for reading while a background result is delivered and for
	// writing while the target language changes
	deliverMu sync.RWMutex
}

func NewService(completer Completer, pool Submitter, cache *Cache, opts Options) *Service {
	if opts.TargetLanguage.Tag.IsRoot() {
		opts.TargetLanguage = config.DefaultLanguage
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 200
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Service{
		completer: completer,
		pool:      pool,
		cache:     cache,
		options:   opts,
	}
}

// Options returns the current settings.
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options
}

func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.options.Enabled = enabled
	s.mu.Unlock()
}

func (s *Service) SetMaxMessageLength(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.options.MaxMessageLength = n
	s.mu.Unlock()
}

// SetTargetLanguage switches the target and invalidates every cached
// translation before the next lookup is served. In-flight results computed
// for the previous language are discarded.
func (s *Service) SetTargetLanguage(lang config.Language) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options.TargetLanguage.Tag == lang.Tag {
		return
	}
	prev := s.options.TargetLanguage
	s.options.TargetLanguage = lang
	gen := s.cache.Clear()
	telemetry.SetCacheEntries(0)
	log.Info("Target language changed %s -> %s, translation cache cleared (generation %d)", prev, lang, gen)
}

// Apply updates the service from runtime settings. It is registered as a
// settings store listener.
func (s *Service) Apply(settings config.RuntimeSettings) {
	lang, err := settings.Language()
	if err != nil {
		log.Warn("Ignoring runtime settings: %v", err)
		return
	}
	s.SetEnabled(settings.TranslationEnabled)
	s.SetMaxMessageLength(settings.MaxMessageLength)
	s.SetTargetLanguage(lang)
}

// Lookup answers from the cache only. A miss that qualifies for
// translation is reported as Pending; nothing is scheduled.
func (s *Service) Lookup(text string) Outcome {
	opts, _ := s.snapshot()
	return s.lookup(opts, text)
}

func (s *Service) lookup(opts Options, text string) Outcome {
	passthrough := Outcome{Kind: Passthrough, Text: text, Language: opts.TargetLanguage}

	key := strings.TrimSpace(text)
	switch {
	case !opts.Enabled:
		return passthrough
	case key == "":
		return passthrough
	case utf8.RuneCountInString(text) > opts.MaxMessageLength:
		telemetry.CountOutcome("too_long")
		return passthrough
	}

	if translated, ok := s.cache.Get(key); ok {
		telemetry.CountOutcome("hit")
		return Outcome{Kind: Translated, Text: translated, Language: opts.TargetLanguage}
	}
	return Outcome{Kind: Pending, Text: text, Language: opts.TargetLanguage}
}

// Translate returns the immediate outcome for req without waiting for
// inference. On a cache miss the translation is scheduled on the worker pool
// and the returned outcome is Pending; deliver is then called exactly once
// from a worker, unless the target language changed in the meantime. A
// language change waits for a delivery in progress to return. A full queue
// degrades to Passthrough.
func (s *Service) Translate(_ context.Context, req Request, deliver func(Outcome)) Outcome {
	opts, gen := s.snapshot()
	out := s.lookup(opts, req.Text)
	if out.Kind != Pending {
		return out
	}

	err := s.pool.Submit(func(jobCtx context.Context) error {
		result := s.resolve(jobCtx, gen, opts, req)

		s.deliverMu.RLock()
		defer s.deliverMu.RUnlock()
		if s.cache.Generation() != gen {
			telemetry.CountOutcome("stale")
			log.Debug("Dropping translation for previous language: %q", req.Text)
			return nil
		}
		deliver(result)
		return nil
	})
	if err != nil {
		telemetry.CountQueueRejected()
		log.Debug("Translation not scheduled for %q: %v", req.Text, err)
		return Outcome{Kind: Passthrough, Text: req.Text, Language: opts.TargetLanguage}
	}
	return out
}

// TranslateNow resolves req synchronously, calling inference on a miss.
func (s *Service) TranslateNow(ctx context.Context, req Request) Outcome {
	opts, gen := s.snapshot()
	out := s.lookup(opts, req.Text)
	if out.Kind != Pending {
		return out
	}
	return s.resolve(ctx, gen, opts, req)
}

func (s *Service) snapshot() (Options, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.options, s.cache.Generation()
}

// resolve produces the final outcome for a miss. Concurrent misses for the
// same text in the same generation share one inference call.
func (s *Service) resolve(ctx context.Context, gen uint64, opts Options, req Request) Outcome {
	key := strings.TrimSpace(req.Text)
	// lookup already counted this miss
	if translated, ok := s.cache.Peek(key); ok {
		return Outcome{Kind: Translated, Text: translated, Language: opts.TargetLanguage}
	}

	v, _, _ := s.flights.Do(fmt.Sprintf("%d\x00%s", gen, key), func() (interface{}, error) {
		return s.fetch(ctx, gen, opts, req), nil
	})
	return v.(Outcome)
}

func (s *Service) fetch(ctx context.Context, gen uint64, opts Options, req Request) Outcome {
	key := strings.TrimSpace(req.Text)
	lang := opts.TargetLanguage
	passthrough := Outcome{Kind: Passthrough, Text: req.Text, Language: lang}

	translated, err := s.attempt(ctx, opts, key, false)
	if err != nil {
		telemetry.CountOutcome("error")
		log.Warn("Translation failed, showing original: %v", err)
		return passthrough
	}

	if suspiciousIdentical(key, translated, lang, req.Emotes) {
		telemetry.CountRetry()
		log.Debug("Unchanged translation for %q, retrying with strict instruction", key)
		translated, err = s.attempt(ctx, opts, key, true)
		if err != nil {
			telemetry.CountOutcome("error")
			log.Warn("Strict translation retry failed, showing original: %v", err)
			return passthrough
		}
	}

	if s.cache.Put(gen, key, translated) {
		telemetry.SetCacheEntries(s.cache.Len())
	}
	telemetry.CountOutcome("translated")
	return Outcome{Kind: Translated, Text: translated, Language: lang}
}

func (s *Service) attempt(ctx context.Context, opts Options, text string, strict bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.completer.Complete(ctx, buildSystemPrompt(opts.TargetLanguage, strict), text)
	telemetry.ObserveTranslation(time.Since(start))
	if err != nil {
		return "", err
	}
	reply = cleanReply(text, reply)
	if reply == "" {
		return "", fmt.Errorf("empty translation")
	}
	return reply, nil
}

// Stats describes the service for the control API.
type Stats struct {
	Enabled          bool       `json:"enabled"`
	TargetLanguage   string     `json:"target_language"`
	MaxMessageLength int        `json:"max_message_length"`
	Cache            CacheStats `json:"cache"`
}

func (s *Service) Stats() Stats {
	opts := s.Options()
	return Stats{
		Enabled:          opts.Enabled,
		TargetLanguage:   opts.TargetLanguage.Name(),
		MaxMessageLength: opts.MaxMessageLength,
		Cache:            s.cache.Stats(),
	}
}
