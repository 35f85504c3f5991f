package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// Reloader periodically re-reads the settings file so edits made outside the
// process (or by another instance) take effect without a restart.
type Reloader struct {
	store *RuntimeSettingsStore
	path  string
	expr  string

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID

	loadMu sync.Mutex
	last   RuntimeSettings
	seen   bool
}

func NewReloader(store *RuntimeSettingsStore, path, expr string) (*Reloader, error) {
	if store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if path == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid reload schedule: %w", err)
	}
	r := &Reloader{
		store: store,
		path:  path,
		expr:  expr,
	}
	// The file as it is now was already folded into the store at startup,
	// possibly under flag overrides; only later edits are applied.
	if initial, err := LoadRuntimeSettingsFile(path); err == nil && initial.Validate() == nil {
		r.last = initial
		r.seen = true
	}
	return r, nil
}

// Expression returns the reload schedule.
func (r *Reloader) Expression() string {
	return r.expr
}

// Reload applies the settings file if its contents changed since the last
// load and differ from the current settings. A missing file is not an error.
func (r *Reloader) Reload() error {
	next, err := LoadRuntimeSettingsFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if r.seen && r.last == next {
		return nil
	}

	current, _ := r.store.GetRuntimeSettings()
	if current == next {
		r.last, r.seen = next, true
		return nil
	}
	if err := r.store.Apply(next); err != nil {
		return fmt.Errorf("apply %s: %w", r.path, err)
	}
	r.last, r.seen = next, true
	log.Info("Settings reloaded from %s: language=%s enabled=%t max_length=%d",
		r.path, next.TargetLanguage, next.TranslationEnabled, next.MaxMessageLength)
	return nil
}

func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := cron.New()
	id, err := c.AddFunc(r.expr, func() {
		if err := r.Reload(); err != nil {
			log.Warn("Settings reload failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.entryID = id
	return nil
}

func (r *Reloader) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Next returns the next scheduled reload, zero when not started.
func (r *Reloader) Next() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return time.Time{}
	}
	return r.cron.Entry(r.entryID).Next
}
