package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/MimeLyc/twitch-chat-translator/internal/irc"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// writeTimeout bounds one transcript write.
const writeTimeout = 5 * time.Second

// Recorder writes the transcript asynchronously so the ingest loop never
// waits on disk. Writes are dropped when the writer queue is full.
type Recorder struct {
	store *SQLiteStore
	pool  *jobs.Pool
}

func NewRecorder(store *SQLiteStore, pool *jobs.Pool) *Recorder {
	return &Recorder{store: store, pool: pool}
}

func (r *Recorder) RecordMessage(m irc.ChatMessage) {
	r.submitEvent(ChatEvent{
		ID:          m.ID,
		Kind:        KindMessage,
		Channel:     m.Channel,
		Login:       m.Login,
		DisplayName: m.DisplayName,
		Body:        m.Body,
		SentAt:      m.SentAt,
	})
}

func (r *Recorder) RecordNotice(n irc.NoticeEvent) {
	r.submitEvent(ChatEvent{
		ID:          n.ID,
		Kind:        KindNotice,
		Channel:     n.Channel,
		Login:       n.Login,
		DisplayName: n.DisplayName,
		Body:        n.SystemText,
		MsgID:       n.MsgID,
		SentAt:      n.SentAt,
	})
}

func (r *Recorder) RecordCheer(c irc.CheerEvent) {
	r.submitEvent(ChatEvent{
		ID:          c.ID,
		Kind:        KindCheer,
		Channel:     c.Channel,
		Login:       c.Login,
		DisplayName: c.DisplayName,
		Body:        c.Body,
		Bits:        c.Bits,
		SentAt:      c.SentAt,
	})
}

func (r *Recorder) RecordTranslation(messageID, source string, out translator.Outcome) {
	rec := TranslationRecord{
		MessageID:  messageID,
		Language:   out.Language.Code(),
		Source:     source,
		Translated: out.Text,
		CreatedAt:  time.Now(),
	}
	r.submit("translation", func(ctx context.Context) error {
		return r.store.InsertTranslation(ctx, rec)
	})
}

func (r *Recorder) submitEvent(ev ChatEvent) {
	r.submit(string(ev.Kind), func(ctx context.Context) error {
		return r.store.InsertEvent(ctx, ev)
	})
}

func (r *Recorder) submit(what string, write func(ctx context.Context) error) {
	err := r.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return write(ctx)
	})
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrQueueFull):
		log.Warn("Transcript writer busy, dropping %s", what)
	default:
		log.Debug("Transcript %s not recorded: %v", what, err)
	}
}
