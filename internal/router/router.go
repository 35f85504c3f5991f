// Package router owns the ingest loop: it classifies each line, renders the
// event and hands message bodies to the translator.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/twitch-chat-translator/internal/badge"
	"github.com/MimeLyc/twitch-chat-translator/internal/irc"
	"github.com/MimeLyc/twitch-chat-translator/internal/render"
	"github.com/MimeLyc/twitch-chat-translator/internal/telemetry"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

// PongReply answers a keep-alive.
const PongReply = "PONG :tmi.twitch.tv"

// LineWriter sends a raw line back through the transport.
type LineWriter interface {
	WriteLine(ctx context.Context, line string) error
}

// Transport delivers raw lines. ReadLine returns io.EOF at end of stream.
type Transport interface {
	LineWriter
	ReadLine(ctx context.Context) (string, error)
}

// Translator schedules background translations.
type Translator interface {
	Translate(ctx context.Context, req translator.Request, deliver func(translator.Outcome)) translator.Outcome
}

// Recorder keeps a transcript of what was shown.
type Recorder interface {
	RecordMessage(m irc.ChatMessage)
	RecordNotice(n irc.NoticeEvent)
	RecordCheer(c irc.CheerEvent)
	RecordTranslation(messageID, source string, out translator.Outcome)
}

type Router struct {
	formatter  *render.Formatter
	out        *render.Serializer
	badges     *badge.Resolver
	translator Translator
	recorder   Recorder
	now        func() time.Time

	seq atomic.Uint64
}

type Option func(*Router)

func WithTranslator(t Translator) Option {
	return func(r *Router) { r.translator = t }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func New(formatter *render.Formatter, out *render.Serializer, badges *badge.Resolver, opts ...Option) *Router {
	r := &Router{
		formatter: formatter,
		out:       out,
		badges:    badges,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until the stream ends or ctx is cancelled. End of stream
// and cancellation return nil.
func (r *Router) Run(ctx context.Context, t Transport) error {
	for {
		raw, err := t.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("Chat stream ended after %d lines", r.seq.Load())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read line: %w", err)
		}

		if err := r.Handle(ctx, t, raw); err != nil {
			return err
		}
	}
}

// Handle processes one raw line. Only output and keep-alive write failures
// are returned; everything else is dropped locally.
func (r *Router) Handle(ctx context.Context, w LineWriter, raw string) error {
	ev := irc.RawEvent{Seq: r.seq.Add(1), Line: raw, ReceivedAt: r.now()}
	line := irc.ParseLine(ev.Line)
	category := irc.ClassifyLine(line)
	telemetry.CountLine(category.String())

	switch category {
	case irc.CategoryKeepAlive:
		if err := w.WriteLine(ctx, PongReply); err != nil {
			return fmt.Errorf("keep-alive reply: %w", err)
		}
		return nil
	case irc.CategoryNotice:
		return r.handleNotice(line, ev)
	case irc.CategoryCheer:
		return r.handleCheer(line, ev)
	case irc.CategoryMessage:
		return r.handleMessage(ctx, line, ev)
	default:
		telemetry.CountDrop("unknown")
		return nil
	}
}

func (r *Router) handleMessage(ctx context.Context, line irc.Line, ev irc.RawEvent) error {
	msg, err := irc.DecodeChatMessage(line, ev.ReceivedAt)
	if err != nil {
		r.dropMalformed(ev, err)
		return nil
	}

	if err := r.out.EmitAtomic(r.formatter.Message(msg, r.badges.Resolve(msg.Badges))); err != nil {
		return err
	}
	if r.recorder != nil {
		r.recorder.RecordMessage(msg)
	}

	if r.translator == nil {
		return nil
	}
	// The original block is already out, so a translation can only follow it.
	req := translator.Request{Text: msg.Body, Emotes: msg.Emotes}
	out := r.translator.Translate(ctx, req, func(o translator.Outcome) {
		r.emitTranslation(msg, o)
	})
	if out.Kind == translator.Translated {
		r.emitTranslation(msg, out)
	}
	return nil
}

func (r *Router) emitTranslation(msg irc.ChatMessage, o translator.Outcome) {
	if o.Kind != translator.Translated {
		return
	}
	if strings.TrimSpace(o.Text) == strings.TrimSpace(msg.Body) {
		return
	}
	if err := r.out.EmitAtomic(r.formatter.Translation(o.Text, o.Language)); err != nil {
		log.Error("Failed to write translation: %v", err)
		return
	}
	if r.recorder != nil {
		r.recorder.RecordTranslation(msg.ID, msg.Body, o)
	}
}

func (r *Router) handleNotice(line irc.Line, ev irc.RawEvent) error {
	notice, err := irc.DecodeNotice(line, ev.ReceivedAt)
	if err != nil {
		r.dropMalformed(ev, err)
		return nil
	}
	if !notice.IsSubscription() {
		telemetry.CountDrop("notice_filtered")
		return nil
	}

	if err := r.out.EmitAtomic(r.formatter.Notice(notice)); err != nil {
		return err
	}
	if r.recorder != nil {
		r.recorder.RecordNotice(notice)
	}
	return nil
}

func (r *Router) handleCheer(line irc.Line, ev irc.RawEvent) error {
	cheer, err := irc.DecodeCheer(line, ev.ReceivedAt)
	if err != nil {
		r.dropMalformed(ev, err)
		return nil
	}

	badges := r.badges.Resolve(irc.ParseBadges(line.Tags.Value("badges")))
	if err := r.out.EmitAtomic(r.formatter.Cheer(cheer, badges)); err != nil {
		return err
	}
	if r.recorder != nil {
		r.recorder.RecordCheer(cheer)
	}
	return nil
}

func (r *Router) dropMalformed(ev irc.RawEvent, err error) {
	telemetry.CountDrop("malformed")
	log.Debug("Dropping line %d: %v", ev.Seq, err)
}
