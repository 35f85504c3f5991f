package router

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/twitch-chat-translator/internal/badge"
	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/irc"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/render"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
)

type fakeTransport struct {
	mu     sync.Mutex
	lines  []string
	err    error
	writes []string
}

func (f *fakeTransport) ReadLine(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		if f.err != nil {
			return "", f.err
		}
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

func (f *fakeTransport) WriteLine(ctx context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, line)
	return nil
}

// blockWriter records every emitted block.
type blockWriter struct {
	mu     sync.Mutex
	blocks []string
}

func (w *blockWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks = append(w.blocks, string(p))
	return len(p), nil
}

func (w *blockWriter) Blocks() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.blocks...)
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls int
	reply func(text string) (string, error)
}

func (f *fakeCompleter) Complete(_ context.Context, _, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.reply(text)
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu           sync.Mutex
	messages     []irc.ChatMessage
	notices      []irc.NoticeEvent
	cheers       []irc.CheerEvent
	translations []string
}

func (r *recorder) RecordMessage(m irc.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recorder) RecordNotice(n irc.NoticeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) RecordCheer(c irc.CheerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cheers = append(r.cheers, c)
}

func (r *recorder) RecordTranslation(id, source string, out translator.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translations = append(r.translations, id+"="+out.Text)
}

var fixedNow = time.Date(2024, 5, 4, 12, 30, 0, 0, time.Local)

func newRouter(t *testing.T, opts ...Option) (*Router, *blockWriter) {
	t.Helper()
	w := &blockWriter{}
	f := render.NewFormatter(&bytes.Buffer{}, render.WithColorProfile(termenv.Ascii))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(f, render.NewSerializer(w), badge.NewResolver(nil), opts...), w
}

func newService(t *testing.T, fc *fakeCompleter) *translator.Service {
	t.Helper()
	pool := jobs.NewPool("router-test", 2, 64)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(time.Second) })

	lang, err := config.ParseLanguage("English")
	require.NoError(t, err)
	return translator.NewService(fc, pool, translator.NewCache(50), translator.Options{
		Enabled:          true,
		TargetLanguage:   lang,
		MaxMessageLength: 200,
		Timeout:          time.Second,
	})
}

const (
	msgLine    = "@badges=subscriber/3,moderator/1;display-name=Tester;id=m1 :tester!tester@tester.tmi.twitch.tv PRIVMSG #orslok :hola a todos"
	subLine    = `@display-name=Fan;msg-id=resub;system-msg=Fan\ssubscribed\sfor\s3\smonths! :tmi.twitch.tv USERNOTICE #orslok`
	raidLine   = `@display-name=Raider;msg-id=raid;system-msg=10\sraiders! :tmi.twitch.tv USERNOTICE #orslok`
	cheerLine  = "@bits=100;display-name=Rich :rich!rich@x PRIVMSG #orslok :Cheer100 gracias"
	unknownTxt = ":tmi.twitch.tv 001 justinfan12345 :Welcome, GLHF!"
)

func TestRun_EndOfStreamIsCleanExit(t *testing.T) {
	r, w := newRouter(t)
	err := r.Run(context.Background(), &fakeTransport{})
	assert.NoError(t, err)
	assert.Empty(t, w.Blocks())
}

func TestRun_ReadErrorIsReturned(t *testing.T) {
	r, _ := newRouter(t)
	boom := errors.New("connection reset")
	err := r.Run(context.Background(), &fakeTransport{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRun_CancelledContextIsCleanExit(t *testing.T) {
	r, _ := newRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, &fakeTransport{err: context.Canceled})
	assert.NoError(t, err)
}

func TestRun_KeepAliveRepliesWithPong(t *testing.T) {
	r, w := newRouter(t)
	tr := &fakeTransport{lines: []string{"PING :tmi.twitch.tv"}}

	require.NoError(t, r.Run(context.Background(), tr))

	assert.Equal(t, []string{PongReply}, tr.writes)
	assert.Empty(t, w.Blocks())
}

func TestRun_UnknownAndMalformedLinesEmitNothing(t *testing.T) {
	r, w := newRouter(t)
	tr := &fakeTransport{lines: []string{
		unknownTxt,
		":tmi.twitch.tv CAP * ACK :twitch.tv/tags",
		"PRIVMSG #orslok :no sender",
		"@msg-id=sub :tmi.twitch.tv USERNOTICE #orslok",
		raidLine,
		"",
	}}

	require.NoError(t, r.Run(context.Background(), tr))
	assert.Empty(t, w.Blocks())
	assert.Empty(t, tr.writes)
}

func TestRun_MessageWithoutTranslator(t *testing.T) {
	rec := &recorder{}
	r, w := newRouter(t, WithRecorder(rec))

	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: []string{msgLine}}))

	assert.Equal(t, []string{"[12:30:00] 🛡️ ⭐ Tester: hola a todos\n"}, w.Blocks())
	require.Len(t, rec.messages, 1)
	assert.Equal(t, "m1", rec.messages[0].ID)
}

func TestRun_NoticeAndCheerBlocks(t *testing.T) {
	rec := &recorder{}
	r, w := newRouter(t, WithRecorder(rec))

	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: []string{subLine, cheerLine}}))

	assert.Equal(t, []string{
		"\n[12:30:00] ★ Fan subscribed for 3 months!\n\n",
		"\n[12:30:00] ✦ Rich cheered 100 bits: gracias\n\n",
	}, w.Blocks())
	assert.Len(t, rec.notices, 1)
	assert.Len(t, rec.cheers, 1)
}

func TestRun_TranslationFollowsOriginal(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "hello everyone", nil }}
	rec := &recorder{}
	r, w := newRouter(t, WithTranslator(newService(t, fc)), WithRecorder(rec))

	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: []string{msgLine}}))

	require.Eventually(t, func() bool { return len(w.Blocks()) == 2 }, time.Second, 5*time.Millisecond)
	blocks := w.Blocks()
	assert.Equal(t, "[12:30:00] 🛡️ ⭐ Tester: hola a todos\n", blocks[0])
	assert.Equal(t, "    ↳ 🇬🇧 hello everyone\n", blocks[1])

	rec.mu.Lock()
	assert.Equal(t, []string{"m1=hello everyone"}, rec.translations)
	rec.mu.Unlock()
}

func TestRun_CachedTranslationIsEmittedInline(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "hello everyone", nil }}
	svc := newService(t, fc)
	svc.TranslateNow(context.Background(), translator.Request{Text: "hola a todos"})
	r, w := newRouter(t, WithTranslator(svc))

	require.NoError(t, r.Handle(context.Background(), &fakeTransport{}, msgLine))

	assert.Equal(t, []string{
		"[12:30:00] 🛡️ ⭐ Tester: hola a todos\n",
		"    ↳ 🇬🇧 hello everyone\n",
	}, w.Blocks())
	assert.Equal(t, 1, fc.Calls())
}

func TestRun_IdenticalTranslationIsNotShown(t *testing.T) {
	fc := &fakeCompleter{reply: func(text string) (string, error) { return text, nil }}
	r, w := newRouter(t, WithTranslator(newService(t, fc)))
	line := "@display-name=Fan;emotes=25:0-4 :fan!fan@x PRIVMSG #orslok :Kappa !uptime"

	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: []string{line}}))

	require.Eventually(t, func() bool { return fc.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(w.Blocks()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestRun_FailedTranslationShowsOnlyOriginal(t *testing.T) {
	fc := &fakeCompleter{reply: func(string) (string, error) { return "", errors.New("503") }}
	r, w := newRouter(t, WithTranslator(newService(t, fc)))

	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: []string{msgLine}}))

	require.Eventually(t, func() bool { return fc.Calls() == 1 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return len(w.Blocks()) > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestRun_ManyMessagesKeepBlocksWhole(t *testing.T) {
	fc := &fakeCompleter{reply: func(text string) (string, error) { return "EN " + text, nil }}
	r, w := newRouter(t, WithTranslator(newService(t, fc)))

	var lines []string
	for i := range 30 {
		lines = append(lines, "@display-name=U :u!u@x PRIVMSG #c :mensaje "+strings.Repeat("x", i+1))
	}
	require.NoError(t, r.Run(context.Background(), &fakeTransport{lines: lines}))

	require.Eventually(t, func() bool { return len(w.Blocks()) == 60 }, 2*time.Second, 5*time.Millisecond)

	seen := map[string]int{}
	for i, b := range w.Blocks() {
		require.True(t, strings.HasSuffix(b, "\n"))
		if strings.HasPrefix(b, "    ↳ ") {
			body := strings.TrimSuffix(strings.TrimPrefix(b, "    ↳ 🇬🇧 EN "), "\n")
			orig, ok := seen[body]
			require.True(t, ok, "translation %q before its original", body)
			assert.Less(t, orig, i)
			continue
		}
		body := strings.TrimSuffix(b[strings.Index(b, ": ")+2:], "\n")
		seen[body] = i
	}
}
