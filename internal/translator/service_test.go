package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
)

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	systems []string
	reply   func(ctx context.Context, system, text string) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, system, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	return f.reply(ctx, system, text)
}

func (f *fakeCompleter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func replyWith(s string) func(context.Context, string, string) (string, error) {
	return func(context.Context, string, string) (string, error) { return s, nil }
}

type rejectingPool struct{}

func (rejectingPool) Submit(jobs.Job) error { return jobs.ErrQueueFull }

func mustLang(t *testing.T, name string) config.Language {
	t.Helper()
	lang, err := config.ParseLanguage(name)
	require.NoError(t, err)
	return lang
}

func newTestService(t *testing.T, completer Completer, pool Submitter) *Service {
	t.Helper()
	return NewService(completer, pool, NewCache(100), Options{
		Enabled:          true,
		TargetLanguage:   mustLang(t, "English"),
		MaxMessageLength: 200,
		Timeout:          time.Second,
	})
}

func startedPool(t *testing.T) *jobs.Pool {
	t.Helper()
	p := jobs.NewPool("translate-test", 2, 16)
	require.NoError(t, p.Start(context.Background()))
	t.Cleanup(func() { _ = p.Stop(time.Second) })
	return p
}

func TestTranslateNow_SecondCallIsCacheHit(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello everyone")}
	s := newTestService(t, fc, rejectingPool{})

	first := s.TranslateNow(context.Background(), Request{Text: "hola a todos"})
	second := s.TranslateNow(context.Background(), Request{Text: "hola a todos"})

	assert.Equal(t, Translated, first.Kind)
	assert.Equal(t, "hello everyone", first.Text)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, fc.Calls())

	cached := s.Lookup("hola a todos")
	assert.Equal(t, Translated, cached.Kind)
	assert.Equal(t, 1, fc.Calls())
}

func TestTranslateNow_MissCountedOnce(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello everyone")}
	s := newTestService(t, fc, rejectingPool{})

	s.TranslateNow(context.Background(), Request{Text: "hola a todos"})
	stats := s.Stats().Cache
	assert.Equal(t, int64(1), stats.Misses)
	assert.Zero(t, stats.Hits)

	s.TranslateNow(context.Background(), Request{Text: "hola a todos"})
	stats = s.Stats().Cache
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.InDelta(t, 0.5, stats.HitRatio, 1e-9)
}

func TestTranslateNow_ConcurrentMissesShareOneCall(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeCompleter{reply: func(ctx context.Context, _, _ string) (string, error) {
		<-release
		return "good morning", nil
	}}
	s := newTestService(t, fc, rejectingPool{})

	var wg sync.WaitGroup
	results := make([]Outcome, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.TranslateNow(context.Background(), Request{Text: "buenos días"})
		}(i)
	}

	require.Eventually(t, func() bool { return fc.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, fc.Calls())
	for _, r := range results {
		assert.Equal(t, "good morning", r.Text)
	}
}

func TestTranslate_PassthroughWithoutInference(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("unused")}
	s := newTestService(t, fc, rejectingPool{})

	long := strings.Repeat("á", 600)
	out := s.TranslateNow(context.Background(), Request{Text: long})
	assert.Equal(t, Passthrough, out.Kind)
	assert.Equal(t, long, out.Text)

	out = s.TranslateNow(context.Background(), Request{Text: "   "})
	assert.Equal(t, Passthrough, out.Kind)

	s.SetEnabled(false)
	out = s.TranslateNow(context.Background(), Request{Text: "hola"})
	assert.Equal(t, Passthrough, out.Kind)

	assert.Zero(t, fc.Calls())
}

func TestLookup_MaxLengthCountsRunes(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("ok")}
	s := newTestService(t, fc, rejectingPool{})
	s.SetMaxMessageLength(5)

	assert.Equal(t, Pending, s.Lookup("ñññññ").Kind)
	assert.Equal(t, Passthrough, s.Lookup("ññññññ").Kind)
}

func TestTranslateNow_TimeoutFallsBackToOriginal(t *testing.T) {
	fc := &fakeCompleter{reply: func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	s := NewService(fc, rejectingPool{}, NewCache(10), Options{
		Enabled:          true,
		TargetLanguage:   mustLang(t, "English"),
		MaxMessageLength: 200,
		Timeout:          20 * time.Millisecond,
	})

	start := time.Now()
	out := s.TranslateNow(context.Background(), Request{Text: "que tal"})

	assert.Equal(t, Passthrough, out.Kind)
	assert.Equal(t, "que tal", out.Text)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, s.cache.Len())
}

func TestTranslateNow_ErrorIsNotCached(t *testing.T) {
	fail := true
	fc := &fakeCompleter{reply: func(context.Context, string, string) (string, error) {
		if fail {
			return "", errors.New("connection refused")
		}
		return "thanks", nil
	}}
	s := newTestService(t, fc, rejectingPool{})

	out := s.TranslateNow(context.Background(), Request{Text: "gracias"})
	assert.Equal(t, Passthrough, out.Kind)

	fail = false
	out = s.TranslateNow(context.Background(), Request{Text: "gracias"})
	assert.Equal(t, Translated, out.Kind)
	assert.Equal(t, 2, fc.Calls())
}

func TestTranslateNow_SuspiciousIdenticalRetriesOnce(t *testing.T) {
	text := "hola amigos, ¿cómo están todos hoy en el directo de esta noche?"
	fc := &fakeCompleter{}
	fc.reply = func(_ context.Context, system, in string) (string, error) {
		if strings.Contains(system, "previous answer") {
			return "hello friends, how is everyone doing in tonight's stream?", nil
		}
		return in, nil
	}
	s := newTestService(t, fc, rejectingPool{})

	out := s.TranslateNow(context.Background(), Request{Text: text})

	assert.Equal(t, 2, fc.Calls())
	assert.Equal(t, "hello friends, how is everyone doing in tonight's stream?", out.Text)
}

func TestTranslateNow_RetryResultIsFinal(t *testing.T) {
	text := "hola amigos, ¿cómo están todos hoy en el directo de esta noche?"
	fc := &fakeCompleter{reply: func(_ context.Context, _, in string) (string, error) { return in, nil }}
	s := newTestService(t, fc, rejectingPool{})

	out := s.TranslateNow(context.Background(), Request{Text: text})

	assert.Equal(t, 2, fc.Calls())
	assert.Equal(t, Translated, out.Kind)
	assert.Equal(t, text, out.Text)
}

func TestTranslateNow_IdenticalWithoutRetry(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		emotes []string
	}{
		{"emotes commands and mentions", "Kappa !uptime @streamer PogChamp", []string{"Kappa", "PogChamp"}},
		{"numbers and punctuation", "1000 ??? :)", nil},
		{"already target language", "this is a really good stream and I love the music you are playing tonight", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeCompleter{reply: func(_ context.Context, _, in string) (string, error) { return in, nil }}
			s := newTestService(t, fc, rejectingPool{})

			out := s.TranslateNow(context.Background(), Request{Text: tt.text, Emotes: tt.emotes})

			assert.Equal(t, 1, fc.Calls())
			assert.Equal(t, tt.text, out.Text)
		})
	}
}

func TestTranslateNow_CaseOnlyChangeIsNotIdentical(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("Hola amigos como estan")}
	s := newTestService(t, fc, rejectingPool{})

	out := s.TranslateNow(context.Background(), Request{Text: "hola amigos como estan"})

	assert.Equal(t, 1, fc.Calls())
	assert.Equal(t, Translated, out.Kind)
	assert.Equal(t, "Hola amigos como estan", out.Text)
}

func TestSetTargetLanguage_InvalidatesCache(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello")}
	s := newTestService(t, fc, rejectingPool{})

	s.TranslateNow(context.Background(), Request{Text: "hola"})
	require.Equal(t, Translated, s.Lookup("hola").Kind)

	s.SetTargetLanguage(mustLang(t, "French"))

	out := s.Lookup("hola")
	assert.Equal(t, Pending, out.Kind)
	assert.Equal(t, "French", out.Language.Name())
	assert.Equal(t, 0, s.cache.Len())

	fc.reply = replyWith("bonjour")
	out = s.TranslateNow(context.Background(), Request{Text: "hola"})
	assert.Equal(t, "bonjour", out.Text)
	assert.True(t, strings.Contains(fc.systems[len(fc.systems)-1], "French"))
}

func TestSetTargetLanguage_SameLanguageKeepsCache(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello")}
	s := newTestService(t, fc, rejectingPool{})
	s.TranslateNow(context.Background(), Request{Text: "hola"})

	s.SetTargetLanguage(mustLang(t, "en"))
	assert.Equal(t, 1, s.cache.Len())
}

func TestTranslate_DeliversInBackground(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("see you tomorrow")}
	s := newTestService(t, fc, startedPool(t))

	delivered := make(chan Outcome, 1)
	out := s.Translate(context.Background(), Request{Text: "nos vemos mañana"}, func(o Outcome) { delivered <- o })
	require.Equal(t, Pending, out.Kind)

	select {
	case got := <-delivered:
		assert.Equal(t, Translated, got.Kind)
		assert.Equal(t, "see you tomorrow", got.Text)
	case <-time.After(time.Second):
		t.Fatal("translation was not delivered")
	}

	again := s.Translate(context.Background(), Request{Text: "nos vemos mañana"}, func(Outcome) { t.Error("unexpected delivery") })
	assert.Equal(t, Translated, again.Kind)
	assert.Equal(t, 1, fc.Calls())
}

func TestTranslate_QueueFullDegradesToPassthrough(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("x")}
	s := newTestService(t, fc, rejectingPool{})

	out := s.Translate(context.Background(), Request{Text: "hola"}, func(Outcome) { t.Error("unexpected delivery") })

	assert.Equal(t, Passthrough, out.Kind)
	assert.Equal(t, "hola", out.Text)
	assert.Zero(t, fc.Calls())
}

func TestTranslate_StaleGenerationIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	fc := &fakeCompleter{reply: func(context.Context, string, string) (string, error) {
		<-release
		return "hello", nil
	}}
	s := newTestService(t, fc, startedPool(t))

	var mu sync.Mutex
	var delivered []Outcome
	out := s.Translate(context.Background(), Request{Text: "hola"}, func(o Outcome) {
		mu.Lock()
		delivered = append(delivered, o)
		mu.Unlock()
	})
	require.Equal(t, Pending, out.Kind)
	require.Eventually(t, func() bool { return fc.Calls() == 1 }, time.Second, time.Millisecond)

	s.SetTargetLanguage(mustLang(t, "German"))
	close(release)

	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 0, s.cache.Len())
}

func TestTranslate_LanguageChangeWaitsForDelivery(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello")}
	s := newTestService(t, fc, startedPool(t))

	entered := make(chan struct{})
	release := make(chan struct{})
	out := s.Translate(context.Background(), Request{Text: "hola"}, func(Outcome) {
		close(entered)
		<-release
	})
	require.Equal(t, Pending, out.Kind)

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("translation was not delivered")
	}

	german := mustLang(t, "German")
	switched := make(chan struct{})
	go func() {
		s.SetTargetLanguage(german)
		close(switched)
	}()

	select {
	case <-switched:
		t.Fatal("language changed while a translation was being delivered")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-switched:
	case <-time.After(time.Second):
		t.Fatal("language change did not complete")
	}
	assert.Equal(t, "German", s.Options().TargetLanguage.Name())
	assert.Equal(t, 0, s.cache.Len())
}

func TestApply_FromSettingsStore(t *testing.T) {
	fc := &fakeCompleter{reply: replyWith("hello")}
	s := newTestService(t, fc, rejectingPool{})
	s.TranslateNow(context.Background(), Request{Text: "hola"})

	store, err := config.NewRuntimeSettingsStore("", config.RuntimeSettings{
		TargetLanguage:     "English",
		TranslationEnabled: true,
		MaxMessageLength:   200,
	})
	require.NoError(t, err)
	store.Subscribe(func(_, next config.RuntimeSettings) { s.Apply(next) })

	_, err = store.UpdateRuntimeSettings(config.RuntimeSettings{
		TargetLanguage:     "Japanese",
		TranslationEnabled: false,
		MaxMessageLength:   50,
	})
	require.NoError(t, err)

	opts := s.Options()
	assert.False(t, opts.Enabled)
	assert.Equal(t, 50, opts.MaxMessageLength)
	assert.Equal(t, "ja", opts.TargetLanguage.Code())
	assert.Equal(t, 0, s.cache.Len())
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "hello", cleanReply("hola", `  "hello" `))
	assert.Equal(t, "hello", cleanReply("hola", "«hello»"))
	assert.Equal(t, `"quoted"`, cleanReply(`"citado"`, `"quoted"`))
}

func TestBuildSystemPrompt(t *testing.T) {
	lang := mustLang(t, "Spanish")
	p := buildSystemPrompt(lang, false)
	assert.Contains(t, p, "into Spanish")
	assert.Contains(t, p, "return it unchanged")
	assert.NotContains(t, p, "previous answer")

	assert.Contains(t, buildSystemPrompt(lang, true), "previous answer")
}
