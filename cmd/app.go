package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MimeLyc/twitch-chat-translator/internal/badge"
	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/httpapi"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/llm"
	"github.com/MimeLyc/twitch-chat-translator/internal/persistence"
	"github.com/MimeLyc/twitch-chat-translator/internal/render"
	"github.com/MimeLyc/twitch-chat-translator/internal/router"
	"github.com/MimeLyc/twitch-chat-translator/internal/telemetry"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
	"github.com/MimeLyc/twitch-chat-translator/internal/transport"
	"github.com/MimeLyc/twitch-chat-translator/pkg/log"
)

const (
	stopTimeout      = 5 * time.Second
	persistWorkers   = 1
	persistQueueSize = 256
)

// source selects where raw lines come from. The zero value connects to Twitch.
type source struct {
	replay string
	follow bool
	stdin  io.Reader
}

type lineSource interface {
	router.Transport
	Close() error
}

func openSource(src source) (lineSource, bool, error) {
	switch {
	case src.stdin != nil:
		return transport.NewReaderTransport(src.stdin), false, nil
	case src.replay != "":
		t, err := transport.NewFileTransport(src.replay, src.follow)
		return t, false, err
	default:
		return transport.NewTwitchTransport(), true, nil
	}
}

func setupLogging(cfg config.LogConfig) (func(), error) {
	level := log.ParseLevel(cfg.Level)
	if cfg.File == "" {
		log.InitLogger(level)
		return func() { _ = log.GetLogger().Sync() }, nil
	}
	fl, err := log.NewFileLogger(log.FileConfig{
		Path:       cfg.File,
		MaxSizeMB:  20,
		MaxBackups: 3,
		MaxAgeDays: 7,
	}, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fl.Logger)
	return func() { _ = fl.Close() }, nil
}

// openSettings seeds the runtime settings store from cfg, which already
// carries flag overrides. The reloader is nil without a settings file.
func openSettings(cfg *config.Config) (*config.RuntimeSettingsStore, *config.Reloader, error) {
	settings, err := config.NewRuntimeSettingsStore(cfg.Settings.File, cfg.RuntimeSettings())
	if err != nil {
		return nil, nil, fmt.Errorf("runtime settings: %w", err)
	}
	if cfg.Settings.File == "" {
		return settings, nil, nil
	}
	reloader, err := config.NewReloader(settings, cfg.Settings.File, cfg.Settings.ReloadCron)
	if err != nil {
		return nil, nil, err
	}
	return settings, reloader, nil
}

func run(ctx context.Context, cfg *config.Config, src source, out io.Writer) error {
	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("twitch-chat-translator", version)
	if err != nil {
		log.Warn("Tracing disabled: %v", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	settings, reloader, err := openSettings(cfg)
	if err != nil {
		return err
	}

	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.Translate.Timeout,
		AppName:     "twitch-chat-translator",
	})
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	translatePool := jobs.NewPool("translate", cfg.Translate.Workers, cfg.Translate.QueueSize,
		jobs.WithDepthObserver(telemetry.SetQueueDepth))

	cache := translator.NewCache(cfg.Translate.CacheSize)
	svc := translator.NewService(client, translatePool, cache, translator.Options{
		Enabled:          cfg.Translate.Enabled,
		TargetLanguage:   cfg.Translate.TargetLanguage,
		MaxMessageLength: cfg.Translate.MaxMessageLength,
		Timeout:          cfg.Translate.Timeout,
	})
	settings.Subscribe(func(_, next config.RuntimeSettings) {
		svc.Apply(next)
	})

	routerOpts := []router.Option{router.WithTranslator(svc)}
	apiOpts := []httpapi.Option{
		httpapi.WithRuntimeSettingsStore(settings),
		httpapi.WithTranslator(svc),
		httpapi.WithPool("translate", translatePool),
	}

	if cfg.Storage.DBPath != "" {
		store, err := persistence.NewSQLiteStore(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("open transcript store: %w", err)
		}
		defer store.Close()

		persistPool := jobs.NewPool("persist", persistWorkers, persistQueueSize)
		if err := persistPool.Start(ctx); err != nil {
			return err
		}
		// Stops before the store closes so pending writes drain.
		defer func() {
			if err := persistPool.Stop(stopTimeout); err != nil {
				log.Warn("%v", err)
			}
		}()

		warmCache(ctx, store, cache, cfg.Translate.TargetLanguage, cfg.Translate.CacheSize)
		routerOpts = append(routerOpts, router.WithRecorder(persistence.NewRecorder(store, persistPool)))
		apiOpts = append(apiOpts, httpapi.WithTranscript(store), httpapi.WithPool("persist", persistPool))
	}

	// Started after the transcript pool so it stops first and its last
	// translations can still be recorded.
	if err := translatePool.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := translatePool.Stop(stopTimeout); err != nil {
			log.Warn("%v", err)
		}
	}()

	if reloader != nil {
		if err := reloader.Start(); err != nil {
			return err
		}
		defer reloader.Stop()
		apiOpts = append(apiOpts, httpapi.WithReloadSchedule(reloader.Expression()))
	}

	if cfg.HTTP.Addr != "" {
		api := httpapi.NewServer(apiOpts...)
		go func() {
			log.Info("Control API listening on %s", cfg.HTTP.Addr)
			if err := api.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Control API stopped: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			_ = api.Shutdown(shutdownCtx)
		}()
	}

	lines, live, err := openSource(src)
	if err != nil {
		return fmt.Errorf("open chat source: %w", err)
	}
	defer lines.Close()

	formatter := render.NewFormatter(out)
	serializer := render.NewSerializer(out)
	badges := badge.NewResolver(badge.NewDirStore(cfg.Badges.IconDir))
	r := router.New(formatter, serializer, badges, routerOpts...)

	if live {
		if err := lines.WriteLine(ctx, "JOIN #"+cfg.Twitch.Channel); err != nil {
			return fmt.Errorf("join #%s: %w", cfg.Twitch.Channel, err)
		}
	}
	if err := serializer.EmitAtomic(formatter.Status(statusLine(cfg, live))); err != nil {
		return err
	}

	return r.Run(ctx, lines)
}

func statusLine(cfg *config.Config, live bool) string {
	var b strings.Builder
	if live {
		fmt.Fprintf(&b, "Joined #%s", cfg.Twitch.Channel)
	} else {
		b.WriteString("Replaying chat")
	}
	if cfg.Translate.Enabled {
		fmt.Fprintf(&b, ", translating to %s", cfg.Translate.TargetLanguage.Name())
	} else {
		b.WriteString(", translation off")
	}
	return b.String()
}

// warmCache seeds the cache with the newest stored translations.
func warmCache(ctx context.Context, store *persistence.SQLiteStore, cache *translator.Cache, lang config.Language, limit int) {
	records, err := store.RecentTranslations(ctx, lang.Code(), limit)
	if err != nil {
		log.Warn("Failed to load stored translations: %v", err)
		return
	}
	gen := cache.Generation()
	for _, rec := range records {
		cache.Put(gen, strings.TrimSpace(rec.Source), rec.Translated)
	}
	telemetry.SetCacheEntries(cache.Len())
	if len(records) > 0 {
		log.Info("Loaded %d stored %s translations", len(records), lang.Name())
	}
}
