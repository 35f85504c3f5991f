package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MimeLyc/twitch-chat-translator/internal/config"
	"github.com/MimeLyc/twitch-chat-translator/internal/jobs"
	"github.com/MimeLyc/twitch-chat-translator/internal/persistence"
	"github.com/MimeLyc/twitch-chat-translator/internal/translator"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

type translatorStats interface {
	Stats() translator.Stats
}

type poolStats interface {
	Stats() jobs.Stats
}

type transcriptStore interface {
	RecentEvents(ctx context.Context, language string, limit int) ([]persistence.ChatEvent, error)
}

type Server struct {
	settings   runtimeSettingsStore
	apply      runtimeSettingsApplier
	translator translatorStats
	pools      map[string]poolStats
	transcript transcriptStore
	reloadExpr string
	metrics    bool

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func WithTranslator(t translatorStats) Option {
	return func(s *Server) {
		s.translator = t
	}
}

// WithPool exposes a worker pool's counters under name in /api/stats.
func WithPool(name string, p poolStats) Option {
	return func(s *Server) {
		s.pools[name] = p
	}
}

func WithTranscript(store transcriptStore) Option {
	return func(s *Server) {
		s.transcript = store
	}
}

func WithReloadSchedule(expr string) Option {
	return func(s *Server) {
		s.reloadExpr = expr
	}
}

func WithMetrics(enabled bool) Option {
	return func(s *Server) {
		s.metrics = enabled
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		pools:   make(map[string]poolStats),
		metrics: true,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/transcript", s.handleTranscript)
	if s.metrics {
		s.mux.Handle("/metrics", promhttp.Handler())
	}
}
