// Package telemetry provides Prometheus metrics and OpenTelemetry tracing helpers.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// LinesTotal counts ingested lines by category.
	LinesTotal *prometheus.CounterVec
	// EventsDropped counts lines dropped after classification, by reason.
	EventsDropped *prometheus.CounterVec
	// TranslationOutcomes counts translation results (hit, translated, passthrough, error, stale).
	TranslationOutcomes *prometheus.CounterVec
	TranslationRetries  prometheus.Counter
	TranslationDuration prometheus.Observer
	QueueRejected       prometheus.Counter

	CacheEntries  prometheus.Gauge
	QueueDepth    prometheus.Gauge
	BlocksEmitted prometheus.Counter
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		LinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_lines_total", Help: "Ingested chat lines by category"}, []string{"category"})
		EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_events_dropped_total", Help: "Chat events dropped by reason"}, []string{"reason"})
		TranslationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "chat_translation_outcomes_total", Help: "Translation outcomes by kind"}, []string{"outcome"})
		TranslationRetries = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_translation_retries_total", Help: "Strict retries after a suspicious identical translation"})
		TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "chat_translation_duration_seconds", Help: "Inference round trip seconds", Buckets: prometheus.DefBuckets})
		QueueRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_translation_queue_rejected_total", Help: "Translations dropped because the worker queue was full"})
		CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_translation_cache_entries", Help: "Entries in the translation cache"})
		QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "chat_translation_queue_depth", Help: "Translations waiting for a worker"})
		BlocksEmitted = promauto.NewCounter(prometheus.CounterOpts{Name: "chat_blocks_emitted_total", Help: "Rendered blocks written to the output"})
	})
}

// CountLine records one ingested line.
func CountLine(category string) {
	if LinesTotal != nil {
		LinesTotal.WithLabelValues(category).Inc()
	}
}

// CountDrop records one dropped event.
func CountDrop(reason string) {
	if EventsDropped != nil {
		EventsDropped.WithLabelValues(reason).Inc()
	}
}

// CountOutcome records one translation outcome.
func CountOutcome(outcome string) {
	if TranslationOutcomes != nil {
		TranslationOutcomes.WithLabelValues(outcome).Inc()
	}
}

func CountRetry() {
	if TranslationRetries != nil {
		TranslationRetries.Inc()
	}
}

func CountQueueRejected() {
	if QueueRejected != nil {
		QueueRejected.Inc()
	}
}

func CountBlock() {
	if BlocksEmitted != nil {
		BlocksEmitted.Inc()
	}
}

// SetCacheEntries records the current cache size.
func SetCacheEntries(n int) {
	if CacheEntries != nil {
		CacheEntries.Set(float64(n))
	}
}

// SetQueueDepth records the current worker queue length.
func SetQueueDepth(n int) {
	if QueueDepth != nil {
		QueueDepth.Set(float64(n))
	}
}

// ObserveTranslation records an inference round trip.
func ObserveTranslation(d time.Duration) {
	if TranslationDuration != nil {
		TranslationDuration.Observe(d.Seconds())
	}
}
