package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation metrics
	activeGenerations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_server_active_generations",
		Help: "Number of generations currently running",
	})

	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_server_generations_total",
		Help: "Total number of generation requests",
	}, []string{"mode", "status"}) // mode: "stream" or "full"

	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_server_generation_duration_seconds",
		Help:    "Duration of audio generation in seconds",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	streamedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_server_streamed_bytes_total",
		Help: "Total PCM bytes streamed to clients",
	})

	// Result cache metrics
	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_server_cache_entries",
		Help: "Number of entries currently held by the result cache",
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_server_cache_lookups_total",
		Help: "Total result cache lookups",
	}, []string{"result"}) // result: "hit", "miss", "expired"

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_server_cache_evictions_total",
		Help: "Total result cache evictions",
	}, []string{"reason"}) // reason: "ttl", "capacity"

	// Device lock metrics
	devicesBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_server_devices_busy",
		Help: "Number of accelerator devices currently locked",
	})

	lockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_server_lock_wait_seconds",
		Help:    "Time spent waiting for a device lock",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_server_stt_requests_total",
		Help: "Total number of STT transcription requests",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_server_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// RecordGenerationStart marks the beginning of a generation request
func RecordGenerationStart() {
	activeGenerations.Inc()
}

// RecordGenerationEnd marks the end of a generation request
func RecordGenerationEnd(mode string, start time.Time, success bool) {
	activeGenerations.Dec()
	generationDuration.Observe(time.Since(start).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	generationsTotal.WithLabelValues(mode, status).Inc()
}

// RecordStreamedBytes records PCM bytes written to a streaming response
func RecordStreamedBytes(n int) {
	streamedBytes.Add(float64(n))
}

// SetCacheEntries updates the cache entry gauge
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordCacheLookup records the outcome of a cache get
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheEviction records entries removed by a sweep
func RecordCacheEviction(reason string, count int) {
	if count > 0 {
		cacheEvictions.WithLabelValues(reason).Add(float64(count))
	}
}

// RecordDeviceAcquired updates lock metrics after a blocking acquire
func RecordDeviceAcquired(waited time.Duration) {
	devicesBusy.Inc()
	lockWaitDuration.Observe(waited.Seconds())
}

// RecordDeviceHeld bumps the busy gauge without observing a wait.
// Used by non-blocking probes, which never queue.
func RecordDeviceHeld() {
	devicesBusy.Inc()
}

// RecordDeviceReleased updates the busy gauge on release
func RecordDeviceReleased() {
	devicesBusy.Dec()
}

// RecordSTTRequest records the outcome of a transcription request
func RecordSTTRequest(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sttRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
