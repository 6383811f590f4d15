// Package metrics defines the Prometheus instrumentation for the pipeline.
// Metrics are registered on the default registry and exposed by the HTTP
// server when metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesProcessed counts frames handled per pipeline stage.
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilcast_frames_processed_total",
		Help: "Frames handled per pipeline stage",
	}, []string{"stage"})

	// FramesDropped counts frames discarded because a queue stayed full.
	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilcast_frames_dropped_total",
		Help: "Frames discarded on queue overflow",
	}, []string{"queue"})

	// QueueDepth tracks the current fill level per queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "veilcast_queue_depth",
		Help: "Buffered items per queue",
	}, []string{"queue"})

	// VideoFPS is the processed video frame rate over the recent window.
	VideoFPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veilcast_video_fps",
		Help: "Processed video frames per second",
	})

	// FacesDetected counts faces reported by the detector.
	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilcast_faces_detected_total",
		Help: "Faces reported by the detector",
	})

	// FacesBlurred counts faces that were blurred rather than passed through.
	FacesBlurred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilcast_faces_blurred_total",
		Help: "Faces blurred in output frames",
	})

	// DetectDuration tracks full detector round trips, cache misses only.
	DetectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veilcast_detect_duration_seconds",
		Help:    "Face detection latency per detector invocation",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	// DetectorCache counts temporal cache hits and misses.
	DetectorCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilcast_detector_cache_total",
		Help: "Detector cache lookups by outcome",
	}, []string{"outcome"})

	// Connected reports link state for the ingest and publish endpoints.
	Connected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "veilcast_connected",
		Help: "Endpoint connection state (1 connected, 0 not)",
	}, []string{"endpoint"})

	// InputSessions counts publisher sessions accepted by the input worker.
	InputSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilcast_input_sessions_total",
		Help: "Publisher sessions accepted",
	})

	// Utterances counts speech segments emitted by the VAD state machine.
	Utterances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilcast_utterances_total",
		Help: "Speech segments emitted by voice activity detection",
	})

	// TranscriptionsDropped counts utterances lost to a full transcription queue.
	TranscriptionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilcast_transcriptions_dropped_total",
		Help: "Utterances dropped because the transcription queue was full",
	})

	// TranscribeDuration tracks transcriber round trips.
	TranscribeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veilcast_transcribe_duration_seconds",
		Help:    "Transcription latency per utterance",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// ConsentRecords is the current size of the recognition database.
	ConsentRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veilcast_consent_records",
		Help: "Records currently loaded in the recognition database",
	})

	// ConsentEvents counts consent directory changes by kind.
	ConsentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilcast_consent_events_total",
		Help: "Consent directory changes by kind",
	}, []string{"event"})

	// WorkerHealthy reports per-worker health as seen by the supervisor.
	WorkerHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "veilcast_worker_healthy",
		Help: "Worker health (1 healthy, 0 not)",
	}, []string{"worker"})
)

// IncFramesProcessed records one frame handled by the named stage.
func IncFramesProcessed(stage string) {
	FramesProcessed.WithLabelValues(stage).Inc()
}

// AddFramesDropped records frames discarded on the named queue.
func AddFramesDropped(queue string, n uint64) {
	FramesDropped.WithLabelValues(queue).Add(float64(n))
}

// SetQueueDepth records the current fill level of the named queue.
func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// ObserveDetect records one detector round trip.
func ObserveDetect(d time.Duration) {
	DetectDuration.Observe(d.Seconds())
}

// IncDetectorCache records a cache lookup outcome ("hit" or "miss").
func IncDetectorCache(outcome string) {
	DetectorCache.WithLabelValues(outcome).Inc()
}

// SetConnected records link state for "input" or "output".
func SetConnected(endpoint string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	Connected.WithLabelValues(endpoint).Set(v)
}

// ObserveTranscribe records one transcriber round trip.
func ObserveTranscribe(d time.Duration) {
	TranscribeDuration.Observe(d.Seconds())
}

// IncConsentEvent records a consent directory change ("added" or "deleted").
func IncConsentEvent(event string) {
	ConsentEvents.WithLabelValues(event).Inc()
}

// SetWorkerHealthy records supervisor health for the named worker.
func SetWorkerHealthy(worker string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	WorkerHealthy.WithLabelValues(worker).Set(v)
}
