package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/veilcast/veilcast/internal/asr"
	"github.com/veilcast/veilcast/internal/audio"
	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/consent"
	"github.com/veilcast/veilcast/internal/media"
	"github.com/veilcast/veilcast/internal/vision"
)

// Deps bundles everything the runtime injects into the workers. All worker
// construction happens here; no package-level singletons.
type Deps struct {
	SourceFactory media.SourceFactory
	SinkFactory   media.SinkFactory

	Detector    vision.Detector
	Recognizer  vision.Recognizer
	Transcriber asr.Transcriber
	VAD         audio.Classifier

	Consents    *consent.Manager
	Transcripts TranscriptStore

	// OnFatal is invoked when the input worker stays errored past the
	// configured threshold; the serve command uses it to exit.
	OnFatal func(reason string)

	Logger *slog.Logger
}

// Runtime owns the pipeline: queues, workers, and the monitoring loops. One
// Runtime maps to one process lifetime; Start and Stop are called once.
type Runtime struct {
	cfg    *config.Config
	logger *slog.Logger

	sup      *Supervisor
	conn     *ConnectionState
	stats    *StatsCollector
	monitor  *Monitor
	capture  *consent.CaptureRequest
	capturer *consent.Capturer

	videoQ      *Queue[*media.VideoFrame]
	audioQ      *Queue[*media.AudioPacket]
	vadQ        *Queue[*media.AudioChunk]
	outputQ     *Queue[*media.VideoFrame]
	packetQ     *Queue[*media.AudioPacket]
	transcribeQ *Queue[audio.Utterance]

	input      *InputWorker
	video      *VideoWorker
	audio      *AudioWorker
	vad        *VADWorker
	transcribe *TranscribeWorker
	output     *OutputWorker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRuntime wires queues and workers from configuration. Transcription
// workers (VAD and transcribe) only exist when transcription is enabled;
// the PCM tap is still drained either way.
func NewRuntime(cfg *config.Config, deps Deps) *Runtime {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtime{
		cfg:     cfg,
		logger:  logger,
		conn:    NewConnectionState(),
		capture: &consent.CaptureRequest{},
	}

	p := cfg.Pipeline
	r.sup = NewSupervisor(p.HeartbeatTimeout, logger)
	r.stats = NewStatsCollector(p.StatsInterval, logger)
	r.monitor = NewMonitor(r.sup, p.MonitorInterval, p.InputErrorThreshold, deps.OnFatal, logger)

	r.videoQ = NewQueue[*media.VideoFrame]("video", p.VideoQueueSize)
	r.audioQ = NewQueue[*media.AudioPacket]("audio", p.AudioQueueSize)
	r.outputQ = NewQueue[*media.VideoFrame]("output", p.OutputQueueSize)
	r.packetQ = NewQueue[*media.AudioPacket]("packets", p.AudioQueueSize)

	transcription := cfg.Transcription.Enabled && deps.Transcriber != nil
	if transcription {
		r.vadQ = NewQueue[*media.AudioChunk]("vad", p.VADQueueSize)
		r.transcribeQ = NewQueue[audio.Utterance]("transcription", cfg.Transcription.QueueSize)
	}

	var matcher vision.ConsentMatcher
	if deps.Consents != nil {
		matcher = deps.Consents.Database()
	}
	processor := vision.NewFaceProcessor(
		cfg.Detector, cfg.Recognizer, deps.Detector, deps.Recognizer, matcher, logger)

	if deps.Consents != nil {
		r.capturer = consent.NewCapturer(cfg.Consent, logger)
	}

	r.sup.Register(WorkerInput)
	r.sup.Register(WorkerVideo)
	r.sup.Register(WorkerAudio)
	r.sup.Register(WorkerOutput)

	r.input = NewInputWorker(cfg.Input, deps.SourceFactory, r.sup, r.conn,
		r.videoQ, r.audioQ, r.vadQ, p.QueueTimeout, logger)
	r.video = NewVideoWorker(processor, deps.Detector, r.capture, r.capturer,
		deps.Consents, r.sup, r.stats, r.videoQ, r.outputQ, p.QueueTimeout, logger)
	r.audio = NewAudioWorker(r.sup, r.audioQ, r.packetQ, p.QueueTimeout, logger)
	r.output = NewOutputWorker(deps.SinkFactory, r.sup, r.conn,
		r.outputQ, r.packetQ, p.QueueTimeout, cfg.Input.ReconnectDelay, logger)

	if transcription {
		r.sup.Register(WorkerVAD)
		r.sup.Register(WorkerTranscribe)

		vad := deps.VAD
		if vad == nil {
			vad = audio.NewEnergyVAD()
		}
		r.vad = NewVADWorker(cfg.VAD, vad, r.sup, r.stats,
			r.vadQ, r.transcribeQ, p.QueueTimeout, logger)

		var phrases consent.ConsentDetector
		if cfg.Consent.PhraseDetection && deps.Consents != nil {
			phrases = consent.NewPhraseDetector(logger)
		}
		r.transcribe = NewTranscribeWorker(cfg.Transcription, cfg.VAD.SamplingRate,
			deps.Transcriber, phrases, r.capture, deps.Transcripts,
			r.sup, r.transcribeQ, p.QueueTimeout, logger)
	}

	r.input.SetClearDownstream(func() int {
		return r.outputQ.Clear() + r.packetQ.Clear()
	})

	r.monitor.SetQueueSource(r.QueueStats)
	r.stats.SetQueueSource(r.QueueStats)

	return r
}

// Start launches every worker and the monitoring loops.
func (r *Runtime) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.spawn(func() { r.monitor.Run(ctx) })
	r.spawn(func() { r.stats.Run(ctx) })

	r.runWorker(ctx, WorkerInput, r.input.Run)
	r.runWorker(ctx, WorkerVideo, r.video.Run)
	r.runWorker(ctx, WorkerAudio, r.audio.Run)
	r.runWorker(ctx, WorkerOutput, r.output.Run)
	if r.vad != nil {
		r.runWorker(ctx, WorkerVAD, r.vad.Run)
		r.runWorker(ctx, WorkerTranscribe, r.transcribe.Run)
	}

	r.logger.Info("pipeline started",
		slog.String("input", r.cfg.Input.URL),
		slog.String("output", r.cfg.Output.URL),
		slog.Bool("transcription", r.vad != nil),
		slog.Bool("recognition_gate", r.cfg.Recognizer.GateEnabled),
	)
}

func (r *Runtime) spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// runWorker wraps a worker loop with panic recovery: a crashed worker lands
// in the error state and shows up in health instead of taking the process
// down.
func (r *Runtime) runWorker(ctx context.Context, name string, run func(context.Context)) {
	r.spawn(func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("worker panicked",
					slog.String("worker", name),
					slog.Any("panic", rec),
				)
				r.sup.UpdateState(name, StateError)
			}
		}()
		run(ctx)
	})
}

// Stop cancels the workers, closes the queues so blocked consumers wake,
// and waits for everything to reach a terminal state.
func (r *Runtime) Stop() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()

	r.videoQ.Close()
	r.audioQ.Close()
	r.outputQ.Close()
	r.packetQ.Close()
	if r.vadQ != nil {
		r.vadQ.Close()
	}

	err := r.sup.AwaitStopped(r.cfg.Pipeline.ShutdownTimeout)
	if err == nil {
		r.wg.Wait()
	}
	return err
}

// ArmCapture arms a one-shot consent capture for the named person. The next
// processed frame services it.
func (r *Runtime) ArmCapture(name string) {
	r.capture.Arm(name)
}

// Capturer returns the consent capturer, or nil when no consent manager is
// wired. Callers may install an OnCapture hook before Start.
func (r *Runtime) Capturer() *consent.Capturer {
	return r.capturer
}

// Connection returns the shared connection state.
func (r *Runtime) Connection() *ConnectionState {
	return r.conn
}

// Supervisor returns the worker registry for health reporting.
func (r *Runtime) Supervisor() *Supervisor {
	return r.sup
}

// Stats returns the throughput collector.
func (r *Runtime) Stats() *StatsCollector {
	return r.stats
}

// QueueStats snapshots every pipeline queue.
func (r *Runtime) QueueStats() []QueueStats {
	out := []QueueStats{
		r.videoQ.Stats(),
		r.audioQ.Stats(),
		r.outputQ.Stats(),
		r.packetQ.Stats(),
	}
	if r.vadQ != nil {
		out = append(out, r.vadQ.Stats())
	}
	if r.transcribeQ != nil {
		out = append(out, r.transcribeQ.Stats())
	}
	return out
}

// Status assembles the pipeline view served by the control API.
func (r *Runtime) Status() Status {
	return Status{
		Connection: r.conn.Snapshot(),
		Workers:    r.sup.Workers(),
		Queues:     r.QueueStats(),
		FPS:        r.stats.FPS(),
		Frames:     r.stats.FramesProcessed(),
		Healthy:    r.sup.AllHealthy(),
	}
}

// Status is a point-in-time view of the whole pipeline.
type Status struct {
	Connection ConnectionSnapshot `json:"connection"`
	Workers    []WorkerStatus     `json:"workers"`
	Queues     []QueueStats       `json:"queues"`
	FPS        float64            `json:"fps"`
	Frames     uint64             `json:"frames_processed"`
	Healthy    bool               `json:"healthy"`
}

// Healthz reports liveness for the health endpoint: true while every
// registered worker heartbeats within the supervisor timeout.
func (r *Runtime) Healthz() bool {
	return r.sup.AllHealthy()
}
