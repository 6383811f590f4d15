package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/veilcast/veilcast/internal/consent"
	"github.com/veilcast/veilcast/internal/database"
	"github.com/veilcast/veilcast/internal/database/migrations"
	internalhttp "github.com/veilcast/veilcast/internal/http"
	"github.com/veilcast/veilcast/internal/http/handlers"
	"github.com/veilcast/veilcast/internal/inference"
	"github.com/veilcast/veilcast/internal/mediaio"
	"github.com/veilcast/veilcast/internal/pipeline"
	"github.com/veilcast/veilcast/internal/repository"
	"github.com/veilcast/veilcast/internal/scheduler"
	"github.com/veilcast/veilcast/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the privacy filter pipeline",
	Long: `Start the full veilcast pipeline: input ingest, face detection and
selective blurring, audio remux, voice activity detection and
transcription, output publishing, and the control API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("input", "", "input stream URL (overrides input.url)")
	serveCmd.Flags().String("output", "", "output stream URL (overrides output.url)")
	serveCmd.Flags().String("consent-dir", "", "consent directory (overrides consent.dir)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("input"); v != "" {
		cfg.Input.URL = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.Output.URL = v
	}
	if v, _ := cmd.Flags().GetString("consent-dir"); v != "" {
		cfg.Consent.Dir = v
	}

	logger := slog.Default()
	logger.Info("starting veilcast",
		slog.String("version", version.Version),
		slog.String("input", cfg.Input.URL),
		slog.String("output", cfg.Output.URL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database and repositories.
	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	transcriptRepo := repository.NewTranscriptRepository(db.DB)
	consentEventRepo := repository.NewConsentEventRepository(db.DB)

	// Inference sidecars.
	detector := inference.NewDetector(cfg.Detector, logger)
	recognizer := inference.NewRecognizer(cfg.Recognizer, logger)
	var transcriber *inference.Transcriber
	if cfg.Transcription.Enabled {
		transcriber = inference.NewTranscriber(cfg.Transcription, logger)
	}

	// Consent manager with the audit trail hooked in.
	if err := os.MkdirAll(cfg.Consent.Dir, 0o755); err != nil {
		return fmt.Errorf("creating consent directory: %w", err)
	}
	consentDB := consent.NewDatabase(cfg.Recognizer.CosineThreshold, cfg.Recognizer.L2Threshold)
	consents := consent.NewManager(cfg.Consent, consentDB, detector, recognizer, logger)

	auditor := consent.NewAuditor(consentEventRepo, logger)
	consents.OnChange(auditor.ChangeHook())

	if err := consents.Load(ctx); err != nil {
		return fmt.Errorf("loading consent database: %w", err)
	}
	go func() {
		if err := consents.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("consent watcher stopped", slog.String("error", err.Error()))
		}
	}()

	// Media endpoints.
	sourceFactory, err := mediaio.NewSourceFactory(cfg.Input, cfg.FFmpeg, logger)
	if err != nil {
		return fmt.Errorf("creating input source factory: %w", err)
	}
	sinkFactory, err := mediaio.NewSinkFactory(cfg.Output, cfg.FFmpeg, logger)
	if err != nil {
		return fmt.Errorf("creating output sink factory: %w", err)
	}

	// Pipeline runtime. A persistently failing input takes the process
	// down so the orchestrator can restart it.
	deps := pipeline.Deps{
		SourceFactory: sourceFactory,
		SinkFactory:   sinkFactory,
		Detector:      detector,
		Recognizer:    recognizer,
		Consents:      consents,
		Transcripts:   transcriptRepo,
		Logger:        logger,
		OnFatal: func(reason string) {
			logger.Error("fatal pipeline failure", slog.String("reason", reason))
			stop()
		},
	}
	if transcriber != nil {
		deps.Transcriber = transcriber
	}
	rt := pipeline.NewRuntime(cfg, deps)
	rt.Capturer().OnCapture(auditor.CaptureHook())
	rt.Start(ctx)

	// Maintenance jobs.
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(cfg.Scheduler, consents, transcriptRepo, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Control API.
	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version, db.DB, rt.Healthz)
	healthHandler.Register(server.API())
	healthHandler.RegisterProbes(server.Router())

	consentHandler := handlers.NewConsentHandler(consents, logger)
	consentHandler.Register(server.API())
	consentHandler.RegisterImageServer(server.Router())

	handlers.NewCaptureHandler(rt, logger).Register(server.API())
	handlers.NewStatusHandler(rt).Register(server.API())
	handlers.NewTranscriptHandler(transcriptRepo).Register(server.API())

	if cfg.Metrics.Enabled {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		server.Router().Handle(path, promhttp.Handler())
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
		}
		stop()
	}

	if err := rt.Stop(); err != nil {
		logger.Warn("pipeline shutdown incomplete", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Warn("HTTP shutdown incomplete", slog.String("error", err.Error()))
	}

	logger.Info("veilcast stopped")
	return nil
}
