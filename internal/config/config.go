// Package config provides configuration management for veilcast using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8080
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 6
	defaultMaxIdleConns    = 3
	defaultConnMaxIdleTime = 30 * time.Minute

	defaultInputURL       = "rtmp://0.0.0.0:1935/live/stream"
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 1 * time.Second
	defaultReconnectDelay = 1 * time.Second

	defaultOutputURL = "rtsp://127.0.0.1:8554/blurred"
	defaultOutputFPS = 30

	defaultVideoQueueSize      = 60
	defaultAudioQueueSize      = 200
	defaultVADQueueSize        = 20
	defaultOutputQueueSize     = 60
	defaultQueueTimeout        = 100 * time.Millisecond
	defaultHeartbeatTimeout    = 30 * time.Second
	defaultMonitorInterval     = 5 * time.Second
	defaultStatsInterval       = 30 * time.Second
	defaultInputErrorThreshold = 60 * time.Second

	defaultBlurKernel     = 51
	defaultScoreThreshold = 0.7
	defaultNMSThreshold   = 0.3
	defaultTopK           = 5000
	defaultMinConfidence  = 0.5
	defaultPaddingRatio   = 0.1
	defaultCacheDuration  = 150 * time.Millisecond
	defaultDetectMaxSide  = 640

	defaultCosineThreshold = 0.363
	defaultL2Threshold     = 1.128

	defaultWhisperModel   = "small.en"
	defaultBeamSize       = 5
	defaultLanguage       = "en"
	defaultSegmentQueue   = 10
	defaultFlushTimeout   = 5 * time.Second
	defaultSamplingRate   = 16000
	defaultChunkSize      = 512
	defaultStartProb      = 0.1
	defaultKeepProb       = 0.5
	defaultStopSilence    = 500 * time.Millisecond
	defaultMinSegment     = 300 * time.Millisecond
	defaultConsentDir     = "./consent_captures"
	defaultPollInterval   = 250 * time.Millisecond
	defaultJPEGQuality    = 95
	defaultMaxImageSize   = 10 * 1024 * 1024 // 10MB
	defaultRescanCron     = "0 */5 * * * *"
	defaultRetentionCron  = "0 15 3 * * *"
	defaultRetentionAge   = 30 * 24 * time.Hour
	defaultSidecarTimeout = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Input         InputConfig         `mapstructure:"input"`
	Output        OutputConfig        `mapstructure:"output"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Detector      DetectorConfig      `mapstructure:"detector"`
	Recognizer    RecognizerConfig    `mapstructure:"recognizer"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	VAD           VADConfig           `mapstructure:"vad"`
	Consent       ConsentConfig       `mapstructure:"consent"`
	FFmpeg        FFmpegConfig        `mapstructure:"ffmpeg"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP control API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// InputConfig holds the inbound stream configuration.
type InputConfig struct {
	// URL is the input endpoint. rtmp:// URLs with a 0.0.0.0 host are
	// opened in listen mode, waiting for a publisher.
	URL string `mapstructure:"url"`
	// ConnectTimeout is the total time budget for one connect attempt.
	// It is consumed in 1s chunks so shutdown stays responsive.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// ReadTimeout bounds a single demux read.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// ReconnectDelay is the pause between failed sessions.
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// OutputConfig holds the outbound stream configuration.
type OutputConfig struct {
	URL           string `mapstructure:"url"`
	FPS           int    `mapstructure:"fps"`
	VideoPreset   string `mapstructure:"video_preset"`
	VideoTune     string `mapstructure:"video_tune"`
	PixelFormat   string `mapstructure:"pixel_format"`
	VideoBitrate  string `mapstructure:"video_bitrate"` // empty = encoder default
	AudioMode     string `mapstructure:"audio_mode"`    // copy, opus
	RTSPTransport string `mapstructure:"rtsp_transport"`
}

// PipelineConfig holds queue sizing and worker supervision configuration.
type PipelineConfig struct {
	VideoQueueSize  int           `mapstructure:"video_queue_size"`
	AudioQueueSize  int           `mapstructure:"audio_queue_size"`
	VADQueueSize    int           `mapstructure:"vad_queue_size"`
	OutputQueueSize int           `mapstructure:"output_queue_size"`
	QueueTimeout    time.Duration `mapstructure:"queue_timeout"`
	// HeartbeatTimeout is how stale a worker heartbeat may be before the
	// worker is reported unhealthy.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
	StatsInterval    time.Duration `mapstructure:"stats_interval"`
	// InputErrorThreshold is how long the input worker may sit in ERROR
	// before the process gives up and exits.
	InputErrorThreshold time.Duration `mapstructure:"input_error_threshold"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
}

// DetectorConfig holds face detection configuration.
type DetectorConfig struct {
	// Endpoint is the HTTP address of the detection sidecar.
	Endpoint       string        `mapstructure:"endpoint"`
	ScoreThreshold float64       `mapstructure:"score_threshold"`
	NMSThreshold   float64       `mapstructure:"nms_threshold"`
	TopK           int           `mapstructure:"top_k"`
	MinConfidence  float64       `mapstructure:"min_confidence"`
	PaddingRatio   float64       `mapstructure:"padding_ratio"`
	CacheDuration  time.Duration `mapstructure:"cache_duration"`
	BlurKernel     int           `mapstructure:"blur_kernel"`
	// MaxSide downscales frames larger than this before detection;
	// coordinates are rescaled back. 0 disables downscaling.
	MaxSide int           `mapstructure:"max_side"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RecognizerConfig holds face recognition configuration.
type RecognizerConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	CosineThreshold float64       `mapstructure:"cosine_threshold"`
	L2Threshold     float64       `mapstructure:"l2_threshold"`
	// GateEnabled wires the recognition gate into the video worker so
	// consented faces pass unblurred. Off means every face is blurred.
	GateEnabled bool          `mapstructure:"gate_enabled"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TranscriptionConfig holds speech-to-text configuration.
type TranscriptionConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Endpoint   string        `mapstructure:"endpoint"`
	Model      string        `mapstructure:"model"`
	Language   string        `mapstructure:"language"`
	BeamSize   int           `mapstructure:"beam_size"`
	CPUThreads int           `mapstructure:"cpu_threads"` // 0 = auto
	QueueSize  int           `mapstructure:"queue_size"`
	// FlushTimeout bounds the shutdown drain of pending utterances.
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// VADConfig holds voice activity detection configuration.
type VADConfig struct {
	SamplingRate    int           `mapstructure:"sampling_rate"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	StartSpeechProb float64       `mapstructure:"start_speech_prob"`
	KeepSpeechProb  float64       `mapstructure:"keep_speech_prob"`
	StopSilence     time.Duration `mapstructure:"stop_silence"`
	MinSegment      time.Duration `mapstructure:"min_segment"`
}

// ConsentConfig holds consent directory and capture configuration.
type ConsentConfig struct {
	Dir          string        `mapstructure:"dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	JPEGQuality  int           `mapstructure:"jpeg_quality"`
	// MaxImageSize skips consent files larger than this.
	// Supports human-readable values like "10MB" or raw byte counts.
	MaxImageSize ByteSize `mapstructure:"max_image_size"`
	// PhraseDetection scans transcripts for spoken consent statements and
	// arms a capture for the named speaker.
	PhraseDetection bool `mapstructure:"phrase_detection"`
}

// FFmpegConfig holds FFmpeg binary configuration.
type FFmpegConfig struct {
	BinaryPath string `mapstructure:"binary_path"` // empty = auto-detect
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SchedulerConfig holds cron job configuration.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// ConsentRescanCron re-reconciles the consent directory against the
	// recognition database (6-field cron expression).
	ConsentRescanCron string `mapstructure:"consent_rescan_cron"`
	// TranscriptSweepCron prunes transcripts older than TranscriptRetention.
	TranscriptSweepCron string `mapstructure:"transcript_sweep_cron"`
	// TranscriptRetention supports extended units like "30d" or "4w".
	TranscriptRetention Duration `mapstructure:"transcript_retention"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with VEILCAST_ and use underscores for nesting.
// Example: VEILCAST_SERVER_PORT=8080.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/veilcast")
		v.AddConfigPath("$HOME/.veilcast")
	}

	// Environment variable settings
	v.SetEnvPrefix("VEILCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	}

	var cfg Config
	// The extra TextUnmarshaller hook lets Duration and ByteSize fields
	// accept human-readable strings like "30d" and "10MB".
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "veilcast.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Input defaults
	v.SetDefault("input.url", defaultInputURL)
	v.SetDefault("input.connect_timeout", defaultConnectTimeout)
	v.SetDefault("input.read_timeout", defaultReadTimeout)
	v.SetDefault("input.reconnect_delay", defaultReconnectDelay)

	// Output defaults
	v.SetDefault("output.url", defaultOutputURL)
	v.SetDefault("output.fps", defaultOutputFPS)
	v.SetDefault("output.video_preset", "veryfast")
	v.SetDefault("output.video_tune", "zerolatency")
	v.SetDefault("output.pixel_format", "yuv420p")
	v.SetDefault("output.video_bitrate", "")
	v.SetDefault("output.audio_mode", "copy")
	v.SetDefault("output.rtsp_transport", "tcp")

	// Pipeline defaults
	v.SetDefault("pipeline.video_queue_size", defaultVideoQueueSize)
	v.SetDefault("pipeline.audio_queue_size", defaultAudioQueueSize)
	v.SetDefault("pipeline.vad_queue_size", defaultVADQueueSize)
	v.SetDefault("pipeline.output_queue_size", defaultOutputQueueSize)
	v.SetDefault("pipeline.queue_timeout", defaultQueueTimeout)
	v.SetDefault("pipeline.heartbeat_timeout", defaultHeartbeatTimeout)
	v.SetDefault("pipeline.monitor_interval", defaultMonitorInterval)
	v.SetDefault("pipeline.stats_interval", defaultStatsInterval)
	v.SetDefault("pipeline.input_error_threshold", defaultInputErrorThreshold)
	v.SetDefault("pipeline.shutdown_timeout", defaultShutdownTimeout)

	// Detector defaults
	v.SetDefault("detector.endpoint", "http://127.0.0.1:18081")
	v.SetDefault("detector.score_threshold", defaultScoreThreshold)
	v.SetDefault("detector.nms_threshold", defaultNMSThreshold)
	v.SetDefault("detector.top_k", defaultTopK)
	v.SetDefault("detector.min_confidence", defaultMinConfidence)
	v.SetDefault("detector.padding_ratio", defaultPaddingRatio)
	v.SetDefault("detector.cache_duration", defaultCacheDuration)
	v.SetDefault("detector.blur_kernel", defaultBlurKernel)
	v.SetDefault("detector.max_side", defaultDetectMaxSide)
	v.SetDefault("detector.timeout", defaultSidecarTimeout)

	// Recognizer defaults
	v.SetDefault("recognizer.endpoint", "http://127.0.0.1:18082")
	v.SetDefault("recognizer.cosine_threshold", defaultCosineThreshold)
	v.SetDefault("recognizer.l2_threshold", defaultL2Threshold)
	v.SetDefault("recognizer.gate_enabled", false)
	v.SetDefault("recognizer.timeout", defaultSidecarTimeout)

	// Transcription defaults
	v.SetDefault("transcription.enabled", true)
	v.SetDefault("transcription.endpoint", "http://127.0.0.1:18083")
	v.SetDefault("transcription.model", defaultWhisperModel)
	v.SetDefault("transcription.language", defaultLanguage)
	v.SetDefault("transcription.beam_size", defaultBeamSize)
	v.SetDefault("transcription.cpu_threads", 0)
	v.SetDefault("transcription.queue_size", defaultSegmentQueue)
	v.SetDefault("transcription.flush_timeout", defaultFlushTimeout)
	v.SetDefault("transcription.timeout", defaultSidecarTimeout)

	// VAD defaults
	v.SetDefault("vad.sampling_rate", defaultSamplingRate)
	v.SetDefault("vad.chunk_size", defaultChunkSize)
	v.SetDefault("vad.start_speech_prob", defaultStartProb)
	v.SetDefault("vad.keep_speech_prob", defaultKeepProb)
	v.SetDefault("vad.stop_silence", defaultStopSilence)
	v.SetDefault("vad.min_segment", defaultMinSegment)

	// Consent defaults
	v.SetDefault("consent.dir", defaultConsentDir)
	v.SetDefault("consent.poll_interval", defaultPollInterval)
	v.SetDefault("consent.jpeg_quality", defaultJPEGQuality)
	v.SetDefault("consent.max_image_size", defaultMaxImageSize)
	v.SetDefault("consent.phrase_detection", true)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.binary_path", "")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.consent_rescan_cron", defaultRescanCron)
	v.SetDefault("scheduler.transcript_sweep_cron", defaultRetentionCron)
	v.SetDefault("scheduler.transcript_retention", defaultRetentionAge)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	// Database validation
	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Stream endpoint validation
	if c.Input.URL == "" {
		return fmt.Errorf("input.url is required")
	}
	if c.Input.ConnectTimeout <= 0 {
		return fmt.Errorf("input.connect_timeout must be positive")
	}
	if c.Output.URL == "" {
		return fmt.Errorf("output.url is required")
	}
	if c.Output.FPS < 1 {
		return fmt.Errorf("output.fps must be at least 1")
	}
	validAudioModes := map[string]bool{"copy": true, "opus": true}
	if !validAudioModes[c.Output.AudioMode] {
		return fmt.Errorf("output.audio_mode must be one of: copy, opus")
	}

	// Pipeline validation
	if c.Pipeline.VideoQueueSize < 1 {
		return fmt.Errorf("pipeline.video_queue_size must be at least 1")
	}
	if c.Pipeline.AudioQueueSize < 1 {
		return fmt.Errorf("pipeline.audio_queue_size must be at least 1")
	}
	if c.Pipeline.VADQueueSize < 1 {
		return fmt.Errorf("pipeline.vad_queue_size must be at least 1")
	}
	if c.Pipeline.OutputQueueSize < 1 {
		return fmt.Errorf("pipeline.output_queue_size must be at least 1")
	}
	if c.Pipeline.QueueTimeout <= 0 {
		return fmt.Errorf("pipeline.queue_timeout must be positive")
	}

	// Detector validation
	if c.Detector.BlurKernel < 3 || c.Detector.BlurKernel%2 == 0 {
		return fmt.Errorf("detector.blur_kernel must be an odd number >= 3")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}
	if c.Detector.PaddingRatio < 0 || c.Detector.PaddingRatio >= 1 {
		return fmt.Errorf("detector.padding_ratio must be in [0, 1)")
	}
	if c.Detector.CacheDuration < 0 {
		return fmt.Errorf("detector.cache_duration must not be negative")
	}

	// Recognizer validation
	if c.Recognizer.CosineThreshold <= 0 {
		return fmt.Errorf("recognizer.cosine_threshold must be positive")
	}
	if c.Recognizer.L2Threshold <= 0 {
		return fmt.Errorf("recognizer.l2_threshold must be positive")
	}

	// VAD validation
	if c.VAD.SamplingRate < 8000 {
		return fmt.Errorf("vad.sampling_rate must be at least 8000")
	}
	if c.VAD.ChunkSize < 1 {
		return fmt.Errorf("vad.chunk_size must be at least 1")
	}
	if c.VAD.StartSpeechProb < 0 || c.VAD.StartSpeechProb > 1 {
		return fmt.Errorf("vad.start_speech_prob must be between 0 and 1")
	}
	if c.VAD.KeepSpeechProb < 0 || c.VAD.KeepSpeechProb > 1 {
		return fmt.Errorf("vad.keep_speech_prob must be between 0 and 1")
	}
	if c.VAD.StopSilence <= 0 {
		return fmt.Errorf("vad.stop_silence must be positive")
	}

	// Transcription validation
	if c.Transcription.Enabled {
		if c.Transcription.QueueSize < 1 {
			return fmt.Errorf("transcription.queue_size must be at least 1")
		}
		if c.Transcription.BeamSize < 1 {
			return fmt.Errorf("transcription.beam_size must be at least 1")
		}
	}

	// Consent validation
	if c.Consent.Dir == "" {
		return fmt.Errorf("consent.dir is required")
	}
	if c.Consent.PollInterval <= 0 {
		return fmt.Errorf("consent.poll_interval must be positive")
	}
	if c.Consent.JPEGQuality < 1 || c.Consent.JPEGQuality > 100 {
		return fmt.Errorf("consent.jpeg_quality must be between 1 and 100")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StopSilenceSamples returns the silence run length, in samples, that ends
// an utterance.
func (c *VADConfig) StopSilenceSamples() int {
	return int(c.StopSilence.Milliseconds()) * c.SamplingRate / 1000
}

// MinSegmentSamples returns the minimum utterance length in samples.
func (c *VADConfig) MinSegmentSamples() int {
	return int(c.MinSegment.Milliseconds()) * c.SamplingRate / 1000
}

// ChunkDuration returns the wall-clock duration of one VAD chunk.
func (c *VADConfig) ChunkDuration() time.Duration {
	if c.SamplingRate == 0 {
		return 0
	}
	return time.Duration(float64(c.ChunkSize) / float64(c.SamplingRate) * float64(time.Second))
}
