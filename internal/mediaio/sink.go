package mediaio

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/ffmpeg"
	"github.com/veilcast/veilcast/internal/media"
)

// closeGrace is how long the encoder gets to flush after its input pipes
// close before it is killed.
const closeGrace = 3 * time.Second

// FFSink publishes processed frames through an FFmpeg child process. Raw
// BGR24 frames go in on stdin and, when the source carries audio, the
// passthrough TS goes in on fd 3; the child encodes H.264 and muxes both
// out to the configured URL.
type FFSink struct {
	cfg    config.OutputConfig
	binary string
	logger *slog.Logger

	command *ffmpeg.Command
	videoW  *os.File
	audioW  *os.File

	frameLen int

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewFFSink creates a single-use publish session. Nothing is launched
// until Open.
func NewFFSink(cfg config.OutputConfig, binary string, logger *slog.Logger) *FFSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFSink{
		cfg:    cfg,
		binary: binary,
		logger: logger.With(slog.String("component", "ffmpeg-sink")),
	}
}

// Open starts the encoder for the given stream properties.
func (k *FFSink) Open(info *media.StreamInfo) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.command != nil {
		return fmt.Errorf("sink already open")
	}

	fps := k.cfg.FPS
	if fps <= 0 {
		fps = int(info.FPS)
	}
	if fps <= 0 {
		fps = 30
	}

	videoR, videoW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating video pipe: %w", err)
	}

	builder := ffmpeg.NewCommandBuilder(k.binary).
		LogLevel("error").
		HideBanner().
		GlobalArgs("-nostdin")

	builder.AddInput("pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", fmt.Sprintf("%d", fps),
	)

	var audioR, audioW *os.File
	if info.HasAudio {
		audioR, audioW, err = os.Pipe()
		if err != nil {
			videoR.Close()
			videoW.Close()
			return fmt.Errorf("creating audio pipe: %w", err)
		}
		builder.AddInput("pipe:3", "-f", "mpegts")
	}

	outArgs := []string{
		"-map", "0:v:0",
		"-c:v", "libx264",
		"-preset", k.cfg.VideoPreset,
		"-tune", k.cfg.VideoTune,
		"-pix_fmt", k.cfg.PixelFormat,
	}
	if k.cfg.VideoBitrate != "" {
		outArgs = append(outArgs, "-b:v", k.cfg.VideoBitrate)
	}
	if info.HasAudio {
		outArgs = append(outArgs, "-map", "1:a:0")
		if k.cfg.AudioMode == "opus" {
			outArgs = append(outArgs, "-c:a", "libopus", "-ar", "48000")
		} else {
			outArgs = append(outArgs, "-c:a", "copy")
		}
	}
	outArgs = append(outArgs,
		"-f", "rtsp",
		"-rtsp_transport", k.cfg.RTSPTransport,
	)
	builder.AddOutput(k.cfg.URL, outArgs...)

	cmd := builder.Build()
	cmd.Stdin = videoR
	if audioR != nil {
		cmd.ExtraFiles = []*os.File{audioR}
	}
	cmd.OnStderrLine = func(line string) {
		k.logger.Debug("encoder stderr", slog.String("line", line))
	}

	if err := cmd.Start(); err != nil {
		videoR.Close()
		videoW.Close()
		if audioR != nil {
			audioR.Close()
			audioW.Close()
		}
		return fmt.Errorf("starting encoder process: %w", err)
	}
	cmd.StartMonitor()

	// Child holds dups of the read ends.
	videoR.Close()
	if audioR != nil {
		audioR.Close()
	}

	k.command = cmd
	k.videoW = videoW
	k.audioW = audioW
	k.frameLen = info.Width * info.Height * 3

	k.logger.Info("output stream opened",
		slog.String("url", k.cfg.URL),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Int("fps", fps),
		slog.Bool("has_audio", info.HasAudio),
		slog.String("audio_mode", k.cfg.AudioMode),
	)
	return nil
}

// WriteVideo publishes one processed frame.
func (k *FFSink) WriteVideo(f *media.VideoFrame) error {
	if k.videoW == nil {
		return fmt.Errorf("sink not open")
	}
	if len(f.Data) != k.frameLen {
		return fmt.Errorf("frame is %d bytes, encoder expects %d", len(f.Data), k.frameLen)
	}

	if _, err := k.videoW.Write(f.Data); err != nil {
		return fmt.Errorf("writing frame to encoder: %w", err)
	}
	return nil
}

// WritePacket forwards one passthrough audio packet.
func (k *FFSink) WritePacket(p *media.AudioPacket) error {
	if k.audioW == nil {
		// Session without audio; packets are silently dropped so the
		// output worker does not need a per-session mode switch.
		return nil
	}

	if _, err := k.audioW.Write(p.Data); err != nil {
		return fmt.Errorf("writing audio to encoder: %w", err)
	}
	return nil
}

// Close flushes and tears the session down.
func (k *FFSink) Close() error {
	k.closeOnce.Do(func() {
		if k.videoW != nil {
			k.videoW.Close()
		}
		if k.audioW != nil {
			k.audioW.Close()
		}
		if k.command == nil {
			return
		}

		// Give the encoder a moment to flush, then escalate.
		done := make(chan error, 1)
		go func() { done <- k.command.Wait() }()

		select {
		case err := <-done:
			k.closeErr = err
		case <-time.After(closeGrace):
			k.command.Signal(syscall.SIGTERM)
			select {
			case err := <-done:
				k.closeErr = err
			case <-time.After(time.Second):
				k.command.Kill()
				k.closeErr = <-done
			}
		}
	})
	return k.closeErr
}

// ProcessStats exposes the encoder child's resource usage for the status API.
func (k *FFSink) ProcessStats() *ffmpeg.ProcessStats {
	if k.command == nil {
		return nil
	}
	return k.command.ProcessStats()
}
