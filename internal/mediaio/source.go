package mediaio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/ffmpeg"
	"github.com/veilcast/veilcast/internal/media"
)

// The PCM tap is decoded at a fixed rate and layout; the VAD path converts
// to its own target rate from here.
const (
	tapSampleRate = 48000
	tapChannels   = 2

	// pcmChunkFrames is how many sample frames one ReadAudio returns.
	pcmChunkFrames = 4096

	// packetReadSize is the read granularity on the passthrough TS pipe.
	packetReadSize = 32 * 1024
)

// FFSource ingests one published stream through an FFmpeg child process.
// The child demuxes and decodes into three pipes: raw BGR24 video on
// stdout, the s16le PCM tap on fd 3, and the original audio stream remuxed
// as MPEG-TS on fd 4.
type FFSource struct {
	cfg     config.InputConfig
	binary  string
	logger  *slog.Logger
	command *ffmpeg.Command
	prober  *prober

	videoR *os.File
	pcmR   *os.File
	tsR    *os.File

	info     *media.StreamInfo
	frameLen int
	frameDur time.Duration

	videoSeq  atomic.Uint64
	audioSeq  atomic.Uint64
	packetSeq atomic.Uint64
	pcmFrames atomic.Int64

	// Odd trailing byte from the previous tap read; it is the low byte of
	// the next sample, so it must prefix the next read or every sample
	// after it lands misaligned.
	pcmRem   byte
	pcmRemOK bool

	closeOnce sync.Once
	closeErr  error
}

// NewFFSource creates a single-use ingest session. Nothing is launched
// until Connect.
func NewFFSource(cfg config.InputConfig, binary string, logger *slog.Logger) *FFSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFSource{
		cfg:    cfg,
		binary: binary,
		logger: logger.With(slog.String("component", "ffmpeg-source")),
		prober: newProber(),
	}
}

// Connect launches the demux process and blocks until a publisher has
// connected and the stream is probed, or ctx expires. A no-show publisher
// is reported as media.ErrConnectTimeout.
func (s *FFSource) Connect(ctx context.Context) (*media.StreamInfo, error) {
	if err := s.start(); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.Close()
		return nil, media.ErrConnectTimeout

	case <-s.prober.Ready():
	}

	info := s.prober.Info()
	if info.Width <= 0 || info.Height <= 0 {
		s.Close()
		return nil, media.ErrNoVideo
	}

	s.info = info
	s.frameLen = info.Width * info.Height * 3
	s.frameDur = time.Duration(float64(time.Second) / info.FPS)

	s.logger.Info("input stream connected",
		slog.String("video_codec", info.VideoCodec),
		slog.Int("width", info.Width),
		slog.Int("height", info.Height),
		slog.Float64("fps", info.FPS),
		slog.Bool("has_audio", info.HasAudio),
		slog.String("audio_codec", info.AudioCodec),
	)
	return info, nil
}

func (s *FFSource) start() error {
	videoR, videoW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating video pipe: %w", err)
	}
	pcmR, pcmW, err := os.Pipe()
	if err != nil {
		videoR.Close()
		videoW.Close()
		return fmt.Errorf("creating pcm pipe: %w", err)
	}
	tsR, tsW, err := os.Pipe()
	if err != nil {
		videoR.Close()
		videoW.Close()
		pcmR.Close()
		pcmW.Close()
		return fmt.Errorf("creating ts pipe: %w", err)
	}

	builder := ffmpeg.NewCommandBuilder(s.binary).
		LogLevel("info"). // stream banner needed for probing
		HideBanner().
		GlobalArgs("-nostdin", "-fflags", "nobuffer")

	builder.AddInput(s.cfg.URL, inputArgs(s.cfg)...)

	// Raw video to stdout.
	builder.AddOutput("pipe:1",
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
	)
	// Decoded PCM tap for the VAD path.
	builder.AddOutput("pipe:3",
		"-map", "0:a:0?",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", tapSampleRate),
		"-ac", fmt.Sprintf("%d", tapChannels),
	)
	// Untouched audio elementary stream for passthrough.
	builder.AddOutput("pipe:4",
		"-map", "0:a:0?",
		"-c:a", "copy",
		"-f", "mpegts",
	)

	cmd := builder.Build()
	cmd.Stdout = videoW
	cmd.ExtraFiles = []*os.File{pcmW, tsW}
	cmd.OnStderrLine = s.prober.observe

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{videoR, videoW, pcmR, pcmW, tsR, tsW} {
			f.Close()
		}
		return fmt.Errorf("starting demux process: %w", err)
	}
	cmd.StartMonitor()

	// The child holds dups of the write ends; drop ours so reads see EOF
	// when it exits.
	videoW.Close()
	pcmW.Close()
	tsW.Close()

	s.command = cmd
	s.videoR = videoR
	s.pcmR = pcmR
	s.tsR = tsR

	s.logger.Debug("demux process started", slog.Int("pid", cmd.PID()))
	return nil
}

// inputArgs returns the per-input flags for the configured URL. An
// rtmp:// URL on a wildcard host is opened in listen mode.
func inputArgs(cfg config.InputConfig) []string {
	var args []string
	if strings.HasPrefix(cfg.URL, "rtmp://") && strings.Contains(cfg.URL, "0.0.0.0") {
		args = append(args, "-listen", "1")
	}
	if cfg.ReadTimeout > 0 {
		args = append(args, "-rw_timeout", fmt.Sprintf("%d", cfg.ReadTimeout.Microseconds()))
	}
	return args
}

// ReadVideo returns the next decoded frame. io.EOF ends the session.
func (s *FFSource) ReadVideo() (*media.VideoFrame, error) {
	buf := make([]byte, s.frameLen)
	if _, err := io.ReadFull(s.videoR, buf); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}

	seq := s.videoSeq.Add(1) - 1
	return &media.VideoFrame{
		Data:     buf,
		Width:    s.info.Width,
		Height:   s.info.Height,
		PTS:      time.Duration(seq) * s.frameDur,
		Sequence: seq,
	}, nil
}

// ReadAudio returns the next PCM chunk from the tap.
func (s *FFSource) ReadAudio() (*media.AudioChunk, error) {
	buf := make([]byte, pcmChunkFrames*tapChannels*2)
	off := 0
	if s.pcmRemOK {
		buf[0] = s.pcmRem
		off = 1
		s.pcmRemOK = false
	}
	n, err := io.ReadAtLeast(s.pcmR, buf[off:], 2-off)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return nil, err
	}
	n += off
	if n%2 != 0 {
		s.pcmRem = buf[n-1]
		s.pcmRemOK = true
		n--
	}

	samples := make([]int16, n/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}

	frames := int64(len(samples) / tapChannels)
	before := s.pcmFrames.Add(frames) - frames

	seq := s.audioSeq.Add(1) - 1
	return &media.AudioChunk{
		Samples:    samples,
		SampleRate: tapSampleRate,
		Channels:   tapChannels,
		PTS:        time.Duration(before) * time.Second / tapSampleRate,
		Sequence:   seq,
	}, nil
}

// ReadPacket returns the next passthrough TS chunk.
func (s *FFSource) ReadPacket() (*media.AudioPacket, error) {
	buf := make([]byte, packetReadSize)
	n, err := s.tsR.Read(buf)
	if err != nil {
		return nil, err
	}

	return &media.AudioPacket{
		Data:     buf[:n],
		Sequence: s.packetSeq.Add(1) - 1,
	}, nil
}

// Close tears the session down and unblocks pending reads.
func (s *FFSource) Close() error {
	s.closeOnce.Do(func() {
		if s.command != nil {
			s.closeErr = s.command.Kill()
			go s.command.Wait()
		}
		for _, f := range []*os.File{s.videoR, s.pcmR, s.tsR} {
			if f != nil {
				f.Close()
			}
		}
	})
	return s.closeErr
}

// ProcessStats exposes the demux child's resource usage for the status API.
func (s *FFSource) ProcessStats() *ffmpeg.ProcessStats {
	if s.command == nil {
		return nil
	}
	return s.command.ProcessStats()
}
