package mediaio

import (
	"log/slog"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/internal/ffmpeg"
	"github.com/veilcast/veilcast/internal/media"
)

// NewSourceFactory returns a factory producing one FFSource per connect
// attempt. The FFmpeg binary is resolved once up front.
func NewSourceFactory(cfg config.InputConfig, ff config.FFmpegConfig, logger *slog.Logger) (media.SourceFactory, error) {
	binary, err := ffmpeg.ResolveBinary(ff.BinaryPath)
	if err != nil {
		return nil, err
	}
	return func() media.Source {
		return NewFFSource(cfg, binary, logger)
	}, nil
}

// NewSinkFactory returns a factory producing one FFSink per publish
// session.
func NewSinkFactory(cfg config.OutputConfig, ff config.FFmpegConfig, logger *slog.Logger) (media.SinkFactory, error) {
	binary, err := ffmpeg.ResolveBinary(ff.BinaryPath)
	if err != nil {
		return nil, err
	}
	return func() media.Sink {
		return NewFFSink(cfg, binary, logger)
	}, nil
}
