// Package mediaio implements the media.Source and media.Sink contracts on
// FFmpeg child processes. The ingest side demuxes one published stream into
// three pipes (raw BGR video, a decoded PCM tap, and the untouched audio
// elementary stream as MPEG-TS); the publish side encodes processed frames
// and muxes the passthrough audio back in.
package mediaio

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/veilcast/veilcast/internal/media"
)

var (
	videoStreamRe = regexp.MustCompile(`Stream #\d+:\d+.*: Video: (\w+).*?(\d{2,5})x(\d{2,5})`)
	fpsRe         = regexp.MustCompile(`(\d+(?:\.\d+)?) fps`)
	audioStreamRe = regexp.MustCompile(`Stream #\d+:\d+.*: Audio: (\w+).*?(\d+) Hz, ([^,]+)`)
)

// prober assembles a StreamInfo from FFmpeg's stderr stream banner. FFmpeg
// prints the input's stream lines once the container is probed; that is the
// signal that a publisher has actually connected.
type prober struct {
	mu    sync.Mutex
	info  media.StreamInfo
	ready chan struct{}
	once  sync.Once
}

func newProber() *prober {
	return &prober{ready: make(chan struct{})}
}

// Ready is closed once a video stream line has been seen.
func (p *prober) Ready() <-chan struct{} {
	return p.ready
}

// Info returns the collected stream properties.
func (p *prober) Info() *media.StreamInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := p.info
	return &info
}

// observe consumes one stderr line.
func (p *prober) observe(line string) {
	if m := videoStreamRe.FindStringSubmatch(line); m != nil {
		p.mu.Lock()
		p.info.VideoCodec = m[1]
		p.info.Width, _ = strconv.Atoi(m[2])
		p.info.Height, _ = strconv.Atoi(m[3])
		if fm := fpsRe.FindStringSubmatch(line); fm != nil {
			p.info.FPS, _ = strconv.ParseFloat(fm[1], 64)
		}
		if p.info.FPS <= 0 {
			p.info.FPS = 30
		}
		p.mu.Unlock()
		p.once.Do(func() { close(p.ready) })
		return
	}

	if m := audioStreamRe.FindStringSubmatch(line); m != nil {
		p.mu.Lock()
		p.info.HasAudio = true
		p.info.AudioCodec = m[1]
		p.info.SampleRate, _ = strconv.Atoi(m[2])
		p.info.Channels = parseChannels(m[3])
		p.mu.Unlock()
	}
}

// parseChannels maps FFmpeg's channel layout names to a channel count.
func parseChannels(layout string) int {
	layout = strings.TrimSpace(layout)
	switch {
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.HasPrefix(layout, "5.1"):
		return 6
	case strings.HasPrefix(layout, "7.1"):
		return 8
	}
	if n, ok := strings.CutSuffix(layout, " channels"); ok {
		if c, err := strconv.Atoi(n); err == nil {
			return c
		}
	}
	return 2
}
