package audio

import (
	"time"

	"github.com/veilcast/veilcast/internal/config"
)

// Utterance is one contiguous run of speech, ready for transcription.
// Samples are 16 kHz mono float32 normalized to [-1, 1); Start and End are
// stream-time offsets from the first audio sample the segmenter saw.
type Utterance struct {
	Samples []float32
	Start   time.Duration
	End     time.Duration
}

type speechState int

const (
	stateSilence speechState = iota
	stateSpeaking
)

// Segmenter runs the two-threshold voice-activity state machine. Entering
// speech requires the per-chunk probability to exceed the start threshold;
// once speaking, the lower keep threshold holds the segment open, and the
// segment closes only after a full stop-silence run of quiet chunks. The
// trailing silence stays in the emitted audio so the recognizer sees the
// utterance's natural decay.
type Segmenter struct {
	cfg config.VADConfig
	vad Classifier

	ring  *Ring
	chunk []int16

	state          speechState
	speech         []int16
	speechStart    time.Duration
	silenceSamples int
	streamSamples  int64
}

// NewSegmenter creates a segmenter with the given classifier. The ring
// holds one second of audio; a VAD worker that falls further behind than
// that loses the oldest samples rather than stalling the pipeline.
func NewSegmenter(cfg config.VADConfig, vad Classifier) *Segmenter {
	return &Segmenter{
		cfg:   cfg,
		vad:   vad,
		ring:  NewRing(cfg.SamplingRate),
		chunk: make([]int16, cfg.ChunkSize),
	}
}

// Push feeds mono samples at the configured rate into the segmenter and
// returns any utterances completed by them. The caller is responsible for
// converting to the target rate first (see Convert).
func (s *Segmenter) Push(samples []int16) []Utterance {
	s.ring.Write(samples)

	var out []Utterance
	for s.ring.ReadChunk(s.chunk) {
		if u, ok := s.processChunk(s.chunk); ok {
			out = append(out, u)
		}
	}
	return out
}

func (s *Segmenter) processChunk(chunk []int16) (Utterance, bool) {
	p := s.vad.Probability(chunk, s.cfg.SamplingRate)
	chunkStart := SamplesDuration(int(s.streamSamples), s.cfg.SamplingRate)
	s.streamSamples += int64(len(chunk))

	switch s.state {
	case stateSilence:
		if p > s.cfg.StartSpeechProb {
			s.state = stateSpeaking
			s.speechStart = chunkStart
			s.speech = append(s.speech[:0], chunk...)
			s.silenceSamples = 0
		}

	case stateSpeaking:
		s.speech = append(s.speech, chunk...)
		if p > s.cfg.KeepSpeechProb {
			s.silenceSamples = 0
		} else {
			s.silenceSamples += len(chunk)
			if s.silenceSamples >= s.cfg.StopSilenceSamples() {
				s.state = stateSilence
				return s.emit()
			}
		}
	}
	return Utterance{}, false
}

// Flush closes any in-progress utterance, for end of stream or shutdown.
func (s *Segmenter) Flush() (Utterance, bool) {
	if s.state != stateSpeaking {
		return Utterance{}, false
	}
	s.state = stateSilence
	return s.emit()
}

// Dropped returns samples lost to ring overflow.
func (s *Segmenter) Dropped() int64 {
	return s.ring.Dropped()
}

func (s *Segmenter) emit() (Utterance, bool) {
	defer func() { s.speech = s.speech[:0] }()

	if len(s.speech) < s.cfg.MinSegmentSamples() {
		return Utterance{}, false
	}

	samples := make([]float32, len(s.speech))
	for i, v := range s.speech {
		samples[i] = float32(v) / 32768.0
	}
	return Utterance{
		Samples: samples,
		Start:   s.speechStart,
		End:     s.speechStart + SamplesDuration(len(samples), s.cfg.SamplingRate),
	}, true
}
