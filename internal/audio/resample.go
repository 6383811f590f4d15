// Package audio converts the decoded PCM tap into the 16 kHz mono stream
// the voice-activity detector and transcriber consume, and segments it
// into utterances.
package audio

import "time"

// Downmix folds interleaved multi-channel s16 PCM to mono by averaging
// the channels of each sample frame. A mono input is returned unchanged.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}

	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

// Resample converts mono s16 PCM from srcRate to dstRate by linear
// interpolation. Good enough for voice activity detection and speech
// recognition; this path never feeds playback.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]int16, n)

	for i := 0; i < n; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(samples[idx])
		b := float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// Convert downmixes and resamples in one step.
func Convert(samples []int16, srcRate, channels, dstRate int) []int16 {
	return Resample(Downmix(samples, channels), srcRate, dstRate)
}

// SamplesDuration returns the wall-clock duration of n mono samples at
// the given rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}
