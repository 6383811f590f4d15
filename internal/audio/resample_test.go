package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDownmix(t *testing.T) {
	mono := []int16{1, 2, 3}
	assert.Equal(t, mono, Downmix(mono, 1))

	stereo := []int16{100, 300, -200, 200, 0, 0}
	assert.Equal(t, []int16{200, 0, 0}, Downmix(stereo, 2))
}

func TestResample_Identity(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	assert.Equal(t, in, Resample(in, 16000, 16000))
}

func TestResample_Downsample(t *testing.T) {
	in := make([]int16, 48000)
	for i := range in {
		in[i] = 1000
	}
	out := Resample(in, 48000, 16000)

	assert.Equal(t, 16000, len(out))
	for i, v := range out {
		if v != 1000 {
			t.Fatalf("sample %d = %d, constant signal should survive resampling", i, v)
		}
	}
}

func TestResample_Upsample_Interpolates(t *testing.T) {
	out := Resample([]int16{0, 100}, 8000, 16000)
	assert.Equal(t, 4, len(out))
	assert.Equal(t, int16(0), out[0])
	assert.Equal(t, int16(50), out[1])
}

func TestSamplesDuration(t *testing.T) {
	assert.Equal(t, time.Second, SamplesDuration(16000, 16000))
	assert.Equal(t, 32*time.Millisecond, SamplesDuration(512, 16000))
	assert.Equal(t, time.Duration(0), SamplesDuration(100, 0))
}
