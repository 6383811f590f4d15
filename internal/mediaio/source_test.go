package mediaio

import (
	"encoding/binary"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tapSource builds an FFSource whose PCM tap reads from an in-test pipe.
func tapSource(t *testing.T) (*FFSource, *os.File) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return &FFSource{pcmR: r}, w
}

func TestReadAudio_OddSplitKeepsSampleAlignment(t *testing.T) {
	want := []int16{100, -200, 300, -400, 500, -600, 700}
	raw := make([]byte, len(want)*2)
	for i, s := range want {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}

	src, w := tapSource(t)

	// The pipe is a byte stream, so short writes ending on an odd byte are
	// exactly what a busy demux child produces. Writing and reading in
	// lockstep pins each split point to a single ReadAudio call.
	var got []int16
	for _, part := range [][]byte{raw[:3], raw[3:8], raw[8:11], raw[11:]} {
		_, err := w.Write(part)
		require.NoError(t, err)

		chunk, err := src.ReadAudio()
		require.NoError(t, err)
		got = append(got, chunk.Samples...)
	}

	assert.Equal(t, want, got)

	w.Close()
	_, err := src.ReadAudio()
	assert.Equal(t, io.EOF, err)
}

func TestReadAudio_PTSAdvancesAcrossCarriedBytes(t *testing.T) {
	// Two stereo frames delivered as 5 bytes then 3: the first read yields
	// one frame and stashes a byte, the second read completes the rest.
	raw := make([]byte, 4*tapChannels)
	for i := range raw {
		raw[i] = byte(i + 1)
	}

	src, w := tapSource(t)

	_, err := w.Write(raw[:5])
	require.NoError(t, err)

	first, err := src.ReadAudio()
	require.NoError(t, err)
	assert.Len(t, first.Samples, 2)
	assert.Equal(t, uint64(0), first.Sequence)

	_, err = w.Write(raw[5:])
	require.NoError(t, err)

	second, err := src.ReadAudio()
	require.NoError(t, err)
	assert.Len(t, second.Samples, 2)
	assert.Equal(t, uint64(1), second.Sequence)
	assert.Greater(t, second.PTS, first.PTS)
}
