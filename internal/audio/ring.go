package audio

// Ring is a fixed-capacity FIFO of mono s16 samples. The segmenter writes
// whole decoded frames in and reads fixed-size chunks out; when a stalled
// consumer lets the buffer fill, the oldest samples are overwritten so the
// detector keeps tracking live audio rather than drifting behind.
//
// Not safe for concurrent use; the VAD worker owns it exclusively.
type Ring struct {
	buf   []int16
	head  int
	size  int
	drops int64
}

// NewRing creates a ring holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]int16, capacity)}
}

// Write appends samples, overwriting the oldest when full. Returns the
// number of samples overwritten.
func (r *Ring) Write(samples []int16) int {
	dropped := 0

	// A write larger than the whole ring keeps only its tail.
	if len(samples) > len(r.buf) {
		dropped += len(samples) - len(r.buf)
		samples = samples[len(samples)-len(r.buf):]
	}

	overflow := r.size + len(samples) - len(r.buf)
	if overflow > 0 {
		r.head = (r.head + overflow) % len(r.buf)
		r.size -= overflow
		dropped += overflow
	}

	tail := (r.head + r.size) % len(r.buf)
	n := copy(r.buf[tail:], samples)
	copy(r.buf, samples[n:])
	r.size += len(samples)

	r.drops += int64(dropped)
	return dropped
}

// ReadChunk copies the oldest n samples into dst (len(dst) == n) and
// consumes them. Reports false when fewer than n samples are buffered.
func (r *Ring) ReadChunk(dst []int16) bool {
	if r.size < len(dst) {
		return false
	}

	end := r.head + len(dst)
	if end <= len(r.buf) {
		copy(dst, r.buf[r.head:end])
	} else {
		n := copy(dst, r.buf[r.head:])
		copy(dst[n:], r.buf[:end-len(r.buf)])
	}

	r.head = (r.head + len(dst)) % len(r.buf)
	r.size -= len(dst)
	return true
}

// Len returns the number of buffered samples.
func (r *Ring) Len() int {
	return r.size
}

// Dropped returns the total samples overwritten since creation.
func (r *Ring) Dropped() int64 {
	return r.drops
}
