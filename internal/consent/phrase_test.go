package consent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhraseDetector(t *testing.T) {
	d := NewPhraseDetector(nil)

	tests := []struct {
		text     string
		wantName string
		wantOK   bool
	}{
		{"my name is Alice and I consent to being filmed", "alice", true},
		{"Hi, I'm Bob Smith, I consent to appear on stream", "bob_smith", true},
		{"I, Carol, consent to being recorded", "carol", true},
		{"this is Dave and I consent", "dave", true},
		{"I consent to being on camera", "unknown", true},
		{"the weather today is lovely", "", false},
		{"she did not consent to anything", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		name, ok := d.Detect(tt.text)
		assert.Equal(t, tt.wantOK, ok, "text %q", tt.text)
		if tt.wantOK {
			assert.Equal(t, tt.wantName, name, "text %q", tt.text)
		}
	}
}

func TestCaptureRequest(t *testing.T) {
	var req CaptureRequest
	assert.False(t, req.Armed())

	_, ok := req.Take()
	assert.False(t, ok)

	req.Arm("alice")
	assert.True(t, req.Armed())

	// A newer request replaces the pending one.
	req.Arm("bob")
	name, ok := req.Take()
	assert.True(t, ok)
	assert.Equal(t, "bob", name)

	_, ok = req.Take()
	assert.False(t, ok, "request is one-shot")
}
