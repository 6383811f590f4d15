package vision

import (
	"bytes"
	"testing"

	"github.com/veilcast/veilcast/internal/media"
)

func gradientFrame(w, h int) *media.VideoFrame {
	f := &media.VideoFrame{Width: w, Height: h, Data: make([]byte, w*h*3)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := (y*w + x) * 3
			f.Data[off] = byte(x * 7)
			f.Data[off+1] = byte(y * 5)
			f.Data[off+2] = byte((x + y) * 3)
		}
	}
	return f
}

func TestBlurROIOnlyTouchesRectangle(t *testing.T) {
	f := gradientFrame(64, 48)
	orig := make([]byte, len(f.Data))
	copy(orig, f.Data)

	roi := Rect{X: 16, Y: 12, W: 20, H: 16}
	BlurROI(f, roi, 11)

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			inside := x >= roi.X && x < roi.X+roi.W && y >= roi.Y && y < roi.Y+roi.H
			off := (y*f.Width + x) * 3
			same := bytes.Equal(f.Data[off:off+3], orig[off:off+3])
			if !inside && !same {
				t.Fatalf("pixel outside ROI changed at (%d,%d)", x, y)
			}
		}
	}
}

func TestBlurROIChangesInterior(t *testing.T) {
	f := gradientFrame(64, 48)
	orig := make([]byte, len(f.Data))
	copy(orig, f.Data)

	roi := Rect{X: 8, Y: 8, W: 32, H: 24}
	BlurROI(f, roi, 21)

	changed := 0
	for y := roi.Y; y < roi.Y+roi.H; y++ {
		for x := roi.X; x < roi.X+roi.W; x++ {
			off := (y*f.Width + x) * 3
			if !bytes.Equal(f.Data[off:off+3], orig[off:off+3]) {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Fatal("blur did not modify any ROI pixels")
	}
}

func TestBlurROIUniformRegionStaysUniform(t *testing.T) {
	f := &media.VideoFrame{Width: 32, Height: 32, Data: make([]byte, 32*32*3)}
	for i := range f.Data {
		f.Data[i] = 128
	}

	BlurROI(f, Rect{X: 4, Y: 4, W: 24, H: 24}, 15)

	for i, v := range f.Data {
		if v != 128 {
			t.Fatalf("uniform frame changed at byte %d: got %d", i, v)
		}
	}
}

func TestBlurROIClipsOutOfBoundsRect(t *testing.T) {
	f := gradientFrame(20, 20)

	// Must not panic.
	BlurROI(f, Rect{X: -5, Y: -5, W: 40, H: 40}, 9)
	BlurROI(f, Rect{X: 18, Y: 18, W: 10, H: 10}, 9)
	BlurROI(f, Rect{X: 25, Y: 25, W: 5, H: 5}, 9)
}

func TestPaddedRectClipsToFrame(t *testing.T) {
	d := Detection{X: 0, Y: 0, W: 100, H: 100, Score: 0.9}
	r := d.PaddedRect(0.1, 640, 480)

	if r.X != 0 || r.Y != 0 {
		t.Fatalf("expected origin clip, got (%d,%d)", r.X, r.Y)
	}
	if r.X+r.W > 639 || r.Y+r.H > 479 {
		t.Fatalf("rect exceeds frame: %+v", r)
	}
	// 10 px of padding on the far edges survives the clip.
	if r.W != 110 || r.H != 110 {
		t.Fatalf("expected 110x110, got %dx%d", r.W, r.H)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, size := range []int{3, 11, 51} {
		k := gaussianKernel(size)
		if len(k) != size {
			t.Fatalf("size %d: got %d taps", size, len(k))
		}
		sum := 0.0
		for _, v := range k {
			sum += v
		}
		if sum < 0.999 || sum > 1.001 {
			t.Fatalf("size %d: kernel sum %f", size, sum)
		}
		if k[size/2] <= k[0] {
			t.Fatalf("size %d: center tap not dominant", size)
		}
	}
}
