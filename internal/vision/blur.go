package vision

import (
	"math"

	"github.com/veilcast/veilcast/internal/media"
)

// gaussianKernel builds a normalized 1-D Gaussian of the given odd size.
// Sigma follows the OpenCV convention for an unspecified sigma:
// 0.3*((ksize-1)*0.5 - 1) + 0.8.
func gaussianKernel(size int) []float64 {
	if size < 1 {
		size = 1
	}
	if size%2 == 0 {
		size++
	}

	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	twoSigmaSq := 2 * sigma * sigma

	k := make([]float64, size)
	half := size / 2
	sum := 0.0
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / twoSigmaSq)
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// BlurROI replaces the rectangle's pixels with a Gaussian blur of the given
// kernel size, in place. Pixels outside the rectangle are untouched. The
// blur is separable: one horizontal pass into a scratch buffer, one vertical
// pass back into the frame. Samples are clamped at the rectangle edges.
func BlurROI(frame *media.VideoFrame, roi Rect, kernelSize int) {
	if roi.W <= 0 || roi.H <= 0 {
		return
	}
	// Clip defensively; callers normally pass pre-clipped rects.
	if roi.X < 0 {
		roi.W += roi.X
		roi.X = 0
	}
	if roi.Y < 0 {
		roi.H += roi.Y
		roi.Y = 0
	}
	if roi.X+roi.W > frame.Width {
		roi.W = frame.Width - roi.X
	}
	if roi.Y+roi.H > frame.Height {
		roi.H = frame.Height - roi.Y
	}
	if roi.W <= 0 || roi.H <= 0 {
		return
	}

	k := gaussianKernel(kernelSize)
	half := len(k) / 2
	stride := frame.Width * 3

	// Horizontal pass: frame -> tmp.
	tmp := make([]float64, roi.W*roi.H*3)
	for y := 0; y < roi.H; y++ {
		rowOff := (roi.Y+y)*stride + roi.X*3
		for x := 0; x < roi.W; x++ {
			var b, g, r float64
			for i, w := range k {
				sx := x + i - half
				if sx < 0 {
					sx = 0
				} else if sx >= roi.W {
					sx = roi.W - 1
				}
				off := rowOff + sx*3
				b += w * float64(frame.Data[off])
				g += w * float64(frame.Data[off+1])
				r += w * float64(frame.Data[off+2])
			}
			t := (y*roi.W + x) * 3
			tmp[t] = b
			tmp[t+1] = g
			tmp[t+2] = r
		}
	}

	// Vertical pass: tmp -> frame.
	for y := 0; y < roi.H; y++ {
		rowOff := (roi.Y+y)*stride + roi.X*3
		for x := 0; x < roi.W; x++ {
			var b, g, r float64
			for i, w := range k {
				sy := y + i - half
				if sy < 0 {
					sy = 0
				} else if sy >= roi.H {
					sy = roi.H - 1
				}
				t := (sy*roi.W + x) * 3
				b += w * tmp[t]
				g += w * tmp[t+1]
				r += w * tmp[t+2]
			}
			off := rowOff + x*3
			frame.Data[off] = clampByte(b)
			frame.Data[off+1] = clampByte(g)
			frame.Data[off+2] = clampByte(r)
		}
	}
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}
