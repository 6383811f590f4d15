// Package vision provides face detection and blurring for the video stage.
// The neural models live in external sidecars reached over HTTP; this package
// defines the contracts the pipeline depends on and the pixel-level work
// (blurring, cropping) done locally.
package vision

import (
	"context"

	"github.com/veilcast/veilcast/internal/media"
)

// Point is one facial landmark in frame coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one face reported by the detector, in frame coordinates.
type Detection struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	W         int     `json:"w"`
	H         int     `json:"h"`
	Score     float64 `json:"score"`
	Landmarks []Point `json:"landmarks,omitempty"`
}

// Area returns the detection's bounding box area in pixels.
func (d Detection) Area() int {
	return d.W * d.H
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

// PaddedRect expands the detection by a fraction of its smaller side and
// clips the result to the frame. This is the region that gets blurred; the
// padding covers hairline and jaw pixels the detector's tight box misses.
func (d Detection) PaddedRect(ratio float64, frameW, frameH int) Rect {
	pad := int(float64(min(d.W, d.H)) * ratio)

	x := max(d.X-pad, 0)
	y := max(d.Y-pad, 0)
	x2 := min(d.X+d.W+pad, frameW-1)
	y2 := min(d.Y+d.H+pad, frameH-1)

	return Rect{X: x, Y: y, W: x2 - x, H: y2 - y}
}

// Detector finds faces in a decoded frame. Implementations are not required
// to be safe for concurrent use; the pipeline gives each consumer its own
// instance.
type Detector interface {
	// SetInputSize tells the detector the frame dimensions. Called once per
	// session and again whenever the dimensions change mid-stream.
	SetInputSize(width, height int)

	// Detect returns all faces found in the frame.
	Detect(ctx context.Context, frame *media.VideoFrame) ([]Detection, error)
}

// Recognizer turns a detected face into a feature vector comparable against
// the consent database. Alignment and cropping happen behind this interface,
// driven by the detection's landmarks.
type Recognizer interface {
	Feature(ctx context.Context, frame *media.VideoFrame, det Detection) ([]float32, error)
}

// ConsentMatcher decides whether a face feature belongs to someone who has
// given consent. Implemented by the consent database.
type ConsentMatcher interface {
	Match(feature []float32) (name string, ok bool)
}
