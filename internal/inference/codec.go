package inference

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/veilcast/veilcast/internal/media"
)

// jpegQuality for frames shipped to the sidecars. Detection quality is
// insensitive to mild compression and the encode cost beats shipping raw
// BGR over the socket.
const jpegQuality = 85

// encodeFrameJPEG converts a BGR24 frame to JPEG bytes.
func encodeFrameJPEG(frame *media.VideoFrame, quality int) ([]byte, error) {
	if len(frame.Data) < frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame data truncated: %d bytes for %dx%d", len(frame.Data), frame.Width, frame.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i, j := 0, 0; i < frame.Width*frame.Height*3; i, j = i+3, j+4 {
		img.Pix[j] = frame.Data[i+2]
		img.Pix[j+1] = frame.Data[i+1]
		img.Pix[j+2] = frame.Data[i]
		img.Pix[j+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// scaleFrame downsamples a frame so its longer side is at most maxSide,
// returning the scaled frame and the factor to map detection coordinates
// back to the original. Nearest-neighbor is enough for detection input.
func scaleFrame(frame *media.VideoFrame, maxSide int) (*media.VideoFrame, float64) {
	longer := frame.Width
	if frame.Height > longer {
		longer = frame.Height
	}
	if maxSide <= 0 || longer <= maxSide {
		return frame, 1.0
	}

	factor := float64(longer) / float64(maxSide)
	w := int(float64(frame.Width) / factor)
	h := int(float64(frame.Height) / factor)

	out := &media.VideoFrame{
		Width:    w,
		Height:   h,
		PTS:      frame.PTS,
		Sequence: frame.Sequence,
		Data:     make([]byte, w*h*3),
	}
	for y := 0; y < h; y++ {
		srcY := int(float64(y) * factor)
		for x := 0; x < w; x++ {
			srcX := int(float64(x) * factor)
			src := (srcY*frame.Width + srcX) * 3
			dst := (y*w + x) * 3
			copy(out.Data[dst:dst+3], frame.Data[src:src+3])
		}
	}
	return out, factor
}
