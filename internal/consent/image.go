package consent

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Stray formats in the consent directory should load rather than fail;
	// webp shows up when captures are pre-processed by other tooling.
	_ "golang.org/x/image/webp"
	_ "image/png"

	"github.com/veilcast/veilcast/internal/media"
)

// loadFrame reads an image file and converts it to the pipeline's BGR24
// frame layout. Files larger than maxBytes are rejected before decoding.
func loadFrame(path string, maxBytes int64) (*media.VideoFrame, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat consent image: %w", err)
	}
	if maxBytes > 0 && fi.Size() > maxBytes {
		return nil, fmt.Errorf("consent image %s is %d bytes, limit %d", path, fi.Size(), maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening consent image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding consent image %s: %w", path, err)
	}

	return frameFromImage(img), nil
}

// frameFromImage converts any decoded image to a BGR24 frame.
func frameFromImage(img image.Image) *media.VideoFrame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	frame := &media.VideoFrame{
		Width:  w,
		Height: h,
		Data:   make([]byte, w*h*3),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			off := (y*w + x) * 3
			frame.Data[off] = byte(bl >> 8)
			frame.Data[off+1] = byte(g >> 8)
			frame.Data[off+2] = byte(r >> 8)
		}
	}
	return frame
}

// imageFromFrame converts a BGR24 frame (or a crop of one) back to an RGBA
// image for JPEG encoding.
func imageFromFrame(frame *media.VideoFrame, roi image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, roi.Dx(), roi.Dy()))
	stride := frame.Width * 3

	for y := 0; y < roi.Dy(); y++ {
		srcOff := (roi.Min.Y+y)*stride + roi.Min.X*3
		dstOff := y * img.Stride
		for x := 0; x < roi.Dx(); x++ {
			img.Pix[dstOff] = frame.Data[srcOff+2]   // R
			img.Pix[dstOff+1] = frame.Data[srcOff+1] // G
			img.Pix[dstOff+2] = frame.Data[srcOff]   // B
			img.Pix[dstOff+3] = 0xff
			srcOff += 3
			dstOff += 4
		}
	}
	return img
}

// writeJPEG encodes the image to path at the given quality.
func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
