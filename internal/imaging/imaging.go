// Package imaging holds the frame-level image helpers shared by providers,
// frame sources and renderers.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// JPEGQuality is used for every encoded frame and crop.
const JPEGQuality = 90

// Decode parses JPEG or PNG bytes.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return img, nil
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Size returns the width and height of img.
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Crop copies the region box (frame coordinates) into a new image whose
// origin is (0,0). The box is clipped to the frame first.
func Crop(img image.Image, box domain.Box) (*image.RGBA, error) {
	w, h := Size(img)
	box = box.Clip(w, h)
	if box.Empty() {
		return nil, fmt.Errorf("crop %v: empty region", box)
	}

	src := box.Rect().Add(img.Bounds().Min)

	dst := image.NewRGBA(image.Rect(0, 0, box.Width(), box.Height()))
	draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
	return dst, nil
}

// Clone returns a mutable RGBA copy of img with origin (0,0).
func Clone(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// Fit scales img down so neither side exceeds maxSize, keeping aspect ratio.
func Fit(img image.Image, maxSize int) image.Image {
	w, h := Size(img)
	if w <= maxSize && h <= maxSize {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxSize
		nh = h * maxSize / w
	} else {
		nh = maxSize
		nw = w * maxSize / h
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
