package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	apperrors "go-ocr-enhancer/internal/errors"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImage decodes any registered format (PNG, JPEG, GIF, BMP, TIFF, WebP).
// Failures are reported as decode errors.
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", apperrors.NewDecodeError("input is not a supported image", err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, "", apperrors.NewDecodeError("image has no pixels", nil)
	}
	return img, format, nil
}

// EncodePNG encodes img losslessly for storage.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
