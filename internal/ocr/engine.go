// Package ocr adapts external text recognition engines behind a narrow
// interface and measures how long recognition takes.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strconv"
)

// Engine recognizes text in a greyscale image.
type Engine interface {
	Recognize(ctx context.Context, img *image.Gray, cfg EngineConfig) (string, error)
}

// EngineConfig holds the recognition settings passed to every engine call.
type EngineConfig struct {
	Language    string
	EngineMode  int
	PageSegMode int
}

// DefaultEngineConfig is English, default engine mode, single uniform text block.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Language:    "eng",
		EngineMode:  3,
		PageSegMode: 6,
	}
}

// String renders the mode flags the way tesseract accepts them.
func (c EngineConfig) String() string {
	return fmt.Sprintf("--oem %d --psm %d", c.EngineMode, c.PageSegMode)
}

// Args returns the command line flags for the tesseract binary.
func (c EngineConfig) Args() []string {
	return []string{
		"-l", c.Language,
		"--oem", strconv.Itoa(c.EngineMode),
		"--psm", strconv.Itoa(c.PageSegMode),
	}
}

func encodePNG(img *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
