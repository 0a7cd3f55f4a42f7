package ocr

import (
	"context"
	stderrors "errors"
	"image"
	"image/draw"
	"strings"
	"time"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/pkg/models"
)

// Recognizer runs one engine with a fixed configuration.
type Recognizer struct {
	engine Engine
	config EngineConfig
}

// NewRecognizer creates a recognizer for engine using cfg on every call
func NewRecognizer(engine Engine, cfg EngineConfig) *Recognizer {
	return &Recognizer{engine: engine, config: cfg}
}

// Config returns the engine configuration used for every call
func (r *Recognizer) Config() EngineConfig {
	return r.config
}

// Recognize converts img to greyscale and delegates to the engine.
// ProcessingMs covers the engine call only, not the conversion.
func (r *Recognizer) Recognize(ctx context.Context, img image.Image) (models.RecognitionResult, error) {
	gray := toGray(img)

	start := time.Now()
	text, err := r.engine.Recognize(ctx, gray, r.config)
	elapsed := time.Since(start)
	if err != nil {
		return models.RecognitionResult{}, classify(ctx, err)
	}

	return models.RecognitionResult{
		Text:         strings.TrimSpace(text),
		ProcessingMs: float64(elapsed.Nanoseconds()) / float64(time.Millisecond),
	}, nil
}

func classify(ctx context.Context, err error) error {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	if ctx.Err() != nil {
		return apperrors.NewTimeoutError("recognition did not finish in time", err)
	}
	return apperrors.NewRecognitionError("recognition engine failed", err)
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
