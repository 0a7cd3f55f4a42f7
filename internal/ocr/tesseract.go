package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	apperrors "go-ocr-enhancer/internal/errors"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine runs libtesseract in-process through gosseract. A fresh
// client is created per call so concurrent runs never share API state.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

// NewTesseractEngine creates a gosseract backed engine
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

type textResult struct {
	text string
	err  error
}

// Recognize implements Engine. The engine mode is fixed when libtesseract
// initializes and gosseract always uses the default, so cfg.EngineMode is
// not applied here.
func (e *TesseractEngine) Recognize(ctx context.Context, img *image.Gray, cfg EngineConfig) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	done := make(chan textResult, 1)
	go func() {
		text, err := e.recognize(data, cfg)
		done <- textResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", apperrors.NewTimeoutError("tesseract did not finish in time", ctx.Err())
	case res := <-done:
		return res.text, res.err
	}
}

func (e *TesseractEngine) recognize(data []byte, cfg EngineConfig) (string, error) {
	client := e.clientFactory()
	defer client.Close()

	if err := client.SetLanguage(cfg.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		if strings.Contains(err.Error(), "TessBaseAPI") {
			return "", apperrors.NewEngineUnavailableError("tesseract could not be initialized", err)
		}
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// AvailableLanguages lists the trained language data installed for libtesseract.
func AvailableLanguages() ([]string, error) {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, apperrors.NewEngineUnavailableError("tesseract language data not found", err)
	}
	return langs, nil
}
