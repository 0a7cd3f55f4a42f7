// Package analyzer computes image quality metrics for the input and output of
// each enhancement run, and provides the worker pool used for batch runs.
package analyzer

import (
	"image"
	"image/draw"

	"go-ocr-enhancer/pkg/models"
)

type qualityAnalyzer struct {
	calc MetricsCalculator
}

// NewQualityAnalyzer creates an analyzer backed by the gonum metrics calculator
func NewQualityAnalyzer() QualityAnalyzer {
	return &qualityAnalyzer{calc: NewMetricsCalculator()}
}

// Measure implements QualityAnalyzer.
func (a *qualityAnalyzer) Measure(img image.Image) models.ImageMetrics {
	b := img.Bounds()
	if b.Empty() {
		return models.ImageMetrics{}
	}
	gray := toGray(img)

	return models.ImageMetrics{
		Width:        b.Dx(),
		Height:       b.Dy(),
		Brightness:   a.calc.CalculateBrightness(gray),
		Contrast:     a.calc.CalculateContrast(gray),
		LaplacianVar: a.calc.CalculateLaplacianVariance(gray),
		Saturation:   a.calc.CalculateSaturation(img),
		SkewAngle:    a.calc.DetectSkew(gray),
	}
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
