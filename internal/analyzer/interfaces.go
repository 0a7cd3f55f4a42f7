package analyzer

import (
	"image"

	"go-ocr-enhancer/pkg/models"
)

// QualityAnalyzer measures how readable an image is likely to be
type QualityAnalyzer interface {
	Measure(img image.Image) models.ImageMetrics
}

// MetricsCalculator handles the individual metric computations
type MetricsCalculator interface {
	CalculateBrightness(gray *image.Gray) float64
	CalculateContrast(gray *image.Gray) float64
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateSaturation(img image.Image) float64
	DetectSkew(gray *image.Gray) *float64
}
