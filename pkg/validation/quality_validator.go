package validation

import (
	"fmt"
	"math"

	"go-ocr-enhancer/pkg/models"
)

// QualityThresholds defines configurable thresholds for input quality checks.
// Brightness and contrast are on the 0-255 grey scale.
type QualityThresholds struct {
	// Sharpness thresholds
	MinLaplacianVariance float64
	MaxLaplacianVariance float64

	// Exposure thresholds
	MinBrightness float64
	MaxBrightness float64
	MinContrast   float64

	// Skew threshold (in degrees)
	MaxSkewAngle float64

	// Resolution thresholds
	MinWidth  int
	MinHeight int
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 100.0,  // below this text edges are soft
		MaxLaplacianVariance: 2000.0, // above this the image is dominated by noise
		MinBrightness:        80.0,
		MaxBrightness:        220.0,
		MinContrast:          30.0,
		MaxSkewAngle:         5.0,
		MinWidth:             200,
		MinHeight:            32,
	}
}

// QualityValidator inspects input metrics and suggests an enhancement method
// for every issue it finds
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{
		thresholds: DefaultQualityThresholds(),
	}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds in use
func (qv *QualityValidator) Thresholds() QualityThresholds {
	return qv.thresholds
}

// Validate returns the quality issues of an image in a fixed order:
// resolution, exposure, contrast, sharpness, skew.
func (qv *QualityValidator) Validate(m models.ImageMetrics) []models.QualityIssue {
	t := qv.thresholds
	var issues []models.QualityIssue

	// 1. Resolution
	if m.Width < t.MinWidth || m.Height < t.MinHeight {
		issues = append(issues, models.QualityIssue{
			Type:        "low_resolution",
			Message:     fmt.Sprintf("Image is %dx%d; small glyphs are hard to recognize.", m.Width, m.Height),
			Severity:    "warning",
			ActualValue: float64(m.Width * m.Height),
			Threshold:   float64(t.MinWidth * t.MinHeight),
		})
	}

	// 2. Exposure
	if m.Brightness < t.MinBrightness {
		issues = append(issues, models.QualityIssue{
			Type:            "too_dark",
			Message:         "Image is too dark.",
			Severity:        "error",
			ActualValue:     m.Brightness,
			Threshold:       t.MinBrightness,
			SuggestedMethod: "brightness",
		})
	} else if m.Brightness > t.MaxBrightness {
		issues = append(issues, models.QualityIssue{
			Type:            "too_bright",
			Message:         "Image is washed out.",
			Severity:        "warning",
			ActualValue:     m.Brightness,
			Threshold:       t.MaxBrightness,
			SuggestedMethod: "contrast",
		})
	}

	// 3. Contrast
	if m.Contrast < t.MinContrast {
		issues = append(issues, models.QualityIssue{
			Type:            "low_contrast",
			Message:         "Text and background are close in tone.",
			Severity:        "warning",
			ActualValue:     m.Contrast,
			Threshold:       t.MinContrast,
			SuggestedMethod: "clahe",
		})
	}

	// 4. Sharpness
	if m.LaplacianVar < t.MinLaplacianVariance {
		issues = append(issues, models.QualityIssue{
			Type:            "blurry",
			Message:         "Image is blurry.",
			Severity:        "error",
			ActualValue:     m.LaplacianVar,
			Threshold:       t.MinLaplacianVariance,
			SuggestedMethod: "sharpen",
		})
	} else if m.LaplacianVar > t.MaxLaplacianVariance {
		issues = append(issues, models.QualityIssue{
			Type:            "noisy",
			Message:         "Image has strong high-frequency noise.",
			Severity:        "warning",
			ActualValue:     m.LaplacianVar,
			Threshold:       t.MaxLaplacianVariance,
			SuggestedMethod: "denoise_median",
		})
	}

	// 5. Skew
	if m.SkewAngle != nil && math.Abs(*m.SkewAngle) > t.MaxSkewAngle {
		issues = append(issues, models.QualityIssue{
			Type:        "skewed",
			Message:     fmt.Sprintf("Text lines are rotated by %.1f degrees.", *m.SkewAngle),
			Severity:    "warning",
			ActualValue: *m.SkewAngle,
			Threshold:   t.MaxSkewAngle,
		})
	}

	return issues
}

// HasCriticalIssues reports whether any issue has error severity
func HasCriticalIssues(issues []models.QualityIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}

// SuggestedMethods lists the distinct methods suggested by issues, in order
func SuggestedMethods(issues []models.QualityIssue) []string {
	var methods []string
	seen := make(map[string]bool)
	for _, issue := range issues {
		if issue.SuggestedMethod != "" && !seen[issue.SuggestedMethod] {
			seen[issue.SuggestedMethod] = true
			methods = append(methods, issue.SuggestedMethod)
		}
	}
	return methods
}
