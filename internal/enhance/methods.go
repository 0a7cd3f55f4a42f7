// Package enhance maps enhancement method identifiers to deterministic image
// transforms. The method set is closed: every identifier is registered in the
// table below and anything else is rejected.
package enhance

import (
	"image"
	"strings"

	apperrors "go-ocr-enhancer/internal/errors"
	"go-ocr-enhancer/pkg/models"

	"github.com/disintegration/imaging"
)

// Method identifies one enhancement transform
type Method string

const (
	MethodOriginal        Method = "original"
	MethodBrightness      Method = "brightness"
	MethodContrast        Method = "contrast"
	MethodCLAHE           Method = "clahe"
	MethodDenoiseGaussian Method = "denoise_gaussian"
	MethodDenoiseMedian   Method = "denoise_median"
	MethodSharpen         Method = "sharpen"
	MethodThreshOtsu      Method = "thresh_otsu"
)

// Transform produces a new image from src. Implementations never write to src.
type Transform func(src *image.NRGBA) *image.NRGBA

type methodEntry struct {
	method    Method
	label     string
	transform Transform
}

// methodTable is the display-ordered registry of every supported method.
var methodTable = []methodEntry{
	{MethodOriginal, "Original", identity},
	{MethodBrightness, "Brightness", adjustBrightness},
	{MethodContrast, "Contrast", adjustContrast},
	{MethodCLAHE, "CLAHE (Local Contrast)", equalizeLocalContrast},
	{MethodDenoiseGaussian, "Denoise (Gaussian)", gaussianDenoise},
	{MethodDenoiseMedian, "Denoise (Median)", medianDenoise},
	{MethodSharpen, "Sharpen", sharpen},
	{MethodThreshOtsu, "Threshold (Otsu)", thresholdOtsu},
}

var transforms = func() map[Method]Transform {
	m := make(map[Method]Transform, len(methodTable))
	for _, e := range methodTable {
		m[e.method] = e.transform
	}
	return m
}()

// Methods returns the supported methods in display order
func Methods() []models.MethodInfo {
	out := make([]models.MethodInfo, len(methodTable))
	for i, e := range methodTable {
		out[i] = models.MethodInfo{ID: string(e.method), Label: e.label}
	}
	return out
}

// ParseMethod resolves an identifier, trimming surrounding whitespace.
func ParseMethod(id string) (Method, error) {
	m := Method(strings.TrimSpace(id))
	if _, ok := transforms[m]; !ok {
		return "", apperrors.NewUnsupportedMethodError(id)
	}
	return m, nil
}

// Enhance applies method to img and returns a newly allocated image.
// The input is never modified, including for MethodOriginal.
func Enhance(img image.Image, method Method) (*image.NRGBA, error) {
	transform, ok := transforms[method]
	if !ok {
		return nil, apperrors.NewUnsupportedMethodError(string(method))
	}
	return transform(toOpaqueNRGBA(img)), nil
}

// toOpaqueNRGBA copies img into a zero-origin NRGBA buffer and drops alpha.
func toOpaqueNRGBA(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
