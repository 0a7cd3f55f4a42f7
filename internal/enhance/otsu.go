package enhance

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const otsuEpsilon = 1.1920929e-07

// thresholdOtsu converts to grayscale, smooths with a 3x3 Gaussian and
// binarizes at the Otsu threshold. The result is gray encoded as RGB.
func thresholdOtsu(src *image.NRGBA) *image.NRGBA {
	gray := imaging.Grayscale(src)
	smoothed := imaging.Convolve3x3(gray, gaussian3x3, &imaging.ConvolveOptions{Normalize: true})
	t := otsuThreshold(imaging.Histogram(smoothed))

	return imaging.AdjustFunc(smoothed, func(c color.NRGBA) color.NRGBA {
		var v uint8
		if int(c.R) > t {
			v = 255
		}
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// otsuThreshold returns the level that maximizes between-class variance for
// a normalized 256-bin histogram. Samples strictly above it are foreground.
func otsuThreshold(hist [256]float64) int {
	var total, mean float64
	for i, p := range hist {
		total += p
		mean += float64(i) * p
	}
	if total <= 0 {
		return 0
	}
	mean /= total

	var q1, sum1 float64
	best, bestVariance := 0, 0.0
	for i, p := range hist {
		p /= total
		q1 += p
		sum1 += float64(i) * p
		q2 := 1 - q1
		if q1 < otsuEpsilon || q2 < otsuEpsilon {
			continue
		}
		mu1 := sum1 / q1
		mu2 := (mean - sum1) / q2
		d := mu1 - mu2
		if v := q1 * q2 * d * d; v > bestVariance {
			bestVariance = v
			best = i
		}
	}
	return best
}
