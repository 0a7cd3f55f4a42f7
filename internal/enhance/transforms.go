package enhance

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	brightnessDelta = 40.0

	contrastAlpha = 1.4
	contrastBeta  = 10.0
)

// gaussian5x5 is the outer product of the binomial row [1 4 6 4 1].
var gaussian5x5 = [25]float64{
	1, 4, 6, 4, 1,
	4, 16, 24, 16, 4,
	6, 24, 36, 24, 6,
	4, 16, 24, 16, 4,
	1, 4, 6, 4, 1,
}

var gaussian3x3 = [9]float64{
	1, 2, 1,
	2, 4, 2,
	1, 2, 1,
}

var sharpenKernel = [9]float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

var contrastLUT = func() [256]uint8 {
	var lut [256]uint8
	for i := range lut {
		lut[i] = saturate(contrastAlpha*float64(i) + contrastBeta)
	}
	return lut
}()

func identity(src *image.NRGBA) *image.NRGBA {
	return imaging.Clone(src)
}

// adjustBrightness raises the HSV value channel, leaving hue and saturation alone.
func adjustBrightness(src *image.NRGBA) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		h, s, v := colorful.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
		}.Hsv()
		v = math.Min(1, v+brightnessDelta/255)
		r, g, b := colorful.Hsv(h, s, v).Clamped().RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: c.A}
	})
}

func adjustContrast(src *image.NRGBA) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: contrastLUT[c.R],
			G: contrastLUT[c.G],
			B: contrastLUT[c.B],
			A: c.A,
		}
	})
}

func gaussianDenoise(src *image.NRGBA) *image.NRGBA {
	return imaging.Convolve5x5(src, gaussian5x5, &imaging.ConvolveOptions{Normalize: true})
}

func sharpen(src *image.NRGBA) *image.NRGBA {
	return imaging.Convolve3x3(src, sharpenKernel, nil)
}

// saturate rounds half to even and clamps into the 8-bit range.
func saturate(v float64) uint8 {
	v = math.RoundToEven(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
