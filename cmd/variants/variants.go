package main

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

const (
	brightnessDelta = -60
	blurRadius      = 20
	noiseStdDev     = 90.0
)

// variant is one degraded copy of a clear dataset image
type variant struct {
	Dir    string
	Suffix string
	Apply  func(img image.Image, rng *rand.Rand) *image.NRGBA
}

var variants = []variant{
	{Dir: "B_lowlight", Suffix: "_B_lowlight", Apply: func(img image.Image, _ *rand.Rand) *image.NRGBA {
		return lowLight(img, brightnessDelta)
	}},
	{Dir: "C_blur", Suffix: "_C_blur", Apply: func(img image.Image, _ *rand.Rand) *image.NRGBA {
		return blur(img, blurRadius)
	}},
	{Dir: "D_complex", Suffix: "_D_complex", Apply: func(img image.Image, rng *rand.Rand) *image.NRGBA {
		return addNoise(img, noiseStdDev, rng)
	}},
}

// lowLight shifts every channel by delta. Results below zero are reflected
// to their magnitude and results above 255 saturate.
func lowLight(img image.Image, delta int) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: shiftAbs(c.R, delta),
			G: shiftAbs(c.G, delta),
			B: shiftAbs(c.B, delta),
			A: c.A,
		}
	})
}

func shiftAbs(v uint8, delta int) uint8 {
	s := int(v) + delta
	if s < 0 {
		s = -s
	}
	return uint8(min(s, 255))
}

// blurSigma is the sigma a Gaussian blur derives from a (2r+1) sized kernel
// when no sigma is given.
func blurSigma(radius int) float64 {
	k := float64(2*radius + 1)
	return 0.3*((k-1)*0.5-1) + 0.8
}

func blur(img image.Image, radius int) *image.NRGBA {
	return imaging.Blur(img, blurSigma(radius))
}

// addNoise adds zero-mean Gaussian noise with the given deviation to every
// colour sample and clips to [0,255].
func addNoise(img image.Image, stdDev float64, rng *rand.Rand) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(dst.Pix[i+c]) + rng.NormFloat64()*stdDev
			dst.Pix[i+c] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return dst
}
