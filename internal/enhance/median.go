package enhance

import (
	"image"
	"slices"
)

const medianRadius = 2 // 5x5 window

// medianDenoise replaces every sample with the median of its 5x5
// neighbourhood, per channel. Borders are replicated.
func medianDenoise(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	const window = (2*medianRadius + 1) * (2*medianRadius + 1)

	parallelRows(h, func(startY, endY int) {
		var samples [3][window]uint8
		for y := startY; y < endY; y++ {
			for x := 0; x < w; x++ {
				n := 0
				for dy := -medianRadius; dy <= medianRadius; dy++ {
					sy := clampInt(y+dy, 0, h-1)
					row := src.Pix[sy*src.Stride:]
					for dx := -medianRadius; dx <= medianRadius; dx++ {
						off := clampInt(x+dx, 0, w-1) * 4
						samples[0][n] = row[off]
						samples[1][n] = row[off+1]
						samples[2][n] = row[off+2]
						n++
					}
				}

				d := dst.Pix[y*dst.Stride+x*4 : y*dst.Stride+x*4+4]
				for c := 0; c < 3; c++ {
					s := samples[c][:]
					slices.Sort(s)
					d[c] = s[window/2]
				}
				d[3] = src.Pix[y*src.Stride+x*4+3]
			}
		}
	})
	return dst
}
