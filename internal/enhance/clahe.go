package enhance

import (
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	claheClipLimit = 2.0
	claheGrid      = 8
)

// equalizeLocalContrast runs contrast-limited adaptive histogram equalization
// on the lightness channel of the Lab representation, keeping chroma as is.
func equalizeLocalContrast(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}

	lightness := make([]uint8, w*h)
	chroma := make([][2]float64, w*h)
	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < w; x++ {
				i := y*src.Stride + x*4
				l, a, bb := colorful.Color{
					R: float64(src.Pix[i]) / 255,
					G: float64(src.Pix[i+1]) / 255,
					B: float64(src.Pix[i+2]) / 255,
				}.Lab()
				lightness[y*w+x] = saturate(l * 255)
				chroma[y*w+x] = [2]float64{a, bb}
			}
		}
	})

	equalized := clahe(lightness, w, h, claheClipLimit, claheGrid, claheGrid)

	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			for x := 0; x < w; x++ {
				k := y*w + x
				r, g, bl := colorful.Lab(float64(equalized[k])/255, chroma[k][0], chroma[k][1]).Clamped().RGB255()
				i := y*dst.Stride + x*4
				dst.Pix[i] = r
				dst.Pix[i+1] = g
				dst.Pix[i+2] = bl
				dst.Pix[i+3] = src.Pix[y*src.Stride+x*4+3]
			}
		}
	})
	return dst
}

// clahe equalizes an 8-bit plane of size w x h using a gridX x gridY tile grid.
// Each output sample is bilinearly interpolated between the lookup tables of
// the four nearest tile centres.
func clahe(plane []uint8, w, h int, clipLimit float64, gridX, gridY int) []uint8 {
	tilesX := min(gridX, w)
	tilesY := min(gridY, h)

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := 0; ty < tilesY; ty++ {
		y0, y1 := ty*h/tilesY, (ty+1)*h/tilesY
		for tx := 0; tx < tilesX; tx++ {
			x0, x1 := tx*w/tilesX, (tx+1)*w/tilesX
			var hist [256]int
			for y := y0; y < y1; y++ {
				row := plane[y*w+x0 : y*w+x1]
				for _, v := range row {
					hist[v]++
				}
			}
			luts[ty*tilesX+tx] = tileLUT(hist, (x1-x0)*(y1-y0), clipLimit)
		}
	}

	out := make([]uint8, len(plane))
	parallelRows(h, func(startY, endY int) {
		for y := startY; y < endY; y++ {
			fy := (float64(y)+0.5)*float64(tilesY)/float64(h) - 0.5
			ty1 := int(math.Floor(fy))
			wy := fy - float64(ty1)
			ty2 := clampInt(ty1+1, 0, tilesY-1)
			ty1 = clampInt(ty1, 0, tilesY-1)

			for x := 0; x < w; x++ {
				fx := (float64(x)+0.5)*float64(tilesX)/float64(w) - 0.5
				tx1 := int(math.Floor(fx))
				wx := fx - float64(tx1)
				tx2 := clampInt(tx1+1, 0, tilesX-1)
				tx1 = clampInt(tx1, 0, tilesX-1)

				v := plane[y*w+x]
				top := (1-wx)*float64(luts[ty1*tilesX+tx1][v]) + wx*float64(luts[ty1*tilesX+tx2][v])
				bottom := (1-wx)*float64(luts[ty2*tilesX+tx1][v]) + wx*float64(luts[ty2*tilesX+tx2][v])
				out[y*w+x] = saturate((1-wy)*top + wy*bottom)
			}
		}
	})
	return out
}

// tileLUT clips the histogram at clipLimit times the uniform bin height,
// spreads the clipped excess back over all bins and returns the scaled CDF.
func tileLUT(hist [256]int, area int, clipLimit float64) [256]uint8 {
	var lut [256]uint8
	if area <= 0 {
		return lut
	}

	if clipLimit > 0 {
		limit := max(int(clipLimit*float64(area)/256), 1)
		excess := 0
		for i := range hist {
			if hist[i] > limit {
				excess += hist[i] - limit
				hist[i] = limit
			}
		}

		batch := excess / 256
		residual := excess - batch*256
		for i := range hist {
			hist[i] += batch
		}
		if residual > 0 {
			step := max(256/residual, 1)
			for i := 0; i < 256 && residual > 0; i += step {
				hist[i]++
				residual--
			}
		}
	}

	scale := 255 / float64(area)
	sum := 0
	for i := range hist {
		sum += hist[i]
		lut[i] = saturate(float64(sum) * scale)
	}
	return lut
}
