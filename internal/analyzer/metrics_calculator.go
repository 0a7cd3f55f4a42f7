package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"
)

// minSkewEdges is the number of edge pixels needed before a skew estimate is trusted.
const minSkewEdges = 10

// metricsCalculator implements MetricsCalculator with gonum statistics
type metricsCalculator struct {
	slicePool sync.Pool
}

// NewMetricsCalculator creates a new metrics calculator using Gonum
func NewMetricsCalculator() MetricsCalculator {
	return &metricsCalculator{
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// stripSums splits rows into one strip per CPU and adds up fn over each strip.
func stripSums(minY, maxY int, fn func(startY, endY int) float64) float64 {
	height := maxY - minY
	if height <= 0 {
		return 0
	}
	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	results := make(chan float64, numWorkers)
	var wg sync.WaitGroup
	for startY := minY; startY < maxY; startY += rowsPerWorker {
		endY := min(startY+rowsPerWorker, maxY)
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			results <- fn(startY, endY)
		}(startY, endY)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total float64
	for v := range results {
		total += v
	}
	return total
}

// CalculateBrightness returns the mean grey level in [0, 255]
func (mc *metricsCalculator) CalculateBrightness(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Empty() {
		return 0
	}
	total := stripSums(b.Min.Y, b.Max.Y, func(startY, endY int) float64 {
		var sum float64
		for y := startY; y < endY; y++ {
			row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
			for _, v := range row {
				sum += float64(v)
			}
		}
		return sum
	})
	return total / float64(b.Dx()*b.Dy())
}

// CalculateContrast returns the standard deviation of grey levels (RMS contrast)
func (mc *metricsCalculator) CalculateContrast(gray *image.Gray) float64 {
	b := gray.Bounds()
	n := b.Dx() * b.Dy()
	if n < 2 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()
	if cap(data) < n {
		data = make([]float64, 0, n)
	}
	for y := 0; y < b.Dy(); y++ {
		for _, v := range gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()] {
			data = append(data, float64(v))
		}
	}
	return stat.StdDev(data, nil)
}

// CalculateLaplacianVariance is the variance of the 4-neighbour Laplacian,
// a standard focus measure. Low values indicate blur.
func (mc *metricsCalculator) CalculateLaplacianVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()
	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	at := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x])
	}
	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			laplacian := -4*at(x, y) + at(x, y-1) + at(x, y+1) + at(x-1, y) + at(x+1, y)
			data = append(data, laplacian)
		}
	}
	return stat.Variance(data, nil)
}

// CalculateSaturation returns the mean HSV saturation in [0, 1]
func (mc *metricsCalculator) CalculateSaturation(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	total := stripSums(b.Min.Y, b.Max.Y, func(startY, endY int) float64 {
		var sum float64
		for y := startY; y < endY; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c, ok := colorful.MakeColor(img.At(x, y))
				if !ok {
					continue // fully transparent
				}
				_, s, _ := c.Hsv()
				sum += s
			}
		}
		return sum
	})
	return total / float64(b.Dx()*b.Dy())
}

// DetectSkew fits a line through strong Sobel edges and returns its angle
// in degrees, normalized to [-45, 45]. It returns nil when there are too
// few edges to say anything.
func (mc *metricsCalculator) DetectSkew(gray *image.Gray) *float64 {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()

	var xCoords, yCoords []float64
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := sobelX(gray, x, y)
			gy := sobelY(gray, x, y)

			magnitude := math.Sqrt(float64(gx*gx + gy*gy))
			if magnitude > 50 {
				xCoords = append(xCoords, float64(x))
				yCoords = append(yCoords, float64(y))
			}
		}
	}

	if len(xCoords) < minSkewEdges {
		return nil
	}
	angle := skewAngle(xCoords, yCoords)
	return &angle
}

func grayAt(gray *image.Gray, x, y int) int {
	return int(gray.Pix[y*gray.Stride+x])
}

func sobelX(gray *image.Gray, x, y int) int {
	return -grayAt(gray, x-1, y-1) + grayAt(gray, x+1, y-1) +
		-2*grayAt(gray, x-1, y) + 2*grayAt(gray, x+1, y) +
		-grayAt(gray, x-1, y+1) + grayAt(gray, x+1, y+1)
}

func sobelY(gray *image.Gray, x, y int) int {
	return -grayAt(gray, x-1, y-1) - 2*grayAt(gray, x, y-1) - grayAt(gray, x+1, y-1) +
		grayAt(gray, x-1, y+1) + 2*grayAt(gray, x, y+1) + grayAt(gray, x+1, y+1)
}

// skewAngle is the least squares slope of y over x, in degrees
func skewAngle(xCoords, yCoords []float64) float64 {
	if len(xCoords) < 2 || len(yCoords) < 2 {
		return 0
	}

	meanX := stat.Mean(xCoords, nil)
	meanY := stat.Mean(yCoords, nil)

	var sumXY, sumX2 float64
	for i := range xCoords {
		dx := xCoords[i] - meanX
		dy := yCoords[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
	}
	if math.Abs(sumX2) < 1e-10 {
		return 0
	}

	angle := math.Atan(sumXY/sumX2) * 180 / math.Pi
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return 0
	}
	for angle > 45 {
		angle -= 90
	}
	for angle < -45 {
		angle += 90
	}
	return angle
}
