package enhance

import (
	"runtime"
	"sync"
)

// parallelRows splits [0, height) into horizontal strips, one per CPU, and
// runs fn on each strip concurrently. fn must only write rows in its strip.
func parallelRows(height int, fn func(startY, endY int)) {
	if height <= 0 {
		return
	}
	numWorkers := runtime.NumCPU()
	if height < numWorkers {
		numWorkers = height
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for startY := 0; startY < height; startY += rowsPerWorker {
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			fn(startY, endY)
		}(startY, endY)
	}
	wg.Wait()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
