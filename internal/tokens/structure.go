package tokens

import (
	"math"

	"github.com/phrazzld/tokensmith/internal/domain"
)

// gridThreshold is the mean-intensity jump between adjacent columns (or rows)
// counted as a layout boundary.
const gridThreshold = 20

// detectGrid counts boundaries in the column and row projection histograms
// of a grayscale image. Both counts are at least 1.
func detectGrid(gray *plane) domain.Grid {
	colMeans := make([]float64, gray.w)
	rowMeans := make([]float64, gray.h)
	for y := 0; y < gray.h; y++ {
		for x := 0; x < gray.w; x++ {
			v := gray.at(x, y)
			colMeans[x] += v
			rowMeans[y] += v
		}
	}
	for x := range colMeans {
		colMeans[x] /= float64(gray.h)
	}
	for y := range rowMeans {
		rowMeans[y] /= float64(gray.w)
	}
	return domain.Grid{
		Columns: max(1, countJumps(colMeans)),
		Rows:    max(1, countJumps(rowMeans)),
	}
}

func countJumps(means []float64) int {
	n := 0
	for i := 1; i < len(means); i++ {
		if math.Abs(means[i]-means[i-1]) > gridThreshold {
			n++
		}
	}
	return n
}

// estimateElevation grades shadow depth from the mean absolute Laplacian of
// luminance: level 0 below 2, level 1 below 5, else level 2.
func estimateElevation(light *plane) domain.Elevation {
	if light.w < 3 || light.h < 3 {
		return domain.Elevation{}
	}
	var sum float64
	for y := 1; y < light.h-1; y++ {
		for x := 1; x < light.w-1; x++ {
			lap := light.at(x-1, y) + light.at(x+1, y) + light.at(x, y-1) + light.at(x, y+1) - 4*light.at(x, y)
			sum += math.Abs(lap)
		}
	}
	strength := sum / float64((light.w-2)*(light.h-2))

	level := 2
	switch {
	case strength < 2:
		level = 0
	case strength < 5:
		level = 1
	}
	return domain.Elevation{Level: level, ShadowStrength: round(strength, 2)}
}
