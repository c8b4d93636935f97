package tokens

import (
	"math"
	"sort"
)

// Design scales measurements are snapped to.
var (
	SpacingScale = []float64{4, 8, 12, 16, 24, 32, 48, 64}
	RadiusScale  = []float64{0, 4, 6, 8, 12, 16, 24, 32}
	StrokeScale  = []float64{1, 2, 3, 4, 6, 8}
)

// Quantize snaps every value to the nearest scale step (ties go to the
// smaller step) and returns the distinct steps in ascending order. NaN and
// infinite values are ignored.
func Quantize(values, scale []float64) []float64 {
	seen := make(map[float64]bool, len(scale))
	out := make([]float64, 0, len(scale))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || len(scale) == 0 {
			continue
		}
		best := scale[0]
		for _, s := range scale[1:] {
			if math.Abs(v-s) < math.Abs(v-best) {
				best = s
			}
		}
		if !seen[best] {
			seen[best] = true
			out = append(out, best)
		}
	}
	sort.Float64s(out)
	return out
}
