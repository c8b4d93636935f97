package tokens

import (
	"math"
	"sort"
)

const (
	minGap            = 2
	maxGap            = 200
	maxSpacingSamples = 100
	minRadiusArea     = 200
	maxRadiusSamples  = 50
	maxStrokeRun      = 16
	maxStrokeSamples  = 200
)

// Measurements are raw pixel values before snapping to design scales.
type Measurements struct {
	Spacing      []float64 `json:"spacing"`
	BorderRadius []float64 `json:"borderRadius"`
	StrokeWidth  []float64 `json:"strokeWidth"`
}

type component struct {
	minX, minY, maxX, maxY int
	area                   int
}

func (c component) width() int  { return c.maxX - c.minX + 1 }
func (c component) height() int { return c.maxY - c.minY + 1 }

// otsuThreshold picks the gray level that maximizes between-class variance.
func otsuThreshold(gray *plane) float64 {
	var hist [256]int
	for _, v := range gray.v {
		i := int(v)
		if i > 255 {
			i = 255
		}
		hist[i]++
	}

	total := len(gray.v)
	var sumAll float64
	for i, n := range hist {
		sumAll += float64(i * n)
	}

	var sumBg, bestVar float64
	var wBg int
	best := 0
	for t := 0; t < 256; t++ {
		wBg += hist[t]
		if wBg == 0 {
			continue
		}
		wFg := total - wBg
		if wFg == 0 {
			break
		}
		sumBg += float64(t * hist[t])
		meanBg := sumBg / float64(wBg)
		meanFg := (sumAll - sumBg) / float64(wFg)
		between := float64(wBg) * float64(wFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if between > bestVar {
			bestVar = between
			best = t
		}
	}
	return float64(best)
}

// foreground binarizes gray at the Otsu threshold and treats the smaller
// class as foreground, so light-on-dark and dark-on-light layouts behave alike.
func foreground(gray *plane) []bool {
	t := otsuThreshold(gray)
	mask := make([]bool, len(gray.v))
	above := 0
	for i, v := range gray.v {
		if v > t {
			mask[i] = true
			above++
		}
	}
	if above*2 > len(mask) {
		for i := range mask {
			mask[i] = !mask[i]
		}
	}
	return mask
}

// components labels 8-connected foreground regions in scan order.
func components(mask []bool, w, h int) []component {
	seen := make([]bool, len(mask))
	var out []component
	var stack []int
	for start := range mask {
		if !mask[start] || seen[start] {
			continue
		}
		c := component{minX: w, minY: h, maxX: -1, maxY: -1}
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w
			c.area++
			c.minX, c.maxX = min(c.minX, x), max(c.maxX, x)
			c.minY, c.maxY = min(c.minY, y), max(c.maxY, y)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					j := ny*w + nx
					if mask[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		out = append(out, c)
	}
	return out
}

// measureLayout derives spacing from the gaps between neighbouring
// components, border radius from the perimeter of large components and
// stroke width from short foreground runs.
func measureLayout(gray *plane) Measurements {
	mask := foreground(gray)
	comps := components(mask, gray.w, gray.h)

	return Measurements{
		Spacing:      gaps(comps),
		BorderRadius: radii(comps),
		StrokeWidth:  strokes(mask, gray.w, gray.h),
	}
}

func gaps(comps []component) []float64 {
	var out []float64
	collect := func(sorted []component, gap func(a, b component) int) {
		for i := 1; i < len(sorted) && len(out) < maxSpacingSamples; i++ {
			if d := gap(sorted[i-1], sorted[i]); d > minGap && d < maxGap {
				out = append(out, float64(d))
			}
		}
	}

	byX := append([]component(nil), comps...)
	sort.SliceStable(byX, func(i, j int) bool { return byX[i].minX < byX[j].minX })
	collect(byX, func(a, b component) int { return b.minX - a.maxX })

	byY := append([]component(nil), comps...)
	sort.SliceStable(byY, func(i, j int) bool { return byY[i].minY < byY[j].minY })
	collect(byY, func(a, b component) int { return b.minY - a.maxY })

	return out
}

// radii treats each large component's bounding perimeter as the
// circumference of its corner circle.
func radii(comps []component) []float64 {
	var out []float64
	for _, c := range comps {
		if c.area < minRadiusArea {
			continue
		}
		perimeter := 2 * float64(c.width()+c.height())
		out = append(out, perimeter/(2*math.Pi))
		if len(out) == maxRadiusSamples {
			break
		}
	}
	return out
}

func strokes(mask []bool, w, h int) []float64 {
	var out []float64
	for y := 0; y < h && len(out) < maxStrokeSamples; y++ {
		run := 0
		for x := 0; x <= w; x++ {
			if x < w && mask[y*w+x] {
				run++
				continue
			}
			if run > 0 && run <= maxStrokeRun {
				out = append(out, float64(run))
				if len(out) == maxStrokeSamples {
					break
				}
			}
			run = 0
		}
	}
	return out
}
