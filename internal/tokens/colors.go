package tokens

import (
	"image"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/phrazzld/tokensmith/internal/domain"
)

// ColorSettings tunes dominant color extraction.
type ColorSettings struct {
	MaxWidth   int     `json:"maxWidth"`
	Clusters   int     `json:"clusters"`
	Iterations int     `json:"iterations"`
	MinDeltaE  float64 `json:"minDeltaE"`
	Top        int     `json:"top"`
	Seed       uint64  `json:"seed"`
}

// DefaultColorSettings are the settings used by the pipeline.
var DefaultColorSettings = ColorSettings{
	MaxWidth:   256,
	Clusters:   12,
	Iterations: 10,
	MinDeltaE:  3,
	Top:        8,
	Seed:       42,
}

type rgb [3]float64

func sqDist(a, b rgb) float64 {
	dr, dg, db := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dr*dr + dg*dg + db*db
}

// ExtractColors returns the dominant colors of img in OKLCH, most populous
// first, with perceptual near-duplicates removed.
func ExtractColors(img image.Image, s ColorSettings) []domain.OKLCH {
	small := resize(img, s.MaxWidth)
	b := small.Bounds()
	pixels := make([]rgb, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := small.RGBAAt(x, y)
			pixels = append(pixels, rgb{float64(c.R), float64(c.G), float64(c.B)})
		}
	}

	centers, counts := kmeans(pixels, s.Clusters, s.Iterations, s.Seed)

	order := make([]int, len(centers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	var kept []colorful.Color
	out := make([]domain.OKLCH, 0, s.Top)
	for _, i := range order {
		if counts[i] == 0 || len(out) == s.Top {
			break
		}
		c := colorful.Color{R: centers[i][0] / 255, G: centers[i][1] / 255, B: centers[i][2] / 255}
		duplicate := false
		for _, k := range kept {
			if c.DistanceCIEDE2000(k)*100 < s.MinDeltaE {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, c)

		l, ch, h := c.OkLch()
		if math.IsNaN(h) {
			h = 0
		}
		out = append(out, domain.OKLCH{
			Space: "oklch",
			L:     round(l, 3),
			C:     round(ch, 3),
			H:     round(h, 1),
		})
	}
	return out
}

// kmeans clusters pixels with k-means++ seeding from a fixed seed, so the
// same image always yields the same palette.
func kmeans(pixels []rgb, k, iterations int, seed uint64) ([]rgb, []int) {
	if len(pixels) == 0 {
		return nil, nil
	}
	if k > len(pixels) {
		k = len(pixels)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	centers := make([]rgb, 0, k)
	centers = append(centers, pixels[rng.IntN(len(pixels))])
	dist := make([]float64, len(pixels))
	for len(centers) < k {
		var total float64
		for i, p := range pixels {
			d := sqDist(p, centers[0])
			for _, c := range centers[1:] {
				if dd := sqDist(p, c); dd < d {
					d = dd
				}
			}
			dist[i] = d
			total += d
		}
		if total == 0 {
			break
		}
		target := rng.Float64() * total
		next := len(pixels) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 {
				next = i
				break
			}
		}
		centers = append(centers, pixels[next])
	}

	assign := make([]int, len(pixels))
	counts := make([]int, len(centers))
	for iter := 0; iter < iterations; iter++ {
		for i := range counts {
			counts[i] = 0
		}
		sums := make([]rgb, len(centers))
		for i, p := range pixels {
			best, bestD := 0, math.Inf(1)
			for j, c := range centers {
				if d := sqDist(p, c); d < bestD {
					best, bestD = j, d
				}
			}
			assign[i] = best
			counts[best]++
			sums[best][0] += p[0]
			sums[best][1] += p[1]
			sums[best][2] += p[2]
		}
		moved := false
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			n := float64(counts[j])
			next := rgb{sums[j][0] / n, sums[j][1] / n, sums[j][2] / n}
			if next != centers[j] {
				moved = true
			}
			centers[j] = next
		}
		if !moved {
			break
		}
	}
	return centers, counts
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
