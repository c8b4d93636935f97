package tokens

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractColors(t *testing.T) {
	t.Parallel()

	colors := ExtractColors(twoTone(), DefaultColorSettings)
	require.Len(t, colors, 2)

	hues := []float64{colors[0].H, colors[1].H}
	sort.Float64s(hues)
	assert.InDelta(t, 29.2, hues[0], 1.5, "red")
	assert.InDelta(t, 264.1, hues[1], 1.5, "blue")
	for _, c := range colors {
		assert.Equal(t, "oklch", c.Space)
		assert.Equal(t, round(c.L, 3), c.L)
		assert.Equal(t, round(c.H, 1), c.H)
	}
}

func TestExtractColors_IsDeterministic(t *testing.T) {
	t.Parallel()

	img := cards()
	assert.Equal(t, ExtractColors(img, DefaultColorSettings), ExtractColors(img, DefaultColorSettings))
}

func TestExtractColors_DropsNearDuplicates(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 40, 10))
	draw.Draw(img, image.Rect(0, 0, 20, 10), &image.Uniform{color.RGBA{200, 40, 40, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(20, 0, 40, 10), &image.Uniform{color.RGBA{201, 40, 40, 255}}, image.Point{}, draw.Src)

	assert.Len(t, ExtractColors(img, DefaultColorSettings), 1)
}

func TestExtractColors_GrayHasZeroHue(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.Black}, image.Point{}, draw.Src)

	colors := ExtractColors(img, DefaultColorSettings)
	require.Len(t, colors, 1)
	assert.Equal(t, 0.0, colors[0].L)
	assert.False(t, math.IsNaN(colors[0].H))
}
