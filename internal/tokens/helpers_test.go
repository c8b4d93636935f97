package tokens

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// twoTone is a 100x50 image, left half red and right half blue.
func twoTone() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	draw.Draw(img, image.Rect(0, 0, 50, 50), &image.Uniform{color.RGBA{255, 0, 0, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(50, 0, 100, 50), &image.Uniform{color.RGBA{0, 0, 255, 255}}, image.Point{}, draw.Src)
	return img
}

// cards is a 200x100 white image with three 40x60 black cards separated by
// 17px gaps.
func cards() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	for _, x := range []int{10, 66, 122} {
		draw.Draw(img, image.Rect(x, 20, x+40, 80), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
