package tokens

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// resize scales img to at most maxWidth pixels wide using nearest-neighbour
// sampling. Images already narrower are copied at their own size.
func resize(img image.Image, maxWidth int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	nw, nh := w, h
	if w > maxWidth {
		nw = maxWidth
		nh = h * maxWidth / w
		if nh < 1 {
			nh = 1
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := b.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			sx := b.Min.X + x*w/nw
			out.Set(x, y, color.RGBAModel.Convert(img.At(sx, sy)))
		}
	}
	return out
}

// plane is a single-channel float image in row-major order.
type plane struct {
	w, h int
	v    []float64
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, v: make([]float64, w*h)}
}

func (p *plane) at(x, y int) float64 {
	return p.v[y*p.w+x]
}

// grayscale returns Rec.601 luma on a 0-255 scale.
func grayscale(img *image.RGBA) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			p.v[y*p.w+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}
	return p
}

// lightness returns CIELAB L* rescaled to 0-255.
func lightness(img *image.RGBA) *plane {
	b := img.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			l, _, _ := colorful.Color{
				R: float64(c.R) / 255,
				G: float64(c.G) / 255,
				B: float64(c.B) / 255,
			}.Lab()
			p.v[y*p.w+x] = l * 255
		}
	}
	return p
}
