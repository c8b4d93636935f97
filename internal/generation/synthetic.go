package generation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/phrazzld/tokensmith/internal/domain"
)

var (
	syntheticAdjectives = []string{
		"Quiet", "Bold", "Muted", "Electric", "Soft", "Brutal", "Warm", "Cool",
		"Faded", "Vivid", "Dusky", "Crisp",
	}
	syntheticNouns = []string{
		"Harbor", "Meadow", "Circuit", "Canyon", "Orchard", "Signal", "Atlas",
		"Ember", "Glacier", "Studio", "Garden", "Terminal",
	}
)

// Synthetic implements Provider without any network calls. Output is a pure
// function of the input, so tests and keyless deployments behave the same way
// on every run.
type Synthetic struct {
	logger *slog.Logger
}

// NewSynthetic creates the deterministic provider.
func NewSynthetic(logger *slog.Logger) *Synthetic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthetic{logger: logger.With(slog.String("component", "synthetic_generator"))}
}

var _ Provider = (*Synthetic)(nil)

func seedOf(parts ...[]byte) uint64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Analyze returns mid-scale measurements derived from the image hash.
func (s *Synthetic) Analyze(ctx context.Context, img []byte, mimeType string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := seedOf(img)
	base := float64(seed%4+1) * 4
	return &Analysis{
		Spacing:      []float64{base, base * 2, base * 4},
		BorderRadius: []float64{float64(seed % 12)},
		StrokeWidth:  []float64{1, float64(seed%3 + 1)},
		Typography: &domain.Typography{
			FontFamilies: []string{"Inter"},
			FontSizes:    []float64{14, 16, 24},
			FontWeights:  []int{400, 600},
		},
		Mood: syntheticAdjectives[seed%uint64(len(syntheticAdjectives))],
	}, nil
}

// SuggestName combines an adjective and a noun picked from the style's id
// and image so that different styles get different names.
func (s *Synthetic) SuggestName(ctx context.Context, req NameRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	seed := seedOf(req.StyleID[:], req.Image)
	adj := syntheticAdjectives[seed%uint64(len(syntheticAdjectives))]
	noun := syntheticNouns[(seed>>16)%uint64(len(syntheticNouns))]
	return adj + " " + noun, nil
}

// GenerateAsset renders a PNG: palette swatches, a type specimen strip or a
// component card, using the style's colors when tokens are available.
func (s *Synthetic) GenerateAsset(
	ctx context.Context,
	kind domain.AssetKind,
	style *domain.Style,
	tokens *domain.TokenSet,
) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	palette := paletteFor(style, tokens)
	var img *image.RGBA
	switch kind {
	case domain.AssetKindPalette:
		img = renderSwatches(palette, 480, 120)
	case domain.AssetKindTypography:
		img = renderStripes(palette, 480, 240, 6)
	case domain.AssetKindComponents:
		img = renderCard(palette, 320, 200)
	default:
		return nil, fmt.Errorf("%w: unknown asset kind %q", ErrGenerationFailed, kind)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", ErrGenerationFailed, err)
	}

	s.logger.Debug("rendered synthetic asset",
		slog.String("style_id", style.ID.String()),
		slog.String("kind", string(kind)))

	return &Asset{Kind: kind, Data: buf.Bytes(), ContentType: "image/png"}, nil
}

// paletteFor returns at least two colors: the extracted OKLCH tokens when
// present, otherwise hues derived from the style id.
func paletteFor(style *domain.Style, tokens *domain.TokenSet) []color.Color {
	var out []color.Color
	if tokens != nil {
		for _, c := range tokens.Color {
			hue := c.H
			if math.IsNaN(hue) {
				hue = 0
			}
			out = append(out, colorful.OkLch(c.L, c.C, hue).Clamped())
		}
	}
	if len(out) >= 2 {
		return out
	}

	seed := seedOf(style.ID[:])
	for i := 0; len(out) < 4; i++ {
		h := float64((seed>>(uint(i)*8))%360) + float64(i)*90
		out = append(out, colorful.Hcl(math.Mod(h, 360), 0.4, 0.6).Clamped())
	}
	return out
}

func renderSwatches(palette []color.Color, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	w := width / len(palette)
	for i, c := range palette {
		r := image.Rect(i*w, 0, (i+1)*w, height)
		if i == len(palette)-1 {
			r.Max.X = width
		}
		draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
	}
	return img
}

func renderStripes(palette []color.Color, width, height, lines int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	step := height / lines
	for i := 0; i < lines; i++ {
		thickness := step / (2 + i%3)
		lineWidth := width - i*width/(lines*2)
		r := image.Rect(16, i*step+8, lineWidth-16, i*step+8+thickness)
		draw.Draw(img, r, &image.Uniform{palette[i%len(palette)]}, image.Point{}, draw.Src)
	}
	return img
}

func renderCard(palette []color.Color, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{palette[0]}, image.Point{}, draw.Src)
	inner := image.Rect(24, 24, width-24, height-24)
	draw.Draw(img, inner, &image.Uniform{color.White}, image.Point{}, draw.Src)
	button := image.Rect(40, height-72, 160, height-40)
	draw.Draw(img, button, &image.Uniform{palette[1]}, image.Point{}, draw.Src)
	return img
}
