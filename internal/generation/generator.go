package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
)

// Analysis is what the AI analyzer reports about a reference image. The
// measurements are raw pixel values; callers snap them to design scales.
type Analysis struct {
	Spacing      []float64          `json:"spacing"`
	BorderRadius []float64          `json:"borderRadius"`
	StrokeWidth  []float64          `json:"strokeWidth"`
	Typography   *domain.Typography `json:"typography,omitempty"`
	Mood         string             `json:"mood,omitempty"`
}

// NameRequest carries what the namer may look at when naming a style.
type NameRequest struct {
	StyleID     uuid.UUID
	CurrentName string
	Image       []byte
	MIMEType    string
	Tokens      *domain.TokenSet
}

// Asset is one rendered derived asset.
type Asset struct {
	Kind        domain.AssetKind
	Data        []byte
	ContentType string
}

// Analyzer extracts AI-only token hints from an image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*Analysis, error)
}

// Namer proposes a human-readable name for a style.
type Namer interface {
	SuggestName(ctx context.Context, req NameRequest) (string, error)
}

// AssetGenerator renders one derived asset of a style.
type AssetGenerator interface {
	GenerateAsset(ctx context.Context, kind domain.AssetKind, style *domain.Style, tokens *domain.TokenSet) (*Asset, error)
}

// Provider bundles the three AI capabilities behind one client.
type Provider interface {
	Analyzer
	Namer
	AssetGenerator
}
