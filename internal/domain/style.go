package domain

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetStatus tracks derived-asset generation for a style
type AssetStatus string

// Possible asset status values. The empty status means generation never ran.
const (
	AssetStatusNone       AssetStatus = ""
	AssetStatusPending    AssetStatus = "pending"
	AssetStatusGenerating AssetStatus = "generating"
	AssetStatusComplete   AssetStatus = "complete"
	AssetStatusFailed     AssetStatus = "failed"
)

// AssetKind names one derived asset rendered for a style.
type AssetKind string

// Asset kinds, in generation order
const (
	AssetKindPalette    AssetKind = "palette"
	AssetKindTypography AssetKind = "typography"
	AssetKindComponents AssetKind = "components"
)

// DefaultAssetKinds is the full set of assets a complete style carries.
var DefaultAssetKinds = []AssetKind{AssetKindPalette, AssetKindTypography, AssetKindComponents}

// Style validation errors
var (
	ErrEmptyStyleID  = errors.New("style ID cannot be empty")
	ErrEmptyImageKey = errors.New("style image key cannot be empty")
)

// Style is the subject most jobs concern: a named set of design tokens
// extracted from a reference image.
type Style struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	ImageKey    string          `json:"image_key"`
	ContentHash string          `json:"content_hash,omitempty"`
	Tokens      json.RawMessage `json:"tokens,omitempty"`
	AssetStatus AssetStatus     `json:"asset_status"`
	AssetKeys   []string        `json:"asset_keys"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewStyle creates a style for an uploaded image. An empty name falls back to
// the generated "Untitled Style" placeholder, which name repair later fixes.
func NewStyle(name, imageKey string) (*Style, error) {
	if imageKey == "" {
		return nil, ErrEmptyImageKey
	}
	if strings.TrimSpace(name) == "" {
		name = "Untitled Style"
	}
	now := time.Now().UTC()
	return &Style{
		ID:          uuid.New(),
		Name:        name,
		ImageKey:    imageKey,
		AssetStatus: AssetStatusPending,
		AssetKeys:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

var (
	uuidShapePattern = regexp.MustCompile(
		`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	// names produced by upload and import fallbacks
	fallbackNamePattern = regexp.MustCompile(
		`(?i)^(untitled( style)?( \d+)?|style[ _-]?\d+|imported[ _-]style([ _-]?\d+)?|new style( \d+)?)$`)
)

// FallbackNamePattern is the SQL regular expression equivalent of the
// generated-fallback heuristic, for stores that filter server-side.
const FallbackNamePattern = `^(untitled( style)?( [0-9]+)?|style[ _-]?[0-9]+|imported[ _-]style([ _-]?[0-9]+)?|new style( [0-9]+)?)$`

// UUIDNamePattern is the SQL regular expression for UUID-shaped names.
const UUIDNamePattern = `^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`

// IsPlaceholderName reports whether name is clearly a fallback rather than a
// real name for the style identified by id.
func IsPlaceholderName(name string, id uuid.UUID) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}
	if uuidShapePattern.MatchString(trimmed) {
		return true
	}
	if id != uuid.Nil && strings.EqualFold(trimmed, id.String()) {
		return true
	}
	return fallbackNamePattern.MatchString(trimmed)
}

// NeedsNameRepair reports whether the style is a name repair candidate.
func (s *Style) NeedsNameRepair() bool {
	return IsPlaceholderName(s.Name, s.ID)
}

// NeedsAssets reports whether the style's derived assets are missing,
// incomplete, or fewer than expected.
func (s *Style) NeedsAssets(expected int) bool {
	if s.AssetStatus != AssetStatusComplete {
		return true
	}
	return len(s.AssetKeys) < expected
}

// StyleJobInput is the input of every job whose subject is a style.
type StyleJobInput struct {
	StyleID uuid.UUID `json:"styleId"`
	// Kinds restricts asset jobs to these assets; empty means every
	// missing default asset.
	Kinds []AssetKind `json:"kinds,omitempty"`
}

// Encode returns the JSON form stored on the job.
func (in StyleJobInput) Encode() json.RawMessage {
	// cannot fail: fixed shape of uuid and strings
	raw, _ := json.Marshal(in)
	return raw
}
