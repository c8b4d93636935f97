package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/task"
	"github.com/phrazzld/tokensmith/internal/tokens"
)

// ErrInvalidInput is returned when a job input cannot be decoded.
var ErrInvalidInput = errors.New("invalid job input")

// Invalidator drops cached reads of a style after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, styleID uuid.UUID)
}

// Functions binds the work functions to their collaborators.
type Functions struct {
	styles      store.StyleStore
	images      store.ImageStore
	provider    generation.Provider
	pipeline    *tokens.Pipeline
	invalidator Invalidator
	logger      *slog.Logger
}

// New creates the work functions. invalidator may be nil.
func New(
	styles store.StyleStore,
	images store.ImageStore,
	provider generation.Provider,
	pipeline *tokens.Pipeline,
	invalidator Invalidator,
	log *slog.Logger,
) *Functions {
	if log == nil {
		log = slog.Default()
	}
	return &Functions{
		styles:      styles,
		images:      images,
		provider:    provider,
		pipeline:    pipeline,
		invalidator: invalidator,
		logger:      log.With(slog.String("component", "work")),
	}
}

// Register installs every work function in r with the same run options.
func (f *Functions) Register(r *task.Registry, opts task.RunOptions) error {
	handlers := map[domain.JobType]task.WorkFunc{
		domain.JobTypeNameRepair:        f.NameRepair,
		domain.JobTypeAssetGeneration:   f.GenerateAssets,
		domain.JobTypeAnalysis:          f.Analyze,
		domain.JobTypePreviewGeneration: f.GeneratePreview,
		domain.JobTypeBatchItem:         f.ImportBatchItem,
	}
	for t, work := range handlers {
		if err := r.Register(t, task.Handler{Work: work, Options: opts}); err != nil {
			return fmt.Errorf("failed to register %s: %w", t, err)
		}
	}
	return nil
}

func (f *Functions) invalidate(ctx context.Context, id uuid.UUID) {
	if f.invalidator != nil {
		f.invalidator.Invalidate(ctx, id)
	}
}

func decodeStyleInput(input json.RawMessage) (domain.StyleJobInput, error) {
	var in domain.StyleJobInput
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.StyleID == uuid.Nil {
		return in, fmt.Errorf("%w: missing styleId", ErrInvalidInput)
	}
	return in, nil
}

func encode(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return raw, nil
}

// styleTokens decodes the stored token set, returning nil when absent.
func styleTokens(s *domain.Style) *domain.TokenSet {
	if len(s.Tokens) == 0 {
		return nil
	}
	var ts domain.TokenSet
	if err := json.Unmarshal(s.Tokens, &ts); err != nil {
		return nil
	}
	return &ts
}

// AssetKey is the object key of a generated asset.
func AssetKey(styleID uuid.UUID, name, contentType string) string {
	ext := ".png"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	case "image/svg+xml":
		ext = ".svg"
	}
	return "assets/" + styleID.String() + "/" + name + ext
}

// assetKind recovers the kind from a key written by AssetKey.
func assetKind(key string) domain.AssetKind {
	base := key[strings.LastIndex(key, "/")+1:]
	if dot := strings.IndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	return domain.AssetKind(base)
}
