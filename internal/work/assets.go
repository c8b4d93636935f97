package work

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/task"
)

// AssetOutput is the output of asset_generation and preview_generation jobs.
type AssetOutput struct {
	StyleID   uuid.UUID `json:"styleId"`
	Generated []string  `json:"generated"`
	AssetKeys []string  `json:"assetKeys"`
}

// GenerateAssets renders every missing asset kind of a style, stores the
// bytes and marks the style complete. On failure the style is marked failed
// with the assets stored so far, so a retry only renders the rest.
func (f *Functions) GenerateAssets(ctx context.Context, input json.RawMessage, report task.ProgressFunc) (json.RawMessage, error) {
	in, err := decodeStyleInput(input)
	if err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, f.logger).With(slog.String("style_id", in.StyleID.String()))

	style, err := f.styles.GetStyle(ctx, in.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	kinds := in.Kinds
	if len(kinds) == 0 {
		kinds = domain.DefaultAssetKinds
	}
	have := make(map[domain.AssetKind]bool, len(style.AssetKeys))
	for _, key := range style.AssetKeys {
		have[assetKind(key)] = true
	}
	var missing []domain.AssetKind
	for _, k := range kinds {
		if !have[k] {
			missing = append(missing, k)
		}
	}

	keys := slices.Clone(style.AssetKeys)
	if len(missing) == 0 {
		if err := f.styles.UpdateAssets(ctx, style.ID, domain.AssetStatusComplete, keys); err != nil {
			return nil, fmt.Errorf("failed to mark assets complete: %w", err)
		}
		f.invalidate(ctx, style.ID)
		return encode(AssetOutput{StyleID: style.ID, Generated: []string{}, AssetKeys: keys})
	}

	if err := f.styles.UpdateAssets(ctx, style.ID, domain.AssetStatusGenerating, nil); err != nil {
		return nil, fmt.Errorf("failed to mark assets generating: %w", err)
	}
	f.invalidate(ctx, style.ID)

	tokenSet := styleTokens(style)
	generated := make([]string, 0, len(missing))
	for i, kind := range missing {
		report(10+80*i/len(missing), fmt.Sprintf("Generating %s (%d of %d)", kind, i+1, len(missing)))

		key, err := f.renderAsset(ctx, kind, kind, style, tokenSet)
		if err != nil {
			if updErr := f.styles.UpdateAssets(ctx, style.ID, domain.AssetStatusFailed, keys); updErr != nil {
				log.Error("failed to mark assets failed", slog.String("error", updErr.Error()))
			}
			f.invalidate(ctx, style.ID)
			return nil, err
		}
		keys = append(keys, key)
		generated = append(generated, key)
	}

	report(95, "Saving assets")
	if err := f.styles.UpdateAssets(ctx, style.ID, domain.AssetStatusComplete, keys); err != nil {
		return nil, fmt.Errorf("failed to mark assets complete: %w", err)
	}
	f.invalidate(ctx, style.ID)

	log.Info("style assets generated", slog.Int("generated", len(generated)))
	return encode(AssetOutput{StyleID: style.ID, Generated: generated, AssetKeys: keys})
}

// GeneratePreview renders a single components preview for a style without
// touching its asset status.
func (f *Functions) GeneratePreview(ctx context.Context, input json.RawMessage, report task.ProgressFunc) (json.RawMessage, error) {
	in, err := decodeStyleInput(input)
	if err != nil {
		return nil, err
	}
	style, err := f.styles.GetStyle(ctx, in.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}

	report(30, "Generating preview")
	key, err := f.renderAsset(ctx, domain.AssetKindComponents, "preview", style, styleTokens(style))
	if err != nil {
		return nil, err
	}
	return encode(AssetOutput{StyleID: style.ID, Generated: []string{key}, AssetKeys: style.AssetKeys})
}

func (f *Functions) renderAsset(
	ctx context.Context,
	kind domain.AssetKind,
	name domain.AssetKind,
	style *domain.Style,
	tokenSet *domain.TokenSet,
) (string, error) {
	asset, err := f.provider.GenerateAsset(ctx, kind, style, tokenSet)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s asset: %w", kind, err)
	}
	key := AssetKey(style.ID, string(name), asset.ContentType)
	if err := f.images.PutObject(ctx, key, asset.Data, asset.ContentType); err != nil {
		return "", fmt.Errorf("failed to store %s asset: %w", kind, err)
	}
	return key, nil
}
