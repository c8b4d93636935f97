package work

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/task"
)

// AnalysisOutput is the output of analysis and batch_item jobs.
type AnalysisOutput struct {
	StyleID     uuid.UUID `json:"styleId"`
	ContentHash string    `json:"contentHash"`
	Method      string    `json:"method"`
	Colors      int       `json:"colors"`
}

// Analyze extracts the token set of a style's image and stores it on the
// style.
func (f *Functions) Analyze(ctx context.Context, input json.RawMessage, report task.ProgressFunc) (json.RawMessage, error) {
	in, err := decodeStyleInput(input)
	if err != nil {
		return nil, err
	}
	style, err := f.styles.GetStyle(ctx, in.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}
	out, err := f.analyzeStyle(ctx, style, report)
	if err != nil {
		return nil, err
	}
	return encode(out)
}

func (f *Functions) analyzeStyle(ctx context.Context, style *domain.Style, report task.ProgressFunc) (*AnalysisOutput, error) {
	report(5, "Loading image")
	data, _, err := f.images.GetObject(ctx, style.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load style image %s: %w", style.ImageKey, err)
	}

	ts, err := f.pipeline.Extract(ctx, data, func(p int, msg string) { report(p, msg) })
	if err != nil {
		return nil, fmt.Errorf("failed to extract tokens: %w", err)
	}
	raw, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tokens: %w", err)
	}
	if err := f.styles.UpdateTokens(ctx, style.ID, ts.Meta.ContentHash, raw); err != nil {
		return nil, fmt.Errorf("failed to save tokens: %w", err)
	}
	f.invalidate(ctx, style.ID)

	logger.FromContextOrDefault(ctx, f.logger).Info("style analyzed",
		slog.String("style_id", style.ID.String()),
		slog.String("method", ts.Meta.Method),
		slog.Int("colors", len(ts.Color)))
	return &AnalysisOutput{
		StyleID:     style.ID,
		ContentHash: ts.Meta.ContentHash,
		Method:      ts.Meta.Method,
		Colors:      len(ts.Color),
	}, nil
}
