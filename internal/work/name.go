package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/task"
)

// NameRepairOutput is the output of a name_repair job.
type NameRepairOutput struct {
	StyleID  uuid.UUID `json:"styleId"`
	Name     string    `json:"name"`
	Previous string    `json:"previous,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
}

// NameRepair replaces a placeholder style name with a suggested one.
func (f *Functions) NameRepair(ctx context.Context, input json.RawMessage, report task.ProgressFunc) (json.RawMessage, error) {
	in, err := decodeStyleInput(input)
	if err != nil {
		return nil, err
	}
	log := logger.FromContextOrDefault(ctx, f.logger).With(slog.String("style_id", in.StyleID.String()))

	style, err := f.styles.GetStyle(ctx, in.StyleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load style: %w", err)
	}
	if !style.NeedsNameRepair() {
		log.Info("style already has a real name, skipping", slog.String("name", style.Name))
		return encode(NameRepairOutput{StyleID: style.ID, Name: style.Name, Skipped: true})
	}

	report(20, "Loading image")
	req := generation.NameRequest{
		StyleID:     style.ID,
		CurrentName: style.Name,
		Tokens:      styleTokens(style),
	}
	data, contentType, err := f.images.GetObject(ctx, style.ImageKey)
	switch {
	case err == nil:
		req.Image, req.MIMEType = data, contentType
	case errors.Is(err, store.ErrObjectNotFound):
		log.Warn("style image missing, naming from tokens only", slog.String("image_key", style.ImageKey))
	default:
		return nil, fmt.Errorf("failed to load style image: %w", err)
	}

	report(50, "Suggesting name")
	name, err := f.provider.SuggestName(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest name: %w", err)
	}
	if domain.IsPlaceholderName(name, style.ID) {
		return nil, fmt.Errorf("%w: %q", generation.ErrPlaceholderName, name)
	}

	report(90, "Saving name")
	if err := f.styles.UpdateName(ctx, style.ID, name); err != nil {
		return nil, fmt.Errorf("failed to save name: %w", err)
	}
	f.invalidate(ctx, style.ID)

	log.Info("style renamed", slog.String("previous", style.Name), slog.String("name", name))
	return encode(NameRepairOutput{StyleID: style.ID, Name: name, Previous: style.Name})
}
