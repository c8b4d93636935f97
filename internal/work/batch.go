package work

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/task"
)

// importNamespace derives stable style ids from image keys so a retried
// import reuses the style it created before.
var importNamespace = uuid.MustParse("6b1f3c2e-8d4a-4f5e-9a7b-2c1d0e3f4a5b")

// ImportedStyleID returns the id a batch import assigns to imageKey.
func ImportedStyleID(imageKey string) uuid.UUID {
	return uuid.NewSHA1(importNamespace, []byte(imageKey))
}

// ImportBatchItem creates a style for one uploaded image and analyzes it.
func (f *Functions) ImportBatchItem(ctx context.Context, input json.RawMessage, report task.ProgressFunc) (json.RawMessage, error) {
	var in task.BatchItemInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.ImageKey == "" {
		return nil, fmt.Errorf("%w: missing imageKey", ErrInvalidInput)
	}

	id := ImportedStyleID(in.ImageKey)
	style, err := f.styles.GetStyle(ctx, id)
	if errors.Is(err, store.ErrStyleNotFound) {
		style, err = domain.NewStyle(in.Name, in.ImageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		style.ID = id
		if err = f.styles.CreateStyle(ctx, style); errors.Is(err, store.ErrDuplicate) {
			style, err = f.styles.GetStyle(ctx, id)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}
	f.invalidate(ctx, style.ID)

	out, err := f.analyzeStyle(ctx, style, report)
	if err != nil {
		return nil, err
	}
	return encode(out)
}
