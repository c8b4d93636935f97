package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/store"
)

// Candidate is one unit of work a discoverer proposes.
type Candidate struct {
	Type      domain.JobType
	SubjectID uuid.UUID
	Input     json.RawMessage
}

// Discoverer finds candidates for one kind of maintenance work. Discovery
// is read-only.
type Discoverer interface {
	Name() string
	Discover(ctx context.Context) ([]Candidate, error)
}

// NameRepairDiscoverer proposes name_repair jobs for styles whose name is a
// placeholder.
type NameRepairDiscoverer struct {
	styles store.StyleStore
	limit  int
}

// NewNameRepairDiscoverer creates a NameRepairDiscoverer returning at most
// limit candidates per cycle.
func NewNameRepairDiscoverer(styles store.StyleStore, limit int) *NameRepairDiscoverer {
	return &NameRepairDiscoverer{styles: styles, limit: limit}
}

// Name implements Discoverer.
func (d *NameRepairDiscoverer) Name() string { return "name_repair" }

// Discover implements Discoverer.
func (d *NameRepairDiscoverer) Discover(ctx context.Context) ([]Candidate, error) {
	styles, err := d.styles.ListNameRepairCandidates(ctx, d.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list name repair candidates: %w", err)
	}

	out := make([]Candidate, 0, len(styles))
	for _, s := range styles {
		// stores may filter loosely server-side
		if !s.NeedsNameRepair() {
			continue
		}
		out = append(out, Candidate{
			Type:      domain.JobTypeNameRepair,
			SubjectID: s.ID,
			Input:     domain.StyleJobInput{StyleID: s.ID}.Encode(),
		})
	}
	return out, nil
}

// AssetDiscoverer proposes asset_generation jobs for styles whose derived
// assets are missing or incomplete.
type AssetDiscoverer struct {
	styles   store.StyleStore
	expected int
	limit    int
}

// NewAssetDiscoverer creates an AssetDiscoverer. expected is the number of
// assets a complete style carries.
func NewAssetDiscoverer(styles store.StyleStore, expected, limit int) *AssetDiscoverer {
	if expected < 1 {
		expected = len(domain.DefaultAssetKinds)
	}
	return &AssetDiscoverer{styles: styles, expected: expected, limit: limit}
}

// Name implements Discoverer.
func (d *AssetDiscoverer) Name() string { return "asset_generation" }

// Discover implements Discoverer.
func (d *AssetDiscoverer) Discover(ctx context.Context) ([]Candidate, error) {
	styles, err := d.styles.ListAssetCandidates(ctx, d.expected, d.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list asset candidates: %w", err)
	}

	out := make([]Candidate, 0, len(styles))
	for _, s := range styles {
		if !s.NeedsAssets(d.expected) {
			continue
		}
		out = append(out, Candidate{
			Type:      domain.JobTypeAssetGeneration,
			SubjectID: s.ID,
			Input:     domain.StyleJobInput{StyleID: s.ID}.Encode(),
		})
	}
	return out, nil
}
