package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"golang.org/x/sync/singleflight"
)

// Step names used in cache keys.
const (
	StepColors = "colors"
	StepLayout = "layout"
	StepAI     = "ai"
)

// Extraction methods recorded in TokenMeta.Method.
const (
	MethodHeuristic   = "heuristic-cv"
	MethodHeuristicAI = "heuristic-cv+ai"
)

// LayoutSettings tunes the structural pass.
type LayoutSettings struct {
	MaxWidth int `json:"maxWidth"`
}

// DefaultLayoutSettings are the settings used by the pipeline.
var DefaultLayoutSettings = LayoutSettings{MaxWidth: 512}

// ProgressFunc receives coarse progress while a pipeline runs.
type ProgressFunc func(progress int, message string)

type layoutResult struct {
	Grid         domain.Grid      `json:"grid"`
	Elevation    domain.Elevation `json:"elevation"`
	Measurements Measurements     `json:"measurements"`
}

// Pipeline runs and caches token extraction.
type Pipeline struct {
	cache    *cache.Persistent
	analyzer generation.Analyzer
	logger   *slog.Logger
	group    singleflight.Group
}

// NewPipeline creates a Pipeline. analyzer may be nil, in which case only the
// heuristic pass runs.
func NewPipeline(c *cache.Persistent, analyzer generation.Analyzer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cache:    c,
		analyzer: analyzer,
		logger:   log.With(slog.String("component", "token_pipeline")),
	}
}

// Extract decodes data and returns its token set. A whole-result cache hit
// returns without decoding pixels; concurrent calls for identical bytes share
// one computation.
func (p *Pipeline) Extract(ctx context.Context, data []byte, progress ProgressFunc) (*domain.TokenSet, error) {
	if progress == nil {
		progress = func(int, string) {}
	}

	decoded, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	hash := cache.ContentHash(decoded.Bytes)

	if entry, ok := p.cache.Get(ctx, hash); ok {
		var tokens domain.TokenSet
		if err := cache.Decode(entry, &tokens); err == nil {
			progress(95, "Loaded cached tokens")
			return &tokens, nil
		}
	}

	// The shared computation must survive any single caller giving up.
	detached := context.WithoutCancel(ctx)
	ch := p.group.DoChan(hash, func() (any, error) {
		return p.compute(detached, decoded, hash, progress)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		tokens := *res.Val.(*domain.TokenSet)
		return &tokens, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops every cached step result for the image with hash.
func (p *Pipeline) Invalidate(ctx context.Context, hash string) int64 {
	var n int64
	for _, step := range []string{StepColors, StepLayout, StepAI} {
		n += p.cache.InvalidateStep(ctx, step, hash)
	}
	return n
}

func (p *Pipeline) compute(ctx context.Context, decoded *Decoded, hash string, progress ProgressFunc) (*domain.TokenSet, error) {
	log := logger.FromContextOrDefault(ctx, p.logger).With(slog.String("content_hash", hash))
	start := time.Now()
	progress(10, "Decoded image")

	var colors []domain.OKLCH
	if err := p.step(ctx, StepColors, hash, DefaultColorSettings, &colors, func() (any, error) {
		return ExtractColors(decoded.Image, DefaultColorSettings), nil
	}); err != nil {
		return nil, err
	}
	progress(40, "Extracted colors")

	var layout layoutResult
	if err := p.step(ctx, StepLayout, hash, DefaultLayoutSettings, &layout, func() (any, error) {
		small := resize(decoded.Image, DefaultLayoutSettings.MaxWidth)
		gray := grayscale(small)
		return layoutResult{
			Grid:         detectGrid(gray),
			Elevation:    estimateElevation(lightness(small)),
			Measurements: measureLayout(gray),
		}, nil
	}); err != nil {
		return nil, err
	}
	progress(70, "Measured layout")

	var analysis *generation.Analysis
	if p.analyzer != nil {
		var a generation.Analysis
		err := p.step(ctx, StepAI, hash, nil, &a, func() (any, error) {
			res, err := p.analyzer.Analyze(ctx, decoded.Bytes, decoded.MIMEType)
			if err != nil {
				return nil, err
			}
			return res, nil
		})
		if err != nil {
			log.Warn("AI analysis failed, using heuristic measurements only", slog.String("error", err.Error()))
		} else {
			analysis = &a
		}
		progress(90, "Analyzed image")
	}

	tokens := assemble(colors, layout, analysis)
	tokens.Meta.ContentHash = hash

	elapsed := time.Since(start)
	if p.analyzer != nil && analysis == nil {
		// heuristic fallback after an analyzer failure is never cached whole
		log.Debug("skipping whole-result cache for heuristic fallback")
	} else {
		p.cache.Set(ctx, hash, tokens, tokens.Meta.Method, elapsed)
	}
	log.Info("extracted tokens",
		slog.String("method", tokens.Meta.Method),
		slog.Int("colors", len(tokens.Color)),
		slog.Duration("duration", elapsed))

	return tokens, nil
}

// step loads a step result from cache into dst or computes and stores it.
func (p *Pipeline) step(
	ctx context.Context,
	name, hash string,
	settings any,
	dst any,
	run func() (any, error),
) error {
	key := cache.StepKey{Step: name, Hash: hash, SettingsDigest: cache.SettingsDigest(settings)}
	if entry, ok := p.cache.GetStep(ctx, key); ok {
		if err := cache.Decode(entry, dst); err == nil {
			return nil
		}
	}

	start := time.Now()
	val, err := run()
	if err != nil {
		return fmt.Errorf("%s step: %w", name, err)
	}
	p.cache.SetStep(ctx, key, val, name, time.Since(start))

	// Round-trip through the cache encoding so hits and misses look identical.
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("%s step: encode result: %w", name, err)
	}
	return json.Unmarshal(raw, dst)
}

func assemble(colors []domain.OKLCH, layout layoutResult, analysis *generation.Analysis) *domain.TokenSet {
	m := layout.Measurements
	spacing, radius, stroke := m.Spacing, m.BorderRadius, m.StrokeWidth

	meta := domain.TokenMeta{Method: MethodHeuristic, Confidence: "medium-high", RealtimeSafe: true}
	var typography *domain.Typography
	if analysis != nil {
		spacing = append(append([]float64(nil), spacing...), analysis.Spacing...)
		radius = append(append([]float64(nil), radius...), analysis.BorderRadius...)
		stroke = append(append([]float64(nil), stroke...), analysis.StrokeWidth...)
		typography = analysis.Typography
		meta = domain.TokenMeta{Method: MethodHeuristicAI, Confidence: "high", RealtimeSafe: false}
	}

	strokeWidth := Quantize(stroke, StrokeScale)
	if len(strokeWidth) == 0 {
		strokeWidth = []float64{1}
	}
	if colors == nil {
		colors = []domain.OKLCH{}
	}

	return &domain.TokenSet{
		Color:        colors,
		Spacing:      Quantize(spacing, SpacingScale),
		BorderRadius: Quantize(radius, RadiusScale),
		Grid:         layout.Grid,
		Elevation:    layout.Elevation,
		StrokeWidth:  strokeWidth,
		Typography:   typography,
		Meta:         meta,
	}
}
