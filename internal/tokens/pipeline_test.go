package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAnalyzer struct {
	calls   atomic.Int32
	gate    chan struct{}
	err     error
	results *generation.Analysis
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ []byte, _ string) (*generation.Analysis, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestPipeline(analyzer generation.Analyzer) (*Pipeline, *memory.CacheStore) {
	s := memory.NewCacheStore()
	return NewPipeline(cache.NewPersistent(s, 0, nil), analyzer, nil), s
}

func TestPipeline_Extract_Heuristic(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(nil)
	data := encodePNG(t, cards())

	var reported []int
	tokens, err := p.Extract(context.Background(), data, func(progress int, _ string) {
		reported = append(reported, progress)
	})
	require.NoError(t, err)

	assert.Equal(t, MethodHeuristic, tokens.Meta.Method)
	assert.True(t, tokens.Meta.RealtimeSafe)
	assert.Equal(t, cache.ContentHash(data), tokens.Meta.ContentHash)
	assert.Equal(t, []float64{16}, tokens.Spacing)
	assert.Equal(t, []float64{32}, tokens.BorderRadius)
	assert.Equal(t, []float64{1}, tokens.StrokeWidth)
	assert.Equal(t, domain.Grid{Columns: 6, Rows: 2}, tokens.Grid)
	assert.NotEmpty(t, tokens.Color)
	assert.Nil(t, tokens.Typography)
	assert.Equal(t, []int{10, 40, 70}, reported)

	// whole result plus colors and layout steps
	assert.Equal(t, 3, s.Len())
}

func TestPipeline_Extract_CacheHit(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(nil)
	data := encodePNG(t, twoTone())

	first, err := p.Extract(context.Background(), data, nil)
	require.NoError(t, err)

	var reported []int
	second, err := p.Extract(context.Background(), data, func(progress int, _ string) {
		reported = append(reported, progress)
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []int{95}, reported, "a hit skips every step")
}

func TestPipeline_Extract_WithAnalyzer(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{results: &generation.Analysis{
		Spacing:     []float64{23, 7},
		StrokeWidth: []float64{2.2},
		Typography:  &domain.Typography{FontFamilies: []string{"Inter"}},
	}}
	p, _ := newTestPipeline(analyzer)

	tokens, err := p.Extract(context.Background(), encodePNG(t, cards()), nil)
	require.NoError(t, err)

	assert.Equal(t, MethodHeuristicAI, tokens.Meta.Method)
	assert.False(t, tokens.Meta.RealtimeSafe)
	assert.Equal(t, []float64{8, 16, 24}, tokens.Spacing)
	assert.Equal(t, []float64{2}, tokens.StrokeWidth)
	require.NotNil(t, tokens.Typography)
	assert.Equal(t, []string{"Inter"}, tokens.Typography.FontFamilies)
}

func TestPipeline_Extract_AnalyzerFailureFallsBack(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{err: errors.New("quota exceeded")}
	p, _ := newTestPipeline(analyzer)

	tokens, err := p.Extract(context.Background(), encodePNG(t, cards()), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristic, tokens.Meta.Method)
}

func TestPipeline_Extract_FallbackIsNotCached(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{err: errors.New("upstream timeout")}
	p, _ := newTestPipeline(analyzer)
	data := encodePNG(t, cards())

	first, err := p.Extract(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristic, first.Meta.Method)

	analyzer.err = nil
	analyzer.results = &generation.Analysis{Spacing: []float64{15}}
	second, err := p.Extract(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristicAI, second.Meta.Method)
	assert.Equal(t, int32(2), analyzer.calls.Load())

	// the AI-backed result is cached as usual
	third, err := p.Extract(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, MethodHeuristicAI, third.Meta.Method)
	assert.Equal(t, int32(2), analyzer.calls.Load())
}

func TestPipeline_Extract_CollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	analyzer := &fakeAnalyzer{
		gate:    make(chan struct{}),
		results: &generation.Analysis{Spacing: []float64{8}},
	}
	p, _ := newTestPipeline(analyzer)
	data := encodePNG(t, twoTone())

	var wg sync.WaitGroup
	results := make([]*domain.TokenSet, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Extract(context.Background(), data, nil)
		}(i)
	}

	require.Eventually(t, func() bool { return analyzer.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(analyzer.gate)
	wg.Wait()

	assert.Equal(t, int32(1), analyzer.calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestPipeline_Invalidate(t *testing.T) {
	t.Parallel()

	p, s := newTestPipeline(nil)
	data := encodePNG(t, twoTone())
	_, err := p.Extract(context.Background(), data, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), p.Invalidate(context.Background(), cache.ContentHash(data)))
	assert.Equal(t, 1, s.Len(), "whole-result row stays")
}

func TestPipeline_Extract_DecodeError(t *testing.T) {
	t.Parallel()

	p, _ := newTestPipeline(nil)
	_, err := p.Extract(context.Background(), []byte("nope"), nil)
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
