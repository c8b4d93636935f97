package work

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/platform/logger"
	"github.com/phrazzld/tokensmith/internal/store"
	"github.com/phrazzld/tokensmith/internal/store/memory"
	"github.com/phrazzld/tokensmith/internal/task"
	"github.com/phrazzld/tokensmith/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	name      string
	nameErr   error
	assetErr  map[domain.AssetKind]error
	rendered  []domain.AssetKind
	nameCalls []generation.NameRequest
}

func (p *fakeProvider) Analyze(context.Context, []byte, string) (*generation.Analysis, error) {
	return nil, errors.New("not used")
}

func (p *fakeProvider) SuggestName(_ context.Context, req generation.NameRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nameCalls = append(p.nameCalls, req)
	return p.name, p.nameErr
}

func (p *fakeProvider) GenerateAsset(
	_ context.Context,
	kind domain.AssetKind,
	_ *domain.Style,
	_ *domain.TokenSet,
) (*generation.Asset, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.assetErr[kind]; err != nil {
		return nil, err
	}
	p.rendered = append(p.rendered, kind)
	return &generation.Asset{Kind: kind, Data: []byte("png:" + kind), ContentType: "image/png"}, nil
}

type invalidations struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (i *invalidations) Invalidate(_ context.Context, id uuid.UUID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, id)
}

func (i *invalidations) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ids)
}

type fixture struct {
	styles      *memory.StyleStore
	images      *memory.ImageStore
	provider    *fakeProvider
	invalidated *invalidations
	fns         *Functions
	progress    []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := logger.GetTestLogger(t)
	f := &fixture{
		styles:      memory.NewStyleStore(),
		images:      memory.NewImageStore(),
		provider:    &fakeProvider{name: "Moss Garden", assetErr: map[domain.AssetKind]error{}},
		invalidated: &invalidations{},
	}
	pipeline := tokens.NewPipeline(cache.NewPersistent(memory.NewCacheStore(), 0, log), nil, log)
	f.fns = New(f.styles, f.images, f.provider, pipeline, f.invalidated, log)
	return f
}

func (f *fixture) report(p int, _ string) { f.progress = append(f.progress, p) }

func (f *fixture) addStyle(t *testing.T, name string, withImage bool) *domain.Style {
	t.Helper()
	s, err := domain.NewStyle(name, "uploads/"+uuid.NewString()+".png")
	require.NoError(t, err)
	require.NoError(t, f.styles.CreateStyle(context.Background(), s))
	if withImage {
		require.NoError(t, f.images.PutObject(context.Background(), s.ImageKey, samplePNG(t), "image/png"))
	}
	return s
}

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 60))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(10, 10, 50, 50), &image.Uniform{color.RGBA{20, 90, 60, 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(70, 10, 110, 50), &image.Uniform{color.RGBA{200, 120, 40, 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func styleInput(id uuid.UUID) json.RawMessage {
	return domain.StyleJobInput{StyleID: id}.Encode()
}

func TestNameRepair(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Untitled Style", true)

	raw, err := f.fns.NameRepair(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)

	var out NameRepairOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "Moss Garden", out.Name)
	assert.Equal(t, "Untitled Style", out.Previous)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moss Garden", stored.Name)
	assert.Equal(t, 1, f.invalidated.Count())
	require.Len(t, f.provider.nameCalls, 1)
	assert.Equal(t, "image/png", f.provider.nameCalls[0].MIMEType)
	assert.NotEmpty(t, f.progress)
}

func TestNameRepair_RejectsPlaceholderSuggestion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Style 4", false)
	f.provider.name = "Untitled Style 2"

	_, err := f.fns.NameRepair(ctx, styleInput(s.ID), f.report)
	assert.ErrorIs(t, err, generation.ErrPlaceholderName)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "Style 4", stored.Name)
	assert.Zero(t, f.invalidated.Count())
}

func TestNameRepair_SkipsNamedStyles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := f.addStyle(t, "Harbor Dusk", false)

	raw, err := f.fns.NameRepair(context.Background(), styleInput(s.ID), f.report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"styleId":"`+s.ID.String()+`","name":"Harbor Dusk","skipped":true}`, string(raw))
	assert.Empty(t, f.provider.nameCalls)
}

func TestNameRepair_ProviderError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := f.addStyle(t, "", false)
	f.provider.nameErr = generation.ErrTransientFailure

	_, err := f.fns.NameRepair(context.Background(), styleInput(s.ID), f.report)
	assert.ErrorIs(t, err, generation.ErrTransientFailure)
}

func TestDecodeStyleInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.fns.NameRepair(context.Background(), json.RawMessage(`{}`), f.report)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.fns.Analyze(context.Background(), json.RawMessage(`[`), f.report)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.fns.GenerateAssets(context.Background(), styleInput(uuid.New()), f.report)
	assert.ErrorIs(t, err, store.ErrStyleNotFound)
}

func TestGenerateAssets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", false)

	raw, err := f.fns.GenerateAssets(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)

	var out AssetOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Len(t, out.Generated, 3)
	assert.Equal(t, domain.DefaultAssetKinds, f.provider.rendered)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusComplete, stored.AssetStatus)
	assert.False(t, stored.NeedsAssets(3))
	for _, key := range stored.AssetKeys {
		data, contentType, err := f.images.GetObject(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
		assert.NotEmpty(t, data)
	}
	assert.Equal(t, []int{10, 36, 63, 95}, f.progress)
}

func TestGenerateAssets_ResumesAfterFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", false)
	f.provider.assetErr[domain.AssetKindComponents] = generation.ErrContentBlocked

	_, err := f.fns.GenerateAssets(ctx, styleInput(s.ID), f.report)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusFailed, stored.AssetStatus)
	assert.Len(t, stored.AssetKeys, 2, "finished assets are kept")

	delete(f.provider.assetErr, domain.AssetKindComponents)
	raw, err := f.fns.GenerateAssets(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)

	var out AssetOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []string{AssetKey(s.ID, "components", "image/png")}, out.Generated)
	assert.Len(t, out.AssetKeys, 3)
}

func TestGenerateAssets_NothingMissing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", false)
	var keys []string
	for _, k := range domain.DefaultAssetKinds {
		keys = append(keys, AssetKey(s.ID, string(k), "image/png"))
	}
	require.NoError(t, f.styles.UpdateAssets(ctx, s.ID, domain.AssetStatusFailed, keys))

	_, err := f.fns.GenerateAssets(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)
	assert.Empty(t, f.provider.rendered)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusComplete, stored.AssetStatus)
}

func TestGeneratePreview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", false)

	raw, err := f.fns.GeneratePreview(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)

	var out AssetOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Generated, 1)
	assert.Equal(t, "assets/"+s.ID.String()+"/preview.png", out.Generated[0])

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssetStatusPending, stored.AssetStatus)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", true)

	raw, err := f.fns.Analyze(ctx, styleInput(s.ID), f.report)
	require.NoError(t, err)

	var out AnalysisOutput
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, tokens.MethodHeuristic, out.Method)
	assert.Equal(t, cache.ContentHash(samplePNG(t)), out.ContentHash)
	assert.Positive(t, out.Colors)

	stored, err := f.styles.GetStyle(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, out.ContentHash, stored.ContentHash)
	var ts domain.TokenSet
	require.NoError(t, json.Unmarshal(stored.Tokens, &ts))
	assert.Len(t, ts.Color, out.Colors)
}

func TestAnalyze_MissingImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	s := f.addStyle(t, "Moss Garden", false)

	_, err := f.fns.Analyze(context.Background(), styleInput(s.ID), f.report)
	assert.ErrorIs(t, err, store.ErrObjectNotFound)
}

func TestImportBatchItem_IsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	key := "imports/spring/1.png"
	require.NoError(t, f.images.PutObject(ctx, key, samplePNG(t), "image/png"))
	input, err := json.Marshal(task.BatchItemInput{ImageKey: key})
	require.NoError(t, err)

	first, err := f.fns.ImportBatchItem(ctx, input, f.report)
	require.NoError(t, err)
	second, err := f.fns.ImportBatchItem(ctx, input, f.report)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))

	all, err := f.styles.ListStyles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, ImportedStyleID(key), all[0].ID)
	assert.Equal(t, "Untitled Style", all[0].Name, "name repair picks it up later")
	assert.NotEmpty(t, all[0].Tokens)
}

func TestImportBatchItem_BadInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.fns.ImportBatchItem(context.Background(), json.RawMessage(`{"name":"x"}`), f.report)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRegister(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	r := task.NewRegistry()
	require.NoError(t, f.fns.Register(r, task.RunOptions{MaxRetries: 2}))
	for _, jt := range []domain.JobType{
		domain.JobTypeNameRepair, domain.JobTypeAssetGeneration, domain.JobTypeAnalysis,
		domain.JobTypePreviewGeneration, domain.JobTypeBatchItem,
	} {
		h, err := r.Lookup(jt)
		require.NoError(t, err, jt)
		assert.Equal(t, 2, h.Options.MaxRetries)
	}
}

func TestAssetKey(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	assert.Equal(t, "assets/3f2504e0-4f89-11d3-9a0c-0305e82c3301/palette.png", AssetKey(id, "palette", "image/png"))
	assert.Equal(t, "assets/3f2504e0-4f89-11d3-9a0c-0305e82c3301/palette.jpg", AssetKey(id, "palette", "image/jpeg"))
	assert.Equal(t, domain.AssetKindTypography, assetKind(AssetKey(id, "typography", "image/png")))
}
