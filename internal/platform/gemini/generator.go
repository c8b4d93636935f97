package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/domain"
	"github.com/phrazzld/tokensmith/internal/generation"
	"google.golang.org/genai"
)

const maxNameLength = 60

// contentGenerator is the subset of *genai.Models used by Generator.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.Provider using the Gemini API.
type Generator struct {
	logger     *slog.Logger
	models     contentGenerator
	model      string
	imageModel string
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

var _ generation.Provider = (*Generator)(nil)

// NewGenerator creates a Generator with a live genai client.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg), nil
}

func newGenerator(logger *slog.Logger, models contentGenerator, cfg config.LLMConfig) *Generator {
	imageModel := cfg.ImageModel
	if imageModel == "" {
		imageModel = cfg.ModelName
	}
	return &Generator{
		logger:     logger.With(slog.String("component", "gemini_generator")),
		models:     models,
		model:      cfg.ModelName,
		imageModel: imageModel,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Analyze asks the model for spacing, radius, stroke and typography hints.
func (g *Generator) Analyze(ctx context.Context, image []byte, mimeType string) (*generation.Analysis, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", generation.ErrGenerationFailed)
	}

	contents := []*genai.Content{userContent(analysisPrompt, image, mimeType)}
	resp, err := g.callWithRetry(ctx, g.model, contents, jsonConfig())
	if err != nil {
		return nil, err
	}

	var parsed analysisSchema
	if err := decodeJSON(responseText(resp), &parsed); err != nil {
		return nil, err
	}

	analysis := &generation.Analysis{
		Spacing:      positive(parsed.Spacing),
		BorderRadius: nonNegative(parsed.BorderRadius),
		StrokeWidth:  positive(parsed.StrokeWidth),
		Mood:         strings.TrimSpace(parsed.Mood),
	}
	if len(parsed.FontFamilies)+len(parsed.FontSizes)+len(parsed.FontWeights) > 0 {
		analysis.Typography = &domain.Typography{
			FontFamilies: parsed.FontFamilies,
			FontSizes:    positive(parsed.FontSizes),
			FontWeights:  parsed.FontWeights,
		}
	}
	return analysis, nil
}

// SuggestName asks the model for a name and rejects placeholder answers.
func (g *Generator) SuggestName(ctx context.Context, req generation.NameRequest) (string, error) {
	prompt, err := render(nameTemplate, promptData{
		CurrentName: req.CurrentName,
		Colors:      hexColors(req.Tokens),
	})
	if err != nil {
		return "", err
	}

	resp, err := g.callWithRetry(ctx, g.model, []*genai.Content{userContent(prompt, req.Image, req.MIMEType)}, jsonConfig())
	if err != nil {
		return "", err
	}

	var parsed nameSchema
	if err := decodeJSON(responseText(resp), &parsed); err != nil {
		return "", err
	}

	name := strings.Trim(strings.TrimSpace(parsed.Name), `"'`)
	if len(name) > maxNameLength {
		name = strings.TrimSpace(name[:maxNameLength])
	}
	if domain.IsPlaceholderName(name, req.StyleID) {
		return "", fmt.Errorf("%w: %q", generation.ErrPlaceholderName, name)
	}
	return name, nil
}

// GenerateAsset asks the image model for one asset and returns the first
// inline image part of the response.
func (g *Generator) GenerateAsset(
	ctx context.Context,
	kind domain.AssetKind,
	style *domain.Style,
	tokens *domain.TokenSet,
) (*generation.Asset, error) {
	prompt, err := render(assetTemplate, promptData{Kind: string(kind), Colors: hexColors(tokens)})
	if err != nil {
		return nil, err
	}

	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}
	resp, err := g.callWithRetry(ctx, g.imageModel, []*genai.Content{userContent(prompt, nil, "")}, cfg)
	if err != nil {
		return nil, err
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			g.logger.DebugContext(ctx, "received generated asset",
				slog.String("style_id", style.ID.String()),
				slog.String("kind", string(kind)),
				slog.Int("bytes", len(part.InlineData.Data)))
			return &generation.Asset{
				Kind:        kind,
				Data:        part.InlineData.Data,
				ContentType: part.InlineData.MIMEType,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: no image in response", generation.ErrInvalidResponse)
}

// callWithRetry makes a call to the Gemini API with exponential backoff and
// jitter between attempts. Blocked content and malformed responses are
// permanent and returned without retrying.
func (g *Generator) callWithRetry(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	maxRetries := g.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := g.retryDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		g.logger.DebugContext(ctx, "making Gemini API call",
			slog.String("model", model),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", maxRetries+1))

		resp, err := g.models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			err = checkResponse(resp)
			if err == nil {
				return resp, nil
			}
		} else {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			err = fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}

		if !errors.Is(err, generation.ErrTransientFailure) {
			g.logger.WarnContext(ctx, "permanent error from Gemini, not retrying", slog.Any("error", err))
			return nil, err
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		// delay = base * 2^attempt * (0.5 + rand[0, 0.5))
		backoff := float64(baseDelay) * math.Pow(2, float64(attempt))
		delay := time.Duration(backoff * (0.5 + rand.Float64()*0.5))
		g.logger.InfoContext(ctx, "retrying Gemini call after delay",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err))
		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exceeded maximum retry attempts (%d): %w", maxRetries, lastErr)
}

func checkResponse(resp *genai.GenerateContentResponse) error {
	switch {
	case resp == nil:
		return fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	case resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "":
		return fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	case len(resp.Candidates) == 0:
		return fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	case resp.Candidates[0].FinishReason == genai.FinishReasonSafety:
		return fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	case resp.Candidates[0].Content == nil:
		return fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}
	return nil
}

func userContent(prompt string, image []byte, mimeType string) *genai.Content {
	parts := []*genai.Part{{Text: prompt}}
	if len(image) > 0 {
		if mimeType == "" {
			mimeType = "image/png"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: image, MIMEType: mimeType}})
	}
	return &genai.Content{Role: "user", Parts: parts}
}

func jsonConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// decodeJSON tolerates the markdown fences some models wrap JSON in.
func decodeJSON(text string, dst any) error {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), dst); err != nil {
		return fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}
	return nil
}

func hexColors(tokens *domain.TokenSet) []string {
	if tokens == nil {
		return nil
	}
	out := make([]string, 0, len(tokens.Color))
	for _, c := range tokens.Color {
		h := c.H
		if math.IsNaN(h) {
			h = 0
		}
		out = append(out, colorful.OkLch(c.L, c.C, h).Clamped().Hex())
	}
	return out
}

func positive(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v > 0 && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func nonNegative(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
