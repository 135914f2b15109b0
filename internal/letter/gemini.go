package letter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/atinyakov/chronos/internal/models"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements Generator on the Gemini API. Outbound calls
// are paced to at most rps per second across all callers.
type GeminiGenerator struct {
	models  contentGenerator
	model   string
	limiter ratelimit.Limiter
	log     *zap.Logger
}

// NewGeminiGenerator creates a client for apiKey.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, rps int, log *zap.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newGeminiGenerator(client.Models, model, rps, log), nil
}

func newGeminiGenerator(m contentGenerator, model string, rps int, log *zap.Logger) *GeminiGenerator {
	if model == "" {
		model = DefaultModel
	}
	limiter := ratelimit.NewUnlimited()
	if rps > 0 {
		limiter = ratelimit.New(rps)
	}
	return &GeminiGenerator{models: m, model: model, limiter: limiter, log: log}
}

var letterSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"subject": {Type: genai.TypeString},
		"content": {Type: genai.TypeString},
	},
	Required: []string{"subject", "content"},
}

// GenerateLetter rewrites req.UserThoughts into a letter.
func (g *GeminiGenerator) GenerateLetter(ctx context.Context, req models.LetterRequest) (models.Letter, error) {
	g.limiter.Take()

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(letterPrompt(req)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   letterSchema,
	})
	if err != nil {
		return models.Letter{}, fmt.Errorf("generate letter: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return models.Letter{}, ErrEmptyResponse
	}

	var l models.Letter
	if err := json.Unmarshal([]byte(text), &l); err != nil {
		return models.Letter{}, fmt.Errorf("decode letter: %w", err)
	}
	g.log.Debug("letter generated", zap.Int("length", len(l.Content)))
	return l, nil
}

// SuggestTitle proposes a short title for content. An empty answer yields
// FallbackTitle without an error.
func (g *GeminiGenerator) SuggestTitle(ctx context.Context, content string) (string, error) {
	g.limiter.Take()

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(titlePrompt(content)), nil)
	if err != nil {
		return "", fmt.Errorf("suggest title: %w", err)
	}
	title := strings.Trim(strings.TrimSpace(resp.Text()), `"`)
	if title == "" {
		return FallbackTitle, nil
	}
	return title, nil
}
