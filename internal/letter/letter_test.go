package letter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/atinyakov/chronos/internal/models"
)

type fakeModels struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestFallback(t *testing.T) {
	assert.Equal(t, models.Letter{Subject: FallbackSubject, Content: "hi"}, Fallback("hi"))
	assert.Equal(t, models.Letter{Subject: FallbackSubject, Content: FallbackContent}, Fallback(""))
	assert.Equal(t, FallbackContent, Fallback("  ").Content)
}

func TestLetterPrompt(t *testing.T) {
	p := letterPrompt(models.LetterRequest{UserThoughts: "I miss the sea"})
	assert.Contains(t, p, "opened in the future.")
	assert.Contains(t, p, `"I miss the sea"`)

	p = letterPrompt(models.LetterRequest{UserThoughts: "x", DurationDescription: "5 years"})
	assert.Contains(t, p, "opened in 5 years.")
}

func TestGenerateLetter(t *testing.T) {
	fm := &fakeModels{text: `{"subject":"Dear me","content":"Hello from 2025"}`}
	g := newGeminiGenerator(fm, "", 0, zap.NewNop())

	l, err := g.GenerateLetter(context.Background(), models.LetterRequest{UserThoughts: "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.Letter{Subject: "Dear me", Content: "Hello from 2025"}, l)
	assert.Equal(t, DefaultModel, fm.model)
	require.NotNil(t, fm.config)
	assert.Equal(t, "application/json", fm.config.ResponseMIMEType)
	assert.Equal(t, []string{"subject", "content"}, fm.config.ResponseSchema.Required)
}

func TestGenerateLetter_Errors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	cases := []struct {
		name string
		fm   *fakeModels
		is   error
	}{
		{"upstream", &fakeModels{err: upstream}, upstream},
		{"empty", &fakeModels{text: "  "}, ErrEmptyResponse},
		{"malformed", &fakeModels{text: "not json"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGeminiGenerator(tc.fm, "m", 100, zap.NewNop())
			_, err := g.GenerateLetter(context.Background(), models.LetterRequest{UserThoughts: "x"})
			require.Error(t, err)
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}

func TestSuggestTitle(t *testing.T) {
	fm := &fakeModels{text: " \"Summer of Small Joys\"\n"}
	g := newGeminiGenerator(fm, "custom", 0, zap.NewNop())

	title, err := g.SuggestTitle(context.Background(), "we swam every day")
	require.NoError(t, err)
	assert.Equal(t, "Summer of Small Joys", title)
	assert.Equal(t, "custom", fm.model)
	assert.Contains(t, fm.prompt, "3-5 word title")

	fm.text = ""
	title, err = g.SuggestTitle(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, FallbackTitle, title)

	fm.err = errors.New("down")
	_, err = g.SuggestTitle(context.Background(), "x")
	assert.Error(t, err)
}
