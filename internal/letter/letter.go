// Package letter turns an owner's raw thoughts into a letter to their future
// self, and suggests capsule titles, using a generative model.
package letter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/chronos/internal/models"
)

const (
	// FallbackSubject is used whenever no generated letter is available.
	FallbackSubject = "A Letter from the Past"
	// FallbackContent is used when the owner supplied no thoughts either.
	FallbackContent = "Remember this moment."
	// FallbackTitle replaces a missing or failed title suggestion.
	FallbackTitle = "My Time Capsule"
)

// ErrEmptyResponse is returned when the model answered with no text.
var ErrEmptyResponse = errors.New("no response from model")

// Generator produces letters and titles.
type Generator interface {
	GenerateLetter(ctx context.Context, req models.LetterRequest) (models.Letter, error)
	SuggestTitle(ctx context.Context, content string) (string, error)
}

// Fallback returns the deterministic letter used when generation is
// unavailable or fails.
func Fallback(thoughts string) models.Letter {
	content := thoughts
	if strings.TrimSpace(content) == "" {
		content = FallbackContent
	}
	return models.Letter{Subject: FallbackSubject, Content: content}
}

func letterPrompt(req models.LetterRequest) string {
	when := req.DurationDescription
	if strings.TrimSpace(when) == "" {
		when = "the future"
	}
	return fmt.Sprintf(`You are a time travel assistant. The user is creating a time capsule to be opened in %s.
The user has provided some raw thoughts/notes: %q.

Please rewrite these thoughts into a beautiful, meaningful letter to their future self.
The tone should be nostalgic yet hopeful.
Return the result in JSON format with 'subject' and 'content' fields.`, when, req.UserThoughts)
}

func titlePrompt(content string) string {
	return fmt.Sprintf("Suggest a short, creative, 3-5 word title for a time capsule containing this message: %q. Return only the title text.", content)
}
