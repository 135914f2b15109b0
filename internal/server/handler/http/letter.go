package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/letter"
	"github.com/atinyakov/chronos/internal/models"
)

// LetterHandler serves letter generation and title suggestions. Every
// failure response carries a fallback the caller can use as is.
type LetterHandler struct {
	// Generator is nil when no model is configured.
	Generator letter.Generator
	Log       *zap.Logger
}

// Generate handles POST /api/letters/generate with a models.LetterRequest
// body and responds with a models.Letter.
func (h *LetterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req models.LetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	fallback := letter.Fallback(req.UserThoughts)

	if h.Generator == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:    "letter generation is not available",
			Fallback: fallback,
		})
		return
	}
	if strings.TrimSpace(req.UserThoughts) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "userThoughts is required"})
		return
	}

	l, err := h.Generator.GenerateLetter(r.Context(), req)
	if err != nil {
		h.Log.Warn("letter generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:    "Failed to generate letter",
			Message:  err.Error(),
			Fallback: fallback,
		})
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// TitleRequest is the body of POST /api/letters/title.
type TitleRequest struct {
	Content string `json:"content"`
}

// TitleResponse is the success body of POST /api/letters/title.
type TitleResponse struct {
	Title string `json:"title"`
}

// Title handles POST /api/letters/title.
func (h *LetterHandler) Title(w http.ResponseWriter, r *http.Request) {
	var req TitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	if h.Generator == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:    "letter generation is not available",
			Fallback: letter.FallbackTitle,
		})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "content is required"})
		return
	}

	title, err := h.Generator.SuggestTitle(r.Context(), req.Content)
	if err != nil {
		h.Log.Warn("title suggestion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:    "Failed to suggest title",
			Fallback: letter.FallbackTitle,
		})
		return
	}
	writeJSON(w, http.StatusOK, TitleResponse{Title: title})
}
