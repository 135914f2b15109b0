package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/letter"
	"github.com/atinyakov/chronos/internal/models"
	handler "github.com/atinyakov/chronos/internal/server/handler/http"
)

type fakeGenerator struct {
	letter models.Letter
	title  string
	err    error
	got    models.LetterRequest
}

func (f *fakeGenerator) GenerateLetter(_ context.Context, req models.LetterRequest) (models.Letter, error) {
	f.got = req
	return f.letter, f.err
}

func (f *fakeGenerator) SuggestTitle(context.Context, string) (string, error) {
	return f.title, f.err
}

type letterFailure struct {
	Error    string          `json:"error"`
	Message  string          `json:"message"`
	Fallback json.RawMessage `json:"fallback"`
}

func TestLetters_Generate(t *testing.T) {
	gen := &fakeGenerator{letter: models.Letter{Subject: "Dear future me", Content: "..."}}
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: gen, Log: zap.NewNop()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/generate", `{"userThoughts":"summer","durationDescription":"1 year"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"subject":"Dear future me","content":"..."}`, w.Body.String())
	assert.Equal(t, "1 year", gen.got.DurationDescription)
}

func TestLetters_GenerateUnavailable(t *testing.T) {
	r := newRouter(&fakeCapsuleService{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/generate", `{"userThoughts":"summer"}`))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body letterFailure
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.JSONEq(t, `{"subject":"A Letter from the Past","content":"summer"}`, string(body.Fallback))
}

func TestLetters_GenerateMissingThoughts(t *testing.T) {
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: &fakeGenerator{}, Log: zap.NewNop()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/generate", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLetters_GenerateFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: gen, Log: zap.NewNop()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/generate", `{"userThoughts":"hi"}`))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body letterFailure
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Failed to generate letter", body.Error)
	assert.Contains(t, body.Message, "model overloaded")
	assert.JSONEq(t, `{"subject":"A Letter from the Past","content":"hi"}`, string(body.Fallback))
}

func TestLetters_Title(t *testing.T) {
	gen := &fakeGenerator{title: "Summer of Light"}
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: gen, Log: zap.NewNop()})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"we swam"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"title":"Summer of Light"}`, w.Body.String())

	gen.err = errors.New("down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"we swam"}`))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body letterFailure
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, `"`+letter.FallbackTitle+`"`, string(body.Fallback))
}

func TestLetters_TitleUnavailable(t *testing.T) {
	r := newRouter(&fakeCapsuleService{}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"x"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), letter.FallbackTitle)
}

func TestLetters_RateLimited(t *testing.T) {
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: &fakeGenerator{title: "t"}, Log: zap.NewNop()})

	var last int
	for i := 0; i < 11; i++ {
		req := jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"x"}`)
		req.RemoteAddr = "192.0.2.7:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		last = w.Code
		if i < 10 {
			require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		}
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestLetters_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	r := newRouter(&fakeCapsuleService{}, &handler.LetterHandler{Generator: &fakeGenerator{title: "t"}, Log: zap.NewNop()})

	rejected := 0
	for i := 0; i < 30; i++ {
		req := jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"x"}`)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	assert.Equal(t, 20, rejected)
}

func TestLetters_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	opts := testRouterOptions
	opts.TrustProxy = true
	r := newRouterWith(&fakeCapsuleService{}, &handler.LetterHandler{Generator: &fakeGenerator{title: "t"}, Log: zap.NewNop()}, &fakeUserService{}, opts)

	for i := 0; i < 15; i++ {
		req := jsonRequest(http.MethodPost, "/api/letters/title", `{"content":"x"}`)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
}

func TestHealth(t *testing.T) {
	h := &handler.HealthHandler{
		GeneratorAvailable: true,
		Now:                func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","geminiAvailable":true,"timestamp":"2025-03-01T12:00:00Z"}`, w.Body.String())
}

func TestHealth_Public(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&fakeCapsuleService{}, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"geminiAvailable":false`)
}
