// Package http provides the HTTP handlers and routing of the capsule API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/feed"
	"github.com/atinyakov/chronos/internal/middleware"
	"github.com/atinyakov/chronos/internal/models"
)

const (
	// MaxUploadSize is the largest attachment accepted by Upload.
	MaxUploadSize = 10 << 20
	// multipartOverhead leaves room for form boundaries and headers.
	multipartOverhead = 1 << 20
	// DefaultKeepAlive is the comment interval on idle snapshot streams.
	DefaultKeepAlive = 25 * time.Second
)

// CapsuleService defines the capsule operations required by the
// CapsuleHandler.
type CapsuleService interface {
	List(ctx context.Context, ownerID string) ([]models.Capsule, error)
	Subscribe(ctx context.Context, ownerID string) (*feed.Subscription, error)
	Seal(ctx context.Context, ownerID string, d models.Draft) (models.Capsule, error)
	QuickNote(ctx context.Context, ownerID, note string) (models.Capsule, error)
	Open(ctx context.Context, ownerID, id string) (models.Capsule, error)
	Delete(ctx context.Context, ownerID, id string) error
	UploadAttachment(ctx context.Context, ownerID, filename, contentType string, data []byte) (models.Attachment, error)
}

// CapsuleHandler handles HTTP requests for the owner's capsules.
type CapsuleHandler struct {
	CapsuleService CapsuleService
	Log            *zap.Logger
	// KeepAlive overrides DefaultKeepAlive when positive.
	KeepAlive time.Duration
}

// List handles GET /api/capsules and writes the owner's full snapshot.
func (h *CapsuleHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	capsules, err := h.CapsuleService.List(ctx, middleware.GetOwnerIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, capsules)
}

// Stream handles GET /api/capsules/stream. It writes the current snapshot
// as a server-sent event, then a new one after every change, until the
// client disconnects.
func (h *CapsuleHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.GetOwnerIDFromContext(ctx)

	sub, err := h.CapsuleService.Subscribe(ctx, owner)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	defer sub.Unsubscribe()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(snapshot)
			if err != nil {
				h.Log.Error("encode snapshot", zap.Error(err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Seal handles POST /api/capsules with a models.Draft body and responds
// with the created capsule.
func (h *CapsuleHandler) Seal(w http.ResponseWriter, r *http.Request) {
	var d models.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	ctx := r.Context()
	c, err := h.CapsuleService.Seal(ctx, middleware.GetOwnerIDFromContext(ctx), d)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// QuickRequest is the body of POST /api/capsules/quick.
type QuickRequest struct {
	Note string `json:"note"`
}

// Quick handles POST /api/capsules/quick.
func (h *CapsuleHandler) Quick(w http.ResponseWriter, r *http.Request) {
	var req QuickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body"})
		return
	}
	ctx := r.Context()
	c, err := h.CapsuleService.QuickNote(ctx, middleware.GetOwnerIDFromContext(ctx), req.Note)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Open handles POST /api/capsules/{id}/open. A capsule that is still
// time-locked yields 423 with its unlock time.
func (h *CapsuleHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.CapsuleService.Open(ctx, middleware.GetOwnerIDFromContext(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/capsules/{id}.
func (h *CapsuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.CapsuleService.Delete(ctx, middleware.GetOwnerIDFromContext(ctx), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upload handles POST /api/attachments, a multipart form with one "file"
// part of at most MaxUploadSize bytes, and responds with the stored
// attachment.
func (h *CapsuleHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "file exceeds 10MB limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable file"})
		return
	}
	if len(data) > MaxUploadSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "file exceeds 10MB limit"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	ctx := r.Context()
	a, err := h.CapsuleService.UploadAttachment(ctx, middleware.GetOwnerIDFromContext(ctx), header.Filename, contentType, data)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}
