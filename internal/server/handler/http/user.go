package http

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/chronos/internal/middleware"
	"github.com/atinyakov/chronos/internal/models"
	"github.com/atinyakov/chronos/internal/service"
)

// UserService defines the owner account operations required by the
// UserHandler and the authentication middleware.
type UserService interface {
	Register(ctx context.Context, login, displayName string) (models.User, service.Credentials, error)
	Profile(ctx context.Context, login string) (models.User, error)
	RecordLogin(ctx context.Context, login string)
}

// UserHandler handles registration and profile requests.
type UserHandler struct {
	UserService UserService
	Log         *zap.Logger
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Login       string `json:"login"`
	DisplayName string `json:"displayName"`
}

// RegisterResponse carries the new profile and the PEM-encoded credentials
// the owner connects with.
type RegisterResponse struct {
	User models.User `json:"user"`
	Cert string      `json:"cert"`
	Key  string      `json:"key"`
	CA   string      `json:"ca"`
}

// Register handles POST /api/register. It creates the profile and issues a
// client certificate whose Common Name is the login.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request"})
		return
	}

	u, creds, err := h.UserService.Register(r.Context(), req.Login, req.DisplayName)
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{
		User: u,
		Cert: string(creds.Cert),
		Key:  string(creds.Key),
		CA:   string(creds.CA),
	})
}

// Me handles GET /api/me and returns the caller's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.UserService.Profile(ctx, middleware.GetOwnerIDFromContext(ctx))
	if err != nil {
		writeServiceError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
