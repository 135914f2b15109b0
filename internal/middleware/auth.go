// Package middleware provides HTTP middlewares for authentication, rate
// limiting and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const ownerKey ctxKey = "owner"

const (
	healthPath    = "/health"
	registerPath  = "/api/register"
	lettersPrefix = "/api/letters/"
)

// LoginRecorder is told about every authenticated request.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, ownerID string)
}

// OwnerAuth is a middleware that enforces mutual TLS authentication.
//
// It extracts the Common Name (CN) from the client's certificate and stores
// it in the request context as the owner ID. Every capsule operation is
// scoped to that owner. Health checks, registration and letter generation
// do not touch owner data and are served without a certificate.
func OwnerAuth(next http.Handler) http.Handler {
	return TrackedOwnerAuth(nil)(next)
}

// TrackedOwnerAuth is OwnerAuth that also reports each authenticated owner
// to logins before serving the request. A nil logins records nothing.
func TrackedOwnerAuth(logins LoginRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
				http.Error(w, "no client certificate provided", http.StatusUnauthorized)
				return
			}
			owner := r.TLS.PeerCertificates[0].Subject.CommonName
			if owner == "" {
				http.Error(w, "client certificate has no common name", http.StatusUnauthorized)
				return
			}
			ctx := WithOwnerID(r.Context(), owner)
			if logins != nil {
				logins.RecordLogin(ctx, owner)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithOwnerID returns a copy of ctx carrying ownerID.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// GetOwnerIDFromContext extracts the owner ID (Common Name from client
// certificate) from the request context. Returns an empty string if not found.
func GetOwnerIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ownerKey).(string); ok {
		return s
	}
	return ""
}

func isPublic(path string) bool {
	return path == healthPath || path == registerPath || strings.HasPrefix(path, lettersPrefix)
}
