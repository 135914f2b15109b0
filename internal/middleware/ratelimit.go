package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimitMessage is the error body sent with 429 responses.
const RateLimitMessage = "Too many requests. Please try again later."

// RateLimit allows limit requests per window from each client address,
// counted in fixed windows that start at a client's first request. Requests
// over the limit get 429 with a JSON error. limit <= 0 disables limiting.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := limiter.New(memory.NewStore(), limiter.Rate{Period: window, Limit: int64(limit)})
	return stdlib.NewMiddleware(l,
		stdlib.WithKeyGetter(clientAddr),
		stdlib.WithLimitReachedHandler(rateLimited),
	).Handler
}

func rateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": RateLimitMessage})
}

// clientAddr is RemoteAddr without its port. That is the socket peer
// unless the router trusts a proxy and rewrote it with chi's RealIP.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
