package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

// Limiter counts hits per key in a fixed window
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit allows limit requests per client IP and window under the key prefix.
// A failing limiter lets the request through.
func RateLimit(limiter Limiter, prefix string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), prefix+":"+ip, limit, window)
			if err != nil {
				slog.Warn("Rate limiter unavailable", "prefix", prefix, "error", err)
			} else if !allowed {
				w.Header().Set("Retry-After", retryAfter(window))
				response.TooManyRequests(w, "Too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
