package appMiddleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// LoginThrottle caps login attempts per email (falling back to client IP)
// within a one-minute window. Counters live in an in-process TTL cache; they
// expire on their own, so a crashed window never locks anyone out for long.
func LoginThrottle(logger *slog.Logger, maxPerMin int) func(next http.Handler) http.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 10
	}
	attempts := gocache.New(time.Minute, 5*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := throttleKey(r)

			n, err := attempts.IncrementInt64(key, 1)
			if err != nil {
				attempts.Set(key, int64(1), gocache.DefaultExpiration)
				n = 1
			}
			if n > int64(maxPerMin) {
				logger.WarnContext(r.Context(), "Login attempts throttled",
					slog.String("key", key),
					slog.Int64("attempts", n),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":"too many login attempts, try again later"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// throttleKey prefers the email from the request body so a single address
// cannot be hammered from many IPs; the body is restored for the handler.
func throttleKey(r *http.Request) string {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err == nil {
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	}

	var probe struct {
		Email string `json:"email"`
	}
	if err == nil && json.Unmarshal(body, &probe) == nil {
		if email := strings.ToLower(strings.TrimSpace(probe.Email)); email != "" {
			return "login:" + email
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "login:ip:" + host
}
