package httpadapter

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type rejectionRecorder interface {
	RecordRejected(reason string)
}

func rateLimitMiddleware(next http.Handler, rps float64, burst int, rejected rejectionRecorder) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLimitedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		reservation := limiter.Reserve()
		if !reservation.OK() {
			reject(w, rejected, "rate_limited", http.StatusTooManyRequests, time.Second)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			reject(w, rejected, "rate_limited", http.StatusTooManyRequests, delay)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware admits at most maxInFlight concurrent requests and
// waits up to waitTimeout for a slot before answering 503.
func backpressureMiddleware(next http.Handler, maxInFlight int, waitTimeout time.Duration) http.Handler {
	return backpressureWithRecorder(next, maxInFlight, waitTimeout, nil)
}

func backpressureWithRecorder(next http.Handler, maxInFlight int, waitTimeout time.Duration, rejected rejectionRecorder) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLimitedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		timer := time.NewTimer(waitTimeout)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
		case <-timer.C:
			reject(w, rejected, "overloaded", http.StatusServiceUnavailable, time.Second)
			return
		case <-r.Context().Done():
			reject(w, rejected, "client_gone", http.StatusServiceUnavailable, time.Second)
			return
		}
		defer func() { <-slots }()

		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(next http.Handler, apiKey string, rejected rejectionRecorder) http.Handler {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}
		if !isAuthorizedBearerHeader(r.Header.Get("Authorization"), apiKey) {
			if rejected != nil {
				rejected.RecordRejected("unauthorized")
			}
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	const prefix = "bearer "
	if len(headerValue) <= len(prefix) || !strings.EqualFold(headerValue[:len(prefix)], prefix) {
		return false
	}
	token := strings.TrimSpace(headerValue[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}

// Health, metrics and the API document stay reachable under load.
func isLimitedPath(path string) bool {
	return strings.HasPrefix(path, "/v1/")
}

func reject(w http.ResponseWriter, rejected rejectionRecorder, reason string, status int, retryAfter time.Duration) {
	if rejected != nil {
		rejected.RecordRejected(reason)
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	switch status {
	case http.StatusTooManyRequests:
		writeError(w, status, "rate limit exceeded")
	default:
		writeError(w, status, "server is busy, retry later")
	}
}
