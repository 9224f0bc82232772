package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/customer-be/internal/http/respond"
)

// Recorder receives a notification for each refused request.
type Recorder interface {
	RateLimited(limiter string)
}

// Limiter admits at most Limit requests per client inside Window.
type Limiter struct {
	Name    string
	Limit   int
	Window  time.Duration
	Message string
	// SkipSuccessful releases the hit again when the handler answers below 400,
	// so only failed requests count toward the limit.
	SkipSuccessful bool
	// TrustProxy takes the client address from the first X-Forwarded-For hop.
	TrustProxy bool

	Store    Store
	Logger   *zap.Logger
	Recorder Recorder
}

// Middleware enforces the limit in front of next.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.Name + ":" + ClientIP(r, l.TrustProxy)

		res, err := l.Store.Take(r.Context(), key, l.Limit, l.Window)
		if err != nil {
			logger.Warn("rate limit store unavailable", zap.String("limiter", l.Name), zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		setHeaders(w, res)
		if !res.Allowed {
			if l.Recorder != nil {
				l.Recorder.RateLimited(l.Name)
			}
			logger.Info("rate limit exceeded",
				zap.String("limiter", l.Name),
				zap.String("client", ClientIP(r, l.TrustProxy)),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", strconv.Itoa(secondsUntil(res.ResetAt)))
			respond.Error(w, http.StatusTooManyRequests, l.Message)
			return
		}

		if !l.SkipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if sw.status < http.StatusBadRequest {
			ctx := context.WithoutCancel(r.Context())
			if err := l.Store.Release(ctx, key, res.HitID); err != nil {
				logger.Warn("rate limit release failed", zap.String("limiter", l.Name), zap.Error(err))
			}
		}
	})
}

// ClientIP returns the address a request is attributed to.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setHeaders(w http.ResponseWriter, res Result) {
	h := w.Header()
	h.Set("RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
	h.Set("RateLimit-Reset", strconv.Itoa(secondsUntil(res.ResetAt)))
}

func secondsUntil(t time.Time) int {
	secs := int(math.Ceil(time.Until(t).Seconds()))
	return max(secs, 1)
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
