package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MegaGrindStone/avatar-chat-ui/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requestLogger logs every request and records its Prometheus metrics. Metrics are labelled by route
// pattern, not path, to keep cardinality bounded.
func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// WrapResponseWriter keeps http.Flusher available for the SSE stream.
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}

				metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
				metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

				logger.Info("Request completed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Duration("latency", time.Since(start)),
					slog.String("requestID", middleware.GetReqID(r.Context())),
					slog.String("remoteAddr", r.RemoteAddr))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
