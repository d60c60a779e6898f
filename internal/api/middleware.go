package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"habitat/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// withLogging tags the request with an ID, logs completion and records the
// request counters. Routes are labelled by mux pattern to bound cardinality.
func withLogging(next http.Handler, logger *slog.Logger, collectors *metrics.Collectors) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
			r.Header.Set(requestIDHeader, requestID)
		}
		w.Header().Set(requestIDHeader, requestID)
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		if logger != nil {
			logger.Debug("request completed",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"response_size", rw.size,
				"duration_ms", duration.Milliseconds(),
			)
		}
		if collectors != nil {
			status := strconv.Itoa(rw.status)
			collectors.HTTPRequests.WithLabelValues(r.Method, endpoint, status).Inc()
			collectors.HTTPDuration.WithLabelValues(r.Method, endpoint, status).Observe(duration.Seconds())
		}
	})
}

func withRecovery(next http.Handler, logger *slog.Logger, collectors *metrics.Collectors) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if logger != nil {
					logger.Error("panic recovered",
						"request_id", r.Header.Get(requestIDHeader),
						"method", r.Method,
						"path", r.URL.Path,
						"panic", err,
						"stack", string(debug.Stack()),
					)
				}
				collectors.PanicRecovered("http_handler")
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
