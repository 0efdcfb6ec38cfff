package middleware

import (
	"net/http"
	"time"

	"github.com/rpattn/projectanalysis/internal/logging"
)

// responseWriter captures HTTP status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// LoggingMiddleware attaches a request-scoped logger to the context and logs
// every request once it completes. It expects RequestIDMiddleware to run first.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		logger := logging.With().Logger()
		if id, ok := RequestIDFromContext(r.Context()); ok {
			logger = logger.With().Str("request_id", id).Logger()
		}
		ctx := logger.WithContext(r.Context())

		next.ServeHTTP(rw, r.WithContext(ctx))

		event := logger.Info()
		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			event = logger.Error()
		case rw.statusCode >= http.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Int("bytes", rw.written).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("[HTTP] request")
	})
}
