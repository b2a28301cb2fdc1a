package middleware

import (
	"net/http"
	"time"

	"github.com/wanderlyst/tripmatch/internal/logging"
)

type RequestLogger struct {
	logger *logging.Logger
}

func NewRequestLogger(logger *logging.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Apply logs one entry per request. Server errors log at ERROR with the
// raw query string attached; client errors at WARN; everything else at
// INFO. The query is only attached for server errors to keep tokens and
// search terms out of routine logs.
func (rl *RequestLogger) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			if r.URL.RawQuery != "" {
				fields["query"] = r.URL.RawQuery
			}
			rl.logger.Error("request failed", fields)
		case rec.status >= http.StatusBadRequest:
			rl.logger.Warn("request rejected", fields)
		default:
			rl.logger.Info("request", fields)
		}
	})
}
