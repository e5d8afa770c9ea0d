package middleware

import (
	"net/http"
	"time"

	"llm_router/internal/utils"
)

// statusRecorder captures the response status. It keeps Flush working for
// SSE handlers and exposes the wrapped writer to http.ResponseController.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wroteHeader {
		sr.status = code
		sr.wroteHeader = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		if !sr.wroteHeader {
			sr.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// AccessLog logs each request and reports it to obs. The route label is the
// matched ServeMux pattern so that metrics stay bounded.
func AccessLog(obs Observer) Middleware {
	if obs == nil {
		obs = NopObserver{}
	}
	logger := utils.NewLogger("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveHTTPRequest(r.Method, route, rec.status, elapsed)

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", elapsed,
				"request_id", GetRequestID(r.Context()),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn("Request failed", kv...)
				return
			}
			logger.Debug("Request served", kv...)
		})
	}
}

// Recover turns a handler panic into a 500 response.
func Recover(next http.Handler) http.Handler {
	logger := utils.NewLogger("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("Handler panicked", "path", r.URL.Path, "panic", v, "request_id", GetRequestID(r.Context()))
				if !rec.wroteHeader {
					utils.RespondWithError(rec, http.StatusInternalServerError, "server_error", "internal server error")
				}
			}
		}()
		next.ServeHTTP(rec, r)
	})
}
