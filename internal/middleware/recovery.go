package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/models"
)

// Recovery turns a handler panic into a 500 JSON error. It sits outside
// RequestID, so the request id is read back from the response header. When the
// handler had already started the response, the panic is only logged.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			log.Error().
				Interface("panic", rec).
				Str("request_id", w.Header().Get(RequestIDHeader)).
				Str("method", r.Method).
				Str("route", route).
				Str("client", clientIP(r.RemoteAddr)).
				Bool("response_started", rw.wroteHeader).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered")

			if rw.wroteHeader {
				return
			}
			models.WriteError(w, http.StatusInternalServerError, "internal server error")
		}()
		next.ServeHTTP(rw, r)
	})
}
