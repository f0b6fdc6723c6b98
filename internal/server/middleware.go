package server

import (
	"net/http"
	"runtime/debug"

	"github.com/kuitang/notes-api/internal/api"
	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/obs"
)

func withObservability(next http.Handler) http.Handler {
	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("http", next))
}

// recoverMiddleware turns a handler panic into a 500 and logs the request
// with redacted headers.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped, recorder := obs.NewResponseRecorder(w)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			obs.From(r.Context()).With("pkg", "server").Error("handler_panic",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"headers", logutil.HeadersForLog(r.Header),
				"stack", string(debug.Stack()),
			)
			if !recorder.WroteHeader() {
				api.WriteInternalError(wrapped)
			}
		}()
		next.ServeHTTP(wrapped, r)
	})
}

// securityHeaders sets conservative response headers for a JSON API.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}
