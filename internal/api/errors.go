package api

import (
	"encoding/json"
	"net/http"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Details []errs.FieldViolation `json:"details,omitempty"`
	Fields  map[string]any        `json:"fields,omitempty"`
	Path    string                `json:"path,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError is the single translation point from coded errors to
// HTTP responses. Server-side failures are logged with their cause; the
// client only sees an opaque message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		obs.From(r.Context()).With("pkg", "api").Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"err", err,
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   errs.Kind(code),
		Message: errs.MessageOf(err),
		Details: errs.DetailsOf(err),
		Fields:  errs.FieldsOf(err),
	})
}

// NotFoundHandler answers requests that match no route.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   errs.Kind(errs.NotFound),
		Message: "Route not found",
		Path:    r.URL.Path,
	})
}

// WriteInternalError writes the opaque 500 body without logging.
func WriteInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   errs.Kind(errs.Internal),
		Message: "internal error",
	})
}
