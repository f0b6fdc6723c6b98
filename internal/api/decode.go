package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/notes-api/internal/errs"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// noteFields holds the string fields of a note payload. Absent and null
// fields are nil. Unknown fields are ignored.
type noteFields struct {
	Title *string
	Body  *string

	mistyped []errs.FieldViolation
}

var noteFieldLabels = []struct {
	name  string
	label string
}{
	{"title", "Title"},
	{"body", "Body"},
}

// decodeNoteFields reads a JSON object body. A body that is not a JSON
// object is Malformed; a field of the wrong type is recorded and reported
// together with the validation result by withTypeErrors.
func decodeNoteFields(w http.ResponseWriter, r *http.Request) (noteFields, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return noteFields{}, errs.Wrap(errs.TooLarge, "Request body too large", err)
		}
		return noteFields{}, errs.Wrap(errs.Malformed, "Failed to read request body", err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return noteFields{}, errs.Wrap(errs.Malformed, "Malformed JSON: body must be a JSON object", err)
	}

	var f noteFields
	for _, field := range noteFieldLabels {
		v, ok := obj[field.name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			f.mistyped = append(f.mistyped, errs.FieldViolation{
				Path:    field.name,
				Message: field.label + " must be a string",
			})
			continue
		}
		switch field.name {
		case "title":
			f.Title = &s
		case "body":
			f.Body = &s
		}
	}
	return f, nil
}

// withTypeErrors merges wrong-type fields into validationErr, dropping any
// violation validation reported for a field that was mistyped. It returns
// nil when there is nothing to report.
func (f noteFields) withTypeErrors(validationErr error) error {
	if len(f.mistyped) == 0 {
		return validationErr
	}
	skip := make(map[string]bool, len(f.mistyped))
	for _, v := range f.mistyped {
		skip[v.Path] = true
	}
	details := append([]errs.FieldViolation(nil), f.mistyped...)
	for _, v := range errs.DetailsOf(validationErr) {
		if !skip[v.Path] {
			details = append(details, v)
		}
	}
	return errs.Invalid(details...)
}
