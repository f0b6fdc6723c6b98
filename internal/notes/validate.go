package notes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kuitang/notes-api/internal/errs"
)

// CreateInput is the raw create payload. Nil fields were absent or null.
type CreateInput struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// PatchInput is the raw partial-update payload. Nil fields are left untouched.
type PatchInput struct {
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// Draft is a validated, trimmed note ready to be inserted. Build it with NewDraft.
type Draft struct {
	Title string `json:"title" validate:"required,max=100"`
	Body  string `json:"body" validate:"max=10000"`
}

// Patch is a validated, trimmed partial update. Build it with NewPatch.
type Patch struct {
	Title *string `json:"title" validate:"omitnil,min=1,max=100"`
	Body  *string `json:"body" validate:"omitnil,max=10000"`
}

// IsEmpty reports whether the patch changes no field.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Body == nil
}

var validate = newValidator()

var fieldLabels = map[string]string{
	"title": "Title",
	"body":  "Body",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewDraft trims and validates a create payload. Every violated field is
// reported in one InvalidArgument error.
func NewDraft(in CreateInput) (Draft, error) {
	d := Draft{
		Title: trimmed(in.Title),
		Body:  trimmed(in.Body),
	}
	if err := validate.Struct(d); err != nil {
		return Draft{}, violations(err)
	}
	return d, nil
}

// NewPatch trims and validates a partial-update payload.
func NewPatch(in PatchInput) (Patch, error) {
	var p Patch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		p.Title = &title
	}
	if in.Body != nil {
		body := strings.TrimSpace(*in.Body)
		p.Body = &body
	}
	if err := validate.Struct(p); err != nil {
		return Patch{}, violations(err)
	}
	return p, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func violations(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Wrap(errs.Internal, "validation failed", err)
	}
	details := make([]errs.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, errs.FieldViolation{
			Path:    fe.Field(),
			Message: violationMessage(fe),
		})
	}
	return errs.Invalid(details...)
}

func violationMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return label + " cannot be empty"
	case "max":
		return fmt.Sprintf("%s cannot be more than %s characters", label, fe.Param())
	default:
		return label + " is invalid"
	}
}
