package notes

import (
	"time"

	"github.com/google/uuid"
	"github.com/kuitang/notes-api/internal/errs"
)

const (
	// TitleMaxLen is the maximum title length in characters, after trimming.
	TitleMaxLen = 100
	// BodyMaxLen is the maximum body length in characters, after trimming.
	BodyMaxLen = 10000
)

// Note is a titled text document.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListResult is one page of notes plus pagination metadata.
type ListResult struct {
	Items []Note `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}

// Action names a successful mutation.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// Event is published after every successful mutation.
type Event struct {
	Action Action
	Note   Note
}

var (
	// ErrNotFound is returned when no note has the requested id.
	ErrNotFound = errs.New(errs.NotFound, "Note not found")

	// ErrInvalidID is returned when an id is not a well-formed note id.
	ErrInvalidID = errs.New(errs.Malformed, "Invalid id format")
)

// DuplicateTitle reports that title collides with an existing note's title.
func DuplicateTitle(title string) error {
	return errs.Duplicate("title must be unique", map[string]any{"title": title})
}

// NewID returns a fresh note id.
func NewID() string {
	return uuid.NewString()
}

// ParseID validates id and returns its canonical form.
func ParseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}

// NextUpdatedAt returns the updatedAt value for a mutation at now, keeping
// updatedAt strictly increasing even when the clock has not advanced past
// the previous value at millisecond resolution.
func NextUpdatedAt(prev, now time.Time) time.Time {
	floor := prev.Add(time.Millisecond)
	if now.Before(floor) {
		return floor
	}
	return now
}
