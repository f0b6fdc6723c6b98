package notes

import (
	"context"
	"time"
)

// Store persists notes. Implementations enforce title uniqueness with a
// unique index, never by reading before writing, and report collisions
// with DuplicateTitle and missing ids with ErrNotFound.
type Store interface {
	// List returns the requested page and the total number of notes.
	List(ctx context.Context, params ListParams) ([]Note, int64, error)
	Get(ctx context.Context, id string) (*Note, error)
	// Insert assigns a new id and sets createdAt and updatedAt to now.
	Insert(ctx context.Context, draft Draft, now time.Time) (*Note, error)
	// Update applies the supplied patch fields and sets updatedAt to
	// NextUpdatedAt(previous updatedAt, now).
	Update(ctx context.Context, id string, patch Patch, now time.Time) (*Note, error)
	// Delete removes the note and returns it as it was.
	Delete(ctx context.Context, id string) (*Note, error)
	Ping(ctx context.Context) error
	Close() error
}
