package notes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/obs"
)

// Publisher receives an event after every successful mutation.
type Publisher interface {
	Publish(ev Event)
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher registers p to receive mutation events.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service validates note operations and runs them against a Store.
type Service struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// NewService creates a notes service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// List returns one page of notes.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	items, total, err := s.store.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if items == nil {
		items = []Note{}
	}
	return &ListResult{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
		Pages: PageCount(total, params.Limit),
	}, nil
}

// Get returns the note with the given id.
func (s *Service) Get(ctx context.Context, id string) (*Note, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	note, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return note, nil
}

// Create validates in and inserts a new note.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Note, error) {
	draft, err := NewDraft(in)
	if err != nil {
		return nil, err
	}
	note, err := s.store.Insert(ctx, draft, s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	s.logger(ctx).Debug("note_created", "note_id", note.ID, "title", logutil.Preview(note.Title, 40))
	s.publish(ActionCreated, *note)
	return note, nil
}

// Update validates in and applies it to the note with the given id. An
// empty patch only refreshes updatedAt.
func (s *Service) Update(ctx context.Context, id string, in PatchInput) (*Note, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	patch, err := NewPatch(in)
	if err != nil {
		return nil, err
	}
	note, err := s.store.Update(ctx, id, patch, s.timestamp())
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	s.logger(ctx).Debug("note_updated", "note_id", note.ID, "title_changed", patch.Title != nil, "body_changed", patch.Body != nil)
	s.publish(ActionUpdated, *note)
	return note, nil
}

// Delete removes the note with the given id and returns it.
func (s *Service) Delete(ctx context.Context, id string) (*Note, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	note, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	s.logger(ctx).Debug("note_deleted", "note_id", note.ID)
	s.publish(ActionDeleted, *note)
	return note, nil
}

// timestamp is millisecond precision, the coarsest any store keeps.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Service) publish(action Action, note Note) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(Event{Action: action, Note: note})
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "notes")
}
