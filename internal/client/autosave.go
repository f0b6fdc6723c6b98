package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

// DefaultAutosaveDelay is the quiet period before pending edits are saved.
const DefaultAutosaveDelay = time.Second

// ErrAutosaverClosed is returned by edits after Close.
var ErrAutosaverClosed = errors.New("autosaver closed")

// SaveStatus reports the progress of one save.
type SaveStatus string

const (
	StatusSaving SaveStatus = "saving"
	StatusSaved  SaveStatus = "saved"
	StatusError  SaveStatus = "error"
)

// SaveEvent is delivered to the status callback. Note is set when Status is
// StatusSaved and Err when it is StatusError.
type SaveEvent struct {
	Status SaveStatus
	Note   *notes.Note
	Err    error
}

// AutosaveOption configures an Autosaver.
type AutosaveOption func(*Autosaver)

// WithDelay sets the quiet period.
func WithDelay(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.delay = d
		}
	}
}

// WithStatusFunc registers a callback for save progress. It runs on the
// saving goroutine and must not block.
func WithStatusFunc(fn func(SaveEvent)) AutosaveOption {
	return func(a *Autosaver) { a.onStatus = fn }
}

// WithSaveTimeout bounds each background save.
func WithSaveTimeout(d time.Duration) AutosaveOption {
	return func(a *Autosaver) {
		if d > 0 {
			a.saveTimeout = d
		}
	}
}

// Autosaver debounces edits to one note. Every edit restarts the timer;
// once no edit arrives for the delay, the merged pending fields are sent as
// a single PATCH. Saves are not serialized against each other, so the last
// one to land wins.
type Autosaver struct {
	client      *Client
	id          string
	delay       time.Duration
	saveTimeout time.Duration
	onStatus    func(SaveEvent)

	mu       sync.Mutex
	pending  notes.PatchInput
	dirty    bool
	timer    *time.Timer
	closed   bool
	inFlight sync.WaitGroup
}

// NewAutosaver returns an Autosaver for note id.
func (c *Client) NewAutosaver(id string, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		client:      c,
		id:          id,
		delay:       DefaultAutosaveDelay,
		saveTimeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetTitle records a title edit.
func (a *Autosaver) SetTitle(title string) error {
	return a.Edit(notes.PatchInput{Title: &title})
}

// SetBody records a body edit.
func (a *Autosaver) SetBody(body string) error {
	return a.Edit(notes.PatchInput{Body: &body})
}

// Edit merges the supplied fields into the pending patch and restarts the
// quiet period. Later values for the same field replace earlier ones.
func (a *Autosaver) Edit(in notes.PatchInput) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAutosaverClosed
	}
	if in.Title != nil {
		a.pending.Title = in.Title
	}
	if in.Body != nil {
		a.pending.Body = in.Body
	}
	if in.Title == nil && in.Body == nil {
		return nil
	}
	a.dirty = true
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, a.fire)
	} else {
		a.timer.Reset(a.delay)
	}
	return nil
}

// Pending reports whether edits are waiting for the timer.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Flush cancels the timer and saves pending edits now. It returns nil, nil
// when nothing is pending.
func (a *Autosaver) Flush(ctx context.Context) (*notes.Note, error) {
	a.mu.Lock()
	patch, ok := a.takeLocked()
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}
	defer a.inFlight.Done()
	return a.save(ctx, patch)
}

// Close flushes pending edits, waits for background saves and rejects
// further edits.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	patch, ok := a.takeLocked()
	a.closed = true
	a.mu.Unlock()

	var err error
	if ok {
		_, err = a.save(ctx, patch)
		a.inFlight.Done()
	}
	a.inFlight.Wait()
	return err
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	patch, ok := a.takeLocked()
	a.mu.Unlock()
	if !ok {
		return
	}
	defer a.inFlight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
	defer cancel()
	_, _ = a.save(ctx, patch)
}

// takeLocked claims the pending patch and registers the save as in flight.
// A blank title is never sent; the edit stays pending until the title is
// filled in.
func (a *Autosaver) takeLocked() (notes.PatchInput, bool) {
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.closed || !a.dirty {
		return notes.PatchInput{}, false
	}
	if a.pending.Title != nil && strings.TrimSpace(*a.pending.Title) == "" {
		return notes.PatchInput{}, false
	}
	patch := a.pending
	a.pending = notes.PatchInput{}
	a.dirty = false
	a.inFlight.Add(1)
	return patch, true
}

func (a *Autosaver) save(ctx context.Context, patch notes.PatchInput) (*notes.Note, error) {
	a.notify(SaveEvent{Status: StatusSaving})
	note, err := a.client.Update(ctx, a.id, patch)
	if err != nil {
		obs.Pkg("client").Warn("autosave_failed", "note_id", a.id, "err", err)
		a.notify(SaveEvent{Status: StatusError, Err: err})
		return nil, err
	}
	a.notify(SaveEvent{Status: StatusSaved, Note: note})
	return note, nil
}

func (a *Autosaver) notify(ev SaveEvent) {
	if a.onStatus != nil {
		a.onStatus(ev)
	}
}
