// Package badgerdb stores notes in an embedded Badger key-value database.
//
// Layout:
//
//	note/<id>         -> JSON note
//	title/<title key> -> id
//
// The title/ keys act as the unique index. Badger transactions are
// serializable, so two writers claiming the same title key conflict at
// commit and the loser retries into a DuplicateTitle error.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

const (
	notePrefix  = "note/"
	titlePrefix = "title/"

	// maxConflictRetries bounds retries of a transaction that lost a commit race.
	maxConflictRetries = 8
)

// MemoryPath opens an in-memory database when passed to Open.
const MemoryPath = ":memory:"

// Store implements notes.Store on Badger.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database in dir. MemoryPath keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == MemoryPath {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{obs.Pkg("badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func noteKey(id string) []byte {
	return []byte(notePrefix + id)
}

func titleIndexKey(title string) []byte {
	return []byte(titlePrefix + notes.TitleKey(title))
}

func (s *Store) List(ctx context.Context, params notes.ListParams) ([]notes.Note, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var all []notes.Note
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(notePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var n notes.Note
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &n)
			}); err != nil {
				return err
			}
			all = append(all, n)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan notes: %w", err)
	}

	sortNotes(all, params.Sort)

	total := int64(len(all))
	start := params.Offset()
	if start >= len(all) {
		return []notes.Note{}, total, nil
	}
	end := start + params.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func sortNotes(all []notes.Note, s notes.Sort) {
	keys := make(map[string]string, len(all))
	for _, n := range all {
		switch s.Field {
		case notes.SortTitle:
			keys[n.ID] = notes.TitleKey(n.Title)
		case notes.SortBody:
			keys[n.ID] = notes.TitleKey(n.Body)
		}
	}
	cmp := func(a, b notes.Note) int {
		switch s.Field {
		case notes.SortTitle, notes.SortBody:
			if c := strings.Compare(keys[a.ID], keys[b.ID]); c != 0 {
				return c
			}
		case notes.SortCreatedAt:
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		case notes.SortUpdatedAt:
			if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	}
	sort.Slice(all, func(i, j int) bool {
		c := cmp(all[i], all[j])
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func (s *Store) Get(ctx context.Context, id string) (*notes.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var note *notes.Note
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := getNote(txn, id)
		note = n
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Store) Insert(ctx context.Context, draft notes.Draft, now time.Time) (*notes.Note, error) {
	note := notes.Note{
		ID:        notes.NewID(),
		Title:     draft.Title,
		Body:      draft.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := titleIndexKey(note.Title)
		if err := claimTitle(txn, key, note.ID, note.Title); err != nil {
			return err
		}
		return putNote(txn, note)
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *Store) Update(ctx context.Context, id string, patch notes.Patch, now time.Time) (*notes.Note, error) {
	var updated notes.Note
	err := s.update(ctx, func(txn *badger.Txn) error {
		current, err := getNote(txn, id)
		if err != nil {
			return err
		}
		next := *current
		if patch.Title != nil {
			oldKey := titleIndexKey(current.Title)
			newKey := titleIndexKey(*patch.Title)
			if string(oldKey) != string(newKey) {
				if err := claimTitle(txn, newKey, id, *patch.Title); err != nil {
					return err
				}
				if err := txn.Delete(oldKey); err != nil {
					return err
				}
			}
			next.Title = *patch.Title
		}
		if patch.Body != nil {
			next.Body = *patch.Body
		}
		next.UpdatedAt = notes.NextUpdatedAt(current.UpdatedAt, now)
		if err := putNote(txn, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) (*notes.Note, error) {
	var deleted notes.Note
	err := s.update(ctx, func(txn *badger.Txn) error {
		current, err := getNote(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(titleIndexKey(current.Title)); err != nil {
			return err
		}
		if err := txn.Delete(noteKey(id)); err != nil {
			return err
		}
		deleted = *current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return ctx.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying when the commit
// loses a race with a concurrent writer.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger transaction kept conflicting: %w", err)
}

func getNote(txn *badger.Txn, id string) (*notes.Note, error) {
	item, err := txn.Get(noteKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	var n notes.Note
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &n)
	}); err != nil {
		return nil, fmt.Errorf("decode note: %w", err)
	}
	return &n, nil
}

func putNote(txn *badger.Txn, n notes.Note) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	return txn.Set(noteKey(n.ID), data)
}

// claimTitle points key at id, failing when another note already holds it.
func claimTitle(txn *badger.Txn, key []byte, id, title string) error {
	item, err := txn.Get(key)
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
	case err != nil:
		return fmt.Errorf("get title index: %w", err)
	default:
		owner, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read title index: %w", err)
		}
		if string(owner) != id {
			return notes.DuplicateTitle(title)
		}
	}
	return txn.Set(key, []byte(id))
}

// badgerLogger routes Badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

var _ notes.Store = (*Store)(nil)
