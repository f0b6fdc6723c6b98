// Package db stores notes in SQLite (optionally SQLCipher-encrypted) and
// selects a store backend from a URI.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kuitang/notes-api/internal/notes"
)

const (
	// MaxOpenConns caps the pool; SQLite serializes writers anyway.
	MaxOpenConns = 8
	// MaxIdleConns keeps a few connections warm between requests.
	MaxIdleConns = 4
)

const selectNoteColumns = `SELECT id, title, body, created_at, updated_at FROM notes`

var sortColumns = map[notes.SortField]string{
	notes.SortTitle:     "title_key",
	notes.SortCreatedAt: "created_at",
	notes.SortUpdatedAt: "updated_at",
	notes.SortBody:      "title_key(body)",
	notes.SortID:        "id",
}

type noteRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Body      string `db:"body"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r noteRow) toNote() notes.Note {
	return notes.Note{
		ID:        r.ID,
		Title:     r.Title,
		Body:      r.Body,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
}

// SQLiteStore implements notes.Store on SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite opens the database behind dsn, verifies it and applies migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open(SQLiteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return NewSQLiteStore(sqlDB), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(sqlDB *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: sqlx.NewDb(sqlDB, "sqlite3")}
}

// DB returns the underlying database handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db.DB
}

func (s *SQLiteStore) List(ctx context.Context, params notes.ListParams) ([]notes.Note, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notes`); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	column, ok := sortColumns[params.Sort.Field]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", params.Sort.Field)
	}
	dir := "ASC"
	if params.Sort.Desc {
		dir = "DESC"
	}
	query := fmt.Sprintf(`%s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`, selectNoteColumns, column, dir, dir)

	var rows []noteRow
	if err := s.db.SelectContext(ctx, &rows, query, params.Limit, params.Offset()); err != nil {
		return nil, 0, fmt.Errorf("select notes: %w", err)
	}
	items := make([]notes.Note, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toNote())
	}
	return items, total, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*notes.Note, error) {
	var row noteRow
	err := s.db.GetContext(ctx, &row, selectNoteColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	note := row.toNote()
	return &note, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, draft notes.Draft, now time.Time) (*notes.Note, error) {
	note := notes.Note{
		ID:        notes.NewID(),
		Title:     draft.Title,
		Body:      draft.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, title_key, body, created_at, updated_at) VALUES (?, ?, title_key(?), ?, ?, ?)`,
		note.ID, note.Title, note.Title, note.Body, now.UnixMilli(), now.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return nil, notes.DuplicateTitle(draft.Title)
	}
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return &note, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch notes.Patch, now time.Time) (*notes.Note, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	// updated_at stays strictly increasing at millisecond resolution.
	sets := []string{"updated_at = MAX(?, updated_at + 1)"}
	args := []any{now.UnixMilli()}
	if patch.Title != nil {
		sets = append(sets, "title = ?", "title_key = title_key(?)")
		args = append(args, *patch.Title, *patch.Title)
	}
	if patch.Body != nil {
		sets = append(sets, "body = ?")
		args = append(args, *patch.Body)
	}
	args = append(args, id)

	res, err := tx.ExecContext(ctx, `UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if isUniqueViolation(err) {
		return nil, notes.DuplicateTitle(*patch.Title)
	}
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update note rows: %w", err)
	}
	if affected == 0 {
		return nil, notes.ErrNotFound
	}

	var row noteRow
	if err := tx.GetContext(ctx, &row, selectNoteColumns+` WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("reload note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	note := row.toNote()
	return &note, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (*notes.Note, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	var row noteRow
	err = tx.GetContext(ctx, &row, selectNoteColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select note: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	note := row.toNote()
	return &note, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ notes.Store = (*SQLiteStore)(nil)
