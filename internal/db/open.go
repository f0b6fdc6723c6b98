package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kuitang/notes-api/internal/db/badgerdb"
	"github.com/kuitang/notes-api/internal/db/mongodb"
	"github.com/kuitang/notes-api/internal/notes"
)

// Backend names a store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMongo  Backend = "mongodb"
	BackendBadger Backend = "badger"
)

const (
	badgerScheme   = "badger://"
	sqliteScheme   = "sqlite://"
	sqliteMemoryID = ":memory:"
)

// Options selects and configures a store.
type Options struct {
	// URI picks the backend by scheme: mongodb:// or mongodb+srv:// for
	// MongoDB, badger://<dir> for Badger, sqlite://<path> or a bare path
	// for SQLite.
	URI string
	// Database is the MongoDB database name.
	Database string
	// Key is an optional 64-hex-character SQLCipher key.
	Key string
}

// BackendFor reports which backend a URI selects.
func BackendFor(uri string) Backend {
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return BackendMongo
	case strings.HasPrefix(uri, badgerScheme):
		return BackendBadger
	default:
		return BackendSQLite
	}
}

// IsInMemory reports whether uri selects a store that loses its notes on exit.
func IsInMemory(uri string) bool {
	uri = strings.TrimSpace(uri)
	switch BackendFor(uri) {
	case BackendBadger:
		return strings.TrimPrefix(uri, badgerScheme) == badgerdb.MemoryPath
	case BackendSQLite:
		return strings.TrimPrefix(uri, sqliteScheme) == sqliteMemoryID
	default:
		return false
	}
}

// Open opens the store selected by opts.URI.
func Open(ctx context.Context, opts Options) (notes.Store, error) {
	uri := strings.TrimSpace(opts.URI)
	if uri == "" {
		return nil, fmt.Errorf("store uri is empty")
	}

	switch BackendFor(uri) {
	case BackendMongo:
		store, err := mongodb.Open(ctx, uri, opts.Database)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendBadger:
		store, err := badgerdb.Open(strings.TrimPrefix(uri, badgerScheme))
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	path := strings.TrimPrefix(uri, sqliteScheme)
	if path == sqliteMemoryID {
		store, err := OpenSQLite(ctx, SQLiteDSN("file:notes?mode=memory&cache=shared", opts.Key))
		if err != nil {
			return nil, err
		}
		// Shared-cache memory databases report lock conflicts instead of waiting.
		store.DB().SetMaxOpenConns(1)
		return store, nil
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	store, err := OpenSQLite(ctx, SQLiteDSN(path, opts.Key))
	if err != nil {
		return nil, err
	}
	return store, nil
}
