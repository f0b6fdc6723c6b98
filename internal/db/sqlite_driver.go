package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/kuitang/notes-api/internal/notes"
)

const (
	// SQLiteDriverName is the project-specific SQLCipher driver with custom SQL functions.
	SQLiteDriverName = "sqlite3_notes"
)

func init() {
	sql.Register(SQLiteDriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// title_key(title) computes the uniqueness key inside the same
			// statement that stores the title.
			if err := conn.RegisterFunc("title_key", notes.TitleKey, true); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "already exists") {
					return nil
				}
				return fmt.Errorf("register title_key SQL function: %w", err)
			}
			return nil
		},
	})
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func commonSQLiteParams() string {
	// WAL keeps readers off the writer's lock; immediate transactions take
	// the write lock up front so concurrent updates queue on busy_timeout.
	return "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
}

func appendSQLiteParams(dsn, params string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

// SQLiteDSN builds the DSN for a database file. A non-empty key (64 hex
// characters) opens the file with SQLCipher encryption.
func SQLiteDSN(path, keyHex string) string {
	dsn := path
	if keyHex != "" {
		dsn = appendSQLiteParams(dsn, fmt.Sprintf("_pragma_key=x'%s'&_pragma_cipher_page_size=4096", keyHex))
	}
	return appendSQLiteParams(dsn, commonSQLiteParams())
}
