package engine

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// FilePragmas are appended by FileDSN: a busy timeout so concurrent
// connections wait for locks, and WAL so readers do not block the writer.
const FilePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Open opens a SQLite database using the modernc.org/sqlite driver.
//
// For file-based databases, pass a path like "./runs.sqlite" or a DSN built
// with FileDSN. For in-memory databases, pass ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// FileDSN returns path with FilePragmas unless it already carries query
// parameters or names an in-memory database.
//
//	FileDSN("runs.sqlite") == "runs.sqlite?" + FilePragmas
func FileDSN(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return path + "?" + FilePragmas
}
