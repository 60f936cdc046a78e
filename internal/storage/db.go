package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver, compiled with fts5
)

// sqliteBusyTimeoutMs is how long SQLite waits for a lock before returning
// SQLITE_BUSY (spec §4.2: "small busy timeout (~500 ms)").
const sqliteBusyTimeoutMs = 500

// openWritable opens the single writable connection used by Repository. It
// shares busy_timeout, mmap_size, cache_size and temp_store with
// SearchEngine's read-only connection (see search.openReadOnly) and also sets
// journal_mode, synchronous and auto_vacuum, which that connection does not.
func openWritable(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: path is empty")
	}

	// _txlock=immediate makes every sql.Tx a BEGIN IMMEDIATE (spec §4.2),
	// acquiring the write lock up front instead of at the first write
	// statement, so two writers never both proceed partway before blocking.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Pin every PRAGMA and statement to the same underlying connection so
	// the tuning always applies and write serialization is trivial.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA mmap_size = 268435456;
		PRAGMA cache_size = -65536;
		PRAGMA temp_store = MEMORY;
		PRAGMA auto_vacuum = INCREMENTAL;
	`, sqliteBusyTimeoutMs))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	return nil
}

// dataVersion reads PRAGMA data_version, SearchEngine's signal that the
// database may have been mutated through a connection other than its own
// (spec §4.5, §9).
func dataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	row := db.QueryRowContext(ctx, "PRAGMA data_version")

	var v int64

	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}

	return v, nil
}
