package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver, compiled with fts5
)

const sqliteBusyTimeoutMs = 500

// openReadOnly opens SearchEngine's own connection with the busy_timeout,
// mmap_size, cache_size and temp_store values of Repository's writable
// connection, plus query_only=1 (spec §4.5). journal_mode, synchronous and
// auto_vacuum are set only on the writable connection.
func openReadOnly(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite read-only: path is empty")
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite read-only: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite read-only: %w", err)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA query_only = 1;
		PRAGMA mmap_size = 268435456;
		PRAGMA cache_size = -65536;
		PRAGMA temp_store = MEMORY;
	`, sqliteBusyTimeoutMs))
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply read-only pragmas: %w", err)
	}

	return db, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"clipboard_items", "clipboard_fts"} {
		row := db.QueryRowContext(ctx,
			`SELECT 1 FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table)

		var one int

		err := row.Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("verify schema: missing table %q", table)
		}

		if err != nil {
			return fmt.Errorf("verify schema: %w", err)
		}
	}

	return nil
}

func hasTrigramFTS(ctx context.Context, db *sql.DB) (bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'clipboard_fts_trigram'`)

	var one int

	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("check trigram fts: %w", err)
	}

	return true, nil
}

func dataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	row := db.QueryRowContext(ctx, "PRAGMA data_version")

	var v int64

	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("read data_version: %w", err)
	}

	return v, nil
}
