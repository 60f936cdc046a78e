package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is stored in SQLite's user_version pragma. Bump this
// whenever a new migration step is appended.
const currentSchemaVersion = 4

// migrationStep is one idempotent, version-gated schema change. Steps run in
// order inside their own BEGIN IMMEDIATE transaction, which also sets
// user_version to the step's 1-based position before it commits.
type migrationStep func(ctx context.Context, tx *sql.Tx) error

var migrationSteps = []migrationStep{
	migrateV1CreateItems,
	migrateV2AddNoteAndFileSize,
	migrateV3AddCountersAndTriggers,
	migrateV4AddFTS,
}

func migrateV1CreateItems(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE clipboard_items (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			plain_text TEXT NOT NULL DEFAULT '',
			app_bundle_id TEXT,
			created_at REAL NOT NULL,
			last_used_at REAL NOT NULL,
			use_count INTEGER NOT NULL DEFAULT 1,
			is_pinned INTEGER NOT NULL DEFAULT 0,
			size_bytes INTEGER NOT NULL DEFAULT 0,
			storage_ref TEXT,
			raw_data BLOB
		)`,
		`CREATE UNIQUE INDEX idx_clipboard_items_content_hash ON clipboard_items(content_hash)`,
		`CREATE INDEX idx_clipboard_items_created_at ON clipboard_items(created_at DESC)`,
		`CREATE INDEX idx_clipboard_items_last_used_at ON clipboard_items(last_used_at DESC)`,
		`CREATE INDEX idx_clipboard_items_pinned_last_used ON clipboard_items(is_pinned DESC, last_used_at DESC, id)`,
		`CREATE INDEX idx_clipboard_items_type ON clipboard_items(type)`,
		`CREATE INDEX idx_clipboard_items_app_bundle_id ON clipboard_items(app_bundle_id)`,
		`CREATE INDEX idx_clipboard_items_app_last_used ON clipboard_items(app_bundle_id, last_used_at DESC)`,
		`CREATE INDEX idx_clipboard_items_type_last_used ON clipboard_items(type, last_used_at DESC)`,
	}

	return execAll(ctx, tx, stmts)
}

func migrateV2AddNoteAndFileSize(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`ALTER TABLE clipboard_items ADD COLUMN note TEXT`,
		`ALTER TABLE clipboard_items ADD COLUMN file_size_bytes INTEGER`,
	}

	return execAll(ctx, tx, stmts)
}

func migrateV3AddCountersAndTriggers(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE scopy_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			item_count INTEGER NOT NULL DEFAULT 0,
			unpinned_count INTEGER NOT NULL DEFAULT 0,
			total_size_bytes INTEGER NOT NULL DEFAULT 0,
			mutation_seq INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT INTO scopy_meta (id, item_count, unpinned_count, total_size_bytes, mutation_seq)
			SELECT 1, COUNT(*), COUNT(*) FILTER (WHERE is_pinned = 0), COALESCE(SUM(size_bytes), 0), 0
			FROM clipboard_items`,
		`CREATE TRIGGER trg_items_ai_counters AFTER INSERT ON clipboard_items BEGIN
			UPDATE scopy_meta SET
				item_count = item_count + 1,
				unpinned_count = unpinned_count + (1 - new.is_pinned),
				total_size_bytes = total_size_bytes + new.size_bytes
			WHERE id = 1;
		END`,
		`CREATE TRIGGER trg_items_ad_counters AFTER DELETE ON clipboard_items BEGIN
			UPDATE scopy_meta SET
				item_count = item_count - 1,
				unpinned_count = unpinned_count - (1 - old.is_pinned),
				total_size_bytes = total_size_bytes - old.size_bytes
			WHERE id = 1;
		END`,
		`CREATE TRIGGER trg_items_au_size AFTER UPDATE OF size_bytes ON clipboard_items
			WHEN new.size_bytes IS NOT old.size_bytes BEGIN
			UPDATE scopy_meta SET
				total_size_bytes = total_size_bytes + (new.size_bytes - old.size_bytes)
			WHERE id = 1;
		END`,
		`CREATE TRIGGER trg_items_au_pinned AFTER UPDATE OF is_pinned ON clipboard_items
			WHEN new.is_pinned IS NOT old.is_pinned BEGIN
			UPDATE scopy_meta SET
				unpinned_count = unpinned_count + (old.is_pinned - new.is_pinned)
			WHERE id = 1;
		END`,
	}

	return execAll(ctx, tx, stmts)
}

func migrateV4AddFTS(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE clipboard_fts USING fts5(
			id UNINDEXED, plain_text, note,
			tokenize = "unicode61 remove_diacritics 2"
		)`,
		`INSERT INTO clipboard_fts (id, plain_text, note) SELECT id, plain_text, COALESCE(note, '') FROM clipboard_items`,
		`CREATE TRIGGER trg_items_ai_fts AFTER INSERT ON clipboard_items BEGIN
			INSERT INTO clipboard_fts (id, plain_text, note) VALUES (new.id, new.plain_text, COALESCE(new.note, ''));
		END`,
		`CREATE TRIGGER trg_items_ad_fts AFTER DELETE ON clipboard_items BEGIN
			DELETE FROM clipboard_fts WHERE id = old.id;
		END`,
		`CREATE TRIGGER trg_items_au_fts AFTER UPDATE OF plain_text, note ON clipboard_items
			WHEN new.plain_text IS NOT old.plain_text OR new.note IS NOT old.note BEGIN
			DELETE FROM clipboard_fts WHERE id = old.id;
			INSERT INTO clipboard_fts (id, plain_text, note) VALUES (new.id, new.plain_text, COALESCE(new.note, ''));
		END`,
	}

	return execAll(ctx, tx, stmts)
}

// tryCreateTrigramFTS attempts to create the optional trigram-tokenized
// shadow table and its sync triggers. Per spec §4.2, a tokenizer that isn't
// compiled into sqlite3 is a silent fallback, not a migration failure: the
// attempt runs in its own transaction, separate from the versioned steps
// above, and a failure here never bumps or blocks user_version.
func tryCreateTrigramFTS(ctx context.Context, db *sql.DB) (available bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin trigram probe: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	stmts := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS clipboard_fts_trigram USING fts5(
			id UNINDEXED, plain_text, note,
			tokenize = "trigram"
		)`,
		`INSERT INTO clipboard_fts_trigram (id, plain_text, note)
			SELECT id, plain_text, COALESCE(note, '') FROM clipboard_items
			WHERE id NOT IN (SELECT id FROM clipboard_fts_trigram)`,
		`CREATE TRIGGER IF NOT EXISTS trg_items_ai_fts_trigram AFTER INSERT ON clipboard_items BEGIN
			INSERT INTO clipboard_fts_trigram (id, plain_text, note) VALUES (new.id, new.plain_text, COALESCE(new.note, ''));
		END`,
		`CREATE TRIGGER IF NOT EXISTS trg_items_ad_fts_trigram AFTER DELETE ON clipboard_items BEGIN
			DELETE FROM clipboard_fts_trigram WHERE id = old.id;
		END`,
		`CREATE TRIGGER IF NOT EXISTS trg_items_au_fts_trigram AFTER UPDATE OF plain_text, note ON clipboard_items
			WHEN new.plain_text IS NOT old.plain_text OR new.note IS NOT old.note BEGIN
			DELETE FROM clipboard_fts_trigram WHERE id = old.id;
			INSERT INTO clipboard_fts_trigram (id, plain_text, note) VALUES (new.id, new.plain_text, COALESCE(new.note, ''));
		END`,
	}

	for _, stmt := range stmts {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			return false, nil //nolint:nilerr // absence of the tokenizer is an expected, silent fallback
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit trigram probe: %w", err)
	}

	committed = true

	return true, nil
}

// hasTrigramFTS reports whether clipboard_fts_trigram already exists,
// independent of whether this process created it.
func hasTrigramFTS(ctx context.Context, db *sql.DB) (bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'clipboard_fts_trigram'`)

	var one int

	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("check trigram fts: %w", err)
	}

	return true, nil
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}

	return nil
}

// migrate runs every step whose index is greater than the stored
// user_version, each inside its own BEGIN IMMEDIATE transaction, bumping
// user_version by exactly one per committed step.
func migrate(ctx context.Context, db *sql.DB) error {
	version, err := storedSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for i := version; i < len(migrationSteps); i++ {
		if err := runMigrationStep(ctx, db, i+1, migrationSteps[i]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", i+1, err)
		}
	}

	if _, err := tryCreateTrigramFTS(ctx, db); err != nil {
		return err
	}

	return nil
}

func runMigrationStep(ctx context.Context, db *sql.DB, toVersion int, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := step(ctx, tx); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", toVersion)); err != nil {
		return fmt.Errorf("bump user_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	committed = true

	return nil
}

func storedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	row := db.QueryRowContext(ctx, "PRAGMA user_version")

	var version int

	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}

	return version, nil
}

// verifySchema confirms the main table and the plain FTS shadow table exist,
// per spec §4.2 ("run migrations ... and verify the presence of the main and
// FTS tables").
func verifySchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"clipboard_items", "scopy_meta", "clipboard_fts"} {
		row := db.QueryRowContext(ctx,
			`SELECT 1 FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table)

		var one int

		err := row.Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("verify schema: missing table %q", table)
		}

		if err != nil {
			return fmt.Errorf("verify schema: %w", err)
		}
	}

	return nil
}
