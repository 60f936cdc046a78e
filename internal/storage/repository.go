// Package storage owns the embedded SQLite database that backs the
// clipboard history: schema migrations, the counter triggers, the
// transactional write path, and the cleanup planners (spec §4.2).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scopyapp/scopy/internal/model"
)

// deleteBatchSize bounds how many ids appear in a single IN (...) delete,
// matching spec §4.2's "batches of at most ~1000 IDs".
const deleteBatchSize = 1000

// Repository owns the writable SQLite connection backing clipboard_items.
//
// Safe for concurrent use: callers are expected to be serialized by
// ClipboardService's actor loop for the common write path, but Repository
// does not assume it and guards its own reopen-on-corruption state with a
// mutex.
type Repository struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	clock     model.Clock
	corrupted bool
	closed    bool
}

// Open opens (creating if necessary) the database at path, applies PRAGMA
// tuning, and runs any pending migrations.
func Open(ctx context.Context, path string, clock model.Clock) (*Repository, error) {
	if clock == nil {
		clock = model.RealClock
	}

	db, err := openWritable(ctx, path)
	if err != nil {
		return nil, wrap("open", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, wrap("open", err)
	}

	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()

		return nil, wrap("open", err)
	}

	return &Repository{db: db, path: path, clock: clock}, nil
}

// Close releases the underlying connection. Idempotent.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	if r.db == nil {
		return nil
	}

	if err := r.db.Close(); err != nil {
		return wrap("close", err)
	}

	return nil
}

// HasTrigramFTS reports whether the optional trigram-tokenized shadow table
// is present.
func (r *Repository) HasTrigramFTS(ctx context.Context) (bool, error) {
	db, err := r.handle()
	if err != nil {
		return false, wrap("has_trigram_fts", err)
	}

	ok, err := hasTrigramFTS(ctx, db)
	if err != nil {
		return false, wrap("has_trigram_fts", err)
	}

	return ok, nil
}

// DataVersion exposes PRAGMA data_version for SearchEngine's external
// mutation detection (spec §4.5, §9).
func (r *Repository) DataVersion(ctx context.Context) (int64, error) {
	db, err := r.handle()
	if err != nil {
		return 0, wrap("data_version", err)
	}

	v, err := dataVersion(ctx, db)
	if err != nil {
		return 0, wrap("data_version", err)
	}

	return v, nil
}

func (r *Repository) handle() (*sql.DB, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	if r.corrupted {
		return nil, ErrCorrupted
	}

	return r.db, nil
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction, bumps mutation_seq
// exactly once on success, and commits. A rollback failure marks the
// repository corrupted: every subsequent call fails fast with
// [ErrCorrupted] until [Repository.Reopen] is called (spec §7 "Integrity /
// corruption").
func (r *Repository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	db, err := r.handle()
	if err != nil {
		return wrap(op, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, fmt.Errorf("begin: %w", err))
	}

	committed := false

	defer func() {
		if committed {
			return
		}

		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.markCorrupted()
		}
	}()

	if err := fn(tx); err != nil {
		return wrap(op, err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE scopy_meta SET mutation_seq = mutation_seq + 1 WHERE id = 1"); err != nil {
		return wrap(op, fmt.Errorf("bump mutation_seq: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return wrap(op, fmt.Errorf("commit: %w", err))
	}

	committed = true

	return nil
}

func (r *Repository) markCorrupted() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.corrupted = true
}

// Reopen closes the current connection (if any) and reopens it fresh,
// clearing the corrupted flag on success. Used after [ErrCorrupted].
func (r *Repository) Reopen(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db != nil {
		_ = r.db.Close()
	}

	db, err := openWritable(ctx, r.path)
	if err != nil {
		return wrap("reopen", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return wrap("reopen", err)
	}

	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()

		return wrap("reopen", err)
	}

	r.db = db
	r.corrupted = false
	r.closed = false

	return nil
}

// FindByHash returns the row with the given content hash, or nil if none
// exists.
func (r *Repository) FindByHash(ctx context.Context, hash string) (*model.StoredItem, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("find_by_hash", err)
	}

	row := db.QueryRowContext(ctx, selectItemCols+" FROM clipboard_items WHERE content_hash = ?", hash)

	item, err := scanItemRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, wrap("find_by_hash", err)
	}

	return item, nil
}

// Get returns the row with the given id.
func (r *Repository) Get(ctx context.Context, id string) (*model.StoredItem, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("get", err, withItemID(id))
	}

	row := db.QueryRowContext(ctx, selectItemCols+" FROM clipboard_items WHERE id = ?", id)

	item, err := scanItemRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get", ErrNotFound, withItemID(id))
	}

	if err != nil {
		return nil, wrap("get", err, withItemID(id))
	}

	return item, nil
}

// NewItemID generates a time-ordered id for a freshly inserted row.
func NewItemID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}

	return id.String(), nil
}

// Insert creates a new row. Callers must have already established that no
// live row shares item.ContentHash (spec's dedup invariant is enforced by
// StorageService.Upsert calling FindByHash first, plus the unique index as
// a backstop).
func (r *Repository) Insert(ctx context.Context, item model.StoredItem) error {
	return r.withTx(ctx, "insert", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clipboard_items (
				id, type, content_hash, plain_text, note, app_bundle_id,
				created_at, last_used_at, use_count, is_pinned, size_bytes,
				file_size_bytes, storage_ref, raw_data
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, string(item.Type), item.ContentHash, item.PlainText,
			nullableString(item.Note), nullableString(item.AppBundleID),
			item.CreatedAt, item.LastUsedAt, item.UseCount, boolToInt(item.IsPinned),
			item.SizeBytes, nullableInt64(item.FileSizeBytes),
			nullableString(item.StorageRef), nullableBytes(item.RawData),
		)
		if err != nil {
			return fmt.Errorf("insert clipboard_items: %w", err)
		}

		return nil
	})
}

// TouchUse bumps last_used_at to now and increments use_count by one,
// the re-ingestion path of Upsert (spec §4.4 step 2).
func (r *Repository) TouchUse(ctx context.Context, id string, now float64) error {
	return r.withTx(ctx, "touch_use", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET last_used_at = ?, use_count = use_count + 1 WHERE id = ?`,
			now, id)
		if err != nil {
			return fmt.Errorf("touch use: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// UpdateContent replaces plain_text/note/size/payload for id, used by
// storageservice.ReplaceImagePayload for OptimizeImage's rewritten blob.
func (r *Repository) UpdateContent(ctx context.Context, id string, plainText string, note *string, sizeBytes int64, storageRef *string, rawData []byte) error {
	return r.withTx(ctx, "update_content", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET plain_text = ?, note = ?, size_bytes = ?, storage_ref = ?, raw_data = ? WHERE id = ?`,
			plainText, nullableString(note), sizeBytes, nullableString(storageRef), nullableBytes(rawData), id)
		if err != nil {
			return fmt.Errorf("update content: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// TouchUseAndNote does TouchUse plus, if note is non-nil, updates note in the
// same transaction. Nothing in this module calls it:
// storageservice.CopyToClipboard uses TouchUse and does not backfill a
// plain-text alternative for RTF/HTML items.
func (r *Repository) TouchUseAndNote(ctx context.Context, id string, now float64, note *string) error {
	return r.withTx(ctx, "touch_use_and_note", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET last_used_at = ?, use_count = use_count + 1, note = COALESCE(?, note) WHERE id = ?`,
			now, nullableString(note), id)
		if err != nil {
			return fmt.Errorf("touch use and note: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// SetPinned flips is_pinned.
func (r *Repository) SetPinned(ctx context.Context, id string, pinned bool) error {
	return r.withTx(ctx, "set_pinned", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET is_pinned = ? WHERE id = ?`, boolToInt(pinned), id)
		if err != nil {
			return fmt.Errorf("set pinned: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// UpdateNote sets or clears the user note.
func (r *Repository) UpdateNote(ctx context.Context, id string, note *string) error {
	return r.withTx(ctx, "update_note", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET note = ? WHERE id = ?`, nullableString(note), id)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// UpdateFileSizeBytes persists a lazily-computed aggregate file size for a
// file item (spec §4.6 "file-size probe").
func (r *Repository) UpdateFileSizeBytes(ctx context.Context, id string, size int64) error {
	return r.withTx(ctx, "update_file_size", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE clipboard_items SET file_size_bytes = ? WHERE id = ?`, size, id)
		if err != nil {
			return fmt.Errorf("update file size: %w", err)
		}

		return requireRowAffected(res, id)
	})
}

// Delete removes one row and returns its storage_ref (nil if the payload
// was inline), so the caller can remove the external blob.
func (r *Repository) Delete(ctx context.Context, id string) (storageRef *string, err error) {
	err = r.withTx(ctx, "delete", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT storage_ref FROM clipboard_items WHERE id = ?`, id)

		var ref sql.NullString

		if scanErr := row.Scan(&ref); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return ErrNotFound
			}

			return fmt.Errorf("lookup storage_ref: %w", scanErr)
		}

		if _, execErr := tx.ExecContext(ctx, `DELETE FROM clipboard_items WHERE id = ?`, id); execErr != nil {
			return fmt.Errorf("delete: %w", execErr)
		}

		storageRef = nullableStringPtr(ref)

		return nil
	})
	if err != nil {
		return nil, wrap("delete", err, withItemID(id))
	}

	return storageRef, nil
}

// ClearAllExceptPinned removes every unpinned row and returns the storage
// refs of the external blobs that must be removed by the caller.
func (r *Repository) ClearAllExceptPinned(ctx context.Context) (storageRefs []string, err error) {
	err = r.withTx(ctx, "clear_all", func(tx *sql.Tx) error {
		rows, queryErr := tx.QueryContext(ctx,
			`SELECT storage_ref FROM clipboard_items WHERE is_pinned = 0 AND storage_ref IS NOT NULL`)
		if queryErr != nil {
			return fmt.Errorf("list external refs: %w", queryErr)
		}

		refs, scanErr := scanStringColumn(rows)
		if scanErr != nil {
			return scanErr
		}

		if _, execErr := tx.ExecContext(ctx, `DELETE FROM clipboard_items WHERE is_pinned = 0`); execErr != nil {
			return fmt.Errorf("clear all: %w", execErr)
		}

		storageRefs = refs

		return nil
	})
	if err != nil {
		return nil, wrap("clear_all", err)
	}

	return storageRefs, nil
}

// FetchRecent returns a page ordered by (is_pinned desc, last_used_at desc,
// id), the ordering used by exact-mode empty queries and fetch_recent.
func (r *Repository) FetchRecent(ctx context.Context, limit, offset int) ([]model.StoredItem, error) {
	return r.FetchFiltered(ctx, FilterOptions{}, limit, offset)
}

// FilterOptions narrows FetchFiltered's result set.
type FilterOptions struct {
	AppBundleID string
	Types       []model.ClipboardItemType
}

// FetchFiltered returns a page ordered by (is_pinned desc, last_used_at
// desc, id) honoring the given filters.
func (r *Repository) FetchFiltered(ctx context.Context, filter FilterOptions, limit, offset int) ([]model.StoredItem, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("fetch_filtered", err)
	}

	where, args := buildFilterWhere(filter)

	query := selectItemCols + " FROM clipboard_items" + where +
		" ORDER BY is_pinned DESC, last_used_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("fetch_filtered", err)
	}

	defer func() { _ = rows.Close() }()

	return scanItemRows(rows)
}

// GetMany returns the rows for ids, in no particular order, as a map for
// O(1) lookup by callers assembling a result page from index matches.
func (r *Repository) GetMany(ctx context.Context, ids []string) (map[string]model.StoredItem, error) {
	result := make(map[string]model.StoredItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	db, err := r.handle()
	if err != nil {
		return nil, wrap("get_many", err)
	}

	for _, chunk := range chunkStrings(ids, deleteBatchSize) {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))

		for i, id := range chunk {
			args[i] = id
		}

		rows, queryErr := db.QueryContext(ctx,
			selectItemCols+" FROM clipboard_items WHERE id IN ("+placeholders+")", args...)
		if queryErr != nil {
			return nil, wrap("get_many", queryErr)
		}

		items, scanErr := scanItemRows(rows)
		_ = rows.Close()

		if scanErr != nil {
			return nil, wrap("get_many", scanErr)
		}

		for _, item := range items {
			result[item.ID] = item
		}
	}

	return result, nil
}

// DeleteBatch removes the given ids in one transaction and returns the
// storage refs that must be removed on disk.
func (r *Repository) DeleteBatch(ctx context.Context, ids []string) (storageRefs []string, err error) {
	if len(ids) == 0 {
		return nil, nil
	}

	err = r.withTx(ctx, "delete_batch", func(tx *sql.Tx) error {
		for _, chunk := range chunkStrings(ids, deleteBatchSize) {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
			args := make([]any, len(chunk))

			for i, id := range chunk {
				args[i] = id
			}

			rows, queryErr := tx.QueryContext(ctx,
				"SELECT storage_ref FROM clipboard_items WHERE id IN ("+placeholders+") AND storage_ref IS NOT NULL", args...)
			if queryErr != nil {
				return fmt.Errorf("list refs: %w", queryErr)
			}

			refs, scanErr := scanStringColumn(rows)
			if scanErr != nil {
				return scanErr
			}

			storageRefs = append(storageRefs, refs...)

			if _, execErr := tx.ExecContext(ctx,
				"DELETE FROM clipboard_items WHERE id IN ("+placeholders+")", args...); execErr != nil {
				return fmt.Errorf("delete batch: %w", execErr)
			}
		}

		return nil
	})
	if err != nil {
		return nil, wrap("delete_batch", err)
	}

	return storageRefs, nil
}

// Stats returns the exact counters maintained by the insert/delete triggers.
func (r *Repository) Stats(ctx context.Context) (itemCount, unpinnedCount, totalSizeBytes int64, err error) {
	db, err := r.handle()
	if err != nil {
		return 0, 0, 0, wrap("stats", err)
	}

	row := db.QueryRowContext(ctx, `SELECT item_count, unpinned_count, total_size_bytes FROM scopy_meta WHERE id = 1`)

	if scanErr := row.Scan(&itemCount, &unpinnedCount, &totalSizeBytes); scanErr != nil {
		return 0, 0, 0, wrap("stats", scanErr)
	}

	return itemCount, unpinnedCount, totalSizeBytes, nil
}

// DetailedStats computes the breakdown spec.md §6's
// get_detailed_storage_stats needs, supplementing the exact counters with
// per-type and inline/external facets (SPEC_FULL.md §D.6).
func (r *Repository) DetailedStats(ctx context.Context) (model.StorageStatsDTO, error) {
	var out model.StorageStatsDTO

	itemCount, unpinnedCount, totalSize, err := r.Stats(ctx)
	if err != nil {
		return out, err
	}

	out.ItemCount = itemCount
	out.UnpinnedCount = unpinnedCount
	out.TotalSizeBytes = totalSize
	out.PinnedCount = itemCount - unpinnedCount
	out.CountByType = make(map[model.ClipboardItemType]int64)
	out.SizeBytesByType = make(map[model.ClipboardItemType]int64)

	db, err := r.handle()
	if err != nil {
		return out, wrap("detailed_stats", err)
	}

	row := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(raw_data)), 0), COALESCE(SUM(CASE WHEN storage_ref IS NOT NULL THEN size_bytes ELSE 0 END), 0)
			FROM clipboard_items`)
	if scanErr := row.Scan(&out.InlineBytes, &out.ExternalBytes); scanErr != nil {
		return out, wrap("detailed_stats", scanErr)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT type, COUNT(*), COALESCE(SUM(size_bytes), 0) FROM clipboard_items GROUP BY type`)
	if err != nil {
		return out, wrap("detailed_stats", err)
	}

	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			typ   string
			count int64
			size  int64
		)

		if err := rows.Scan(&typ, &count, &size); err != nil {
			return out, wrap("detailed_stats", err)
		}

		out.CountByType[model.ClipboardItemType(typ)] = count
		out.SizeBytesByType[model.ClipboardItemType(typ)] = size
	}

	if err := rows.Err(); err != nil {
		return out, wrap("detailed_stats", err)
	}

	return out, nil
}

// RecentAppBundleIDs returns up to limit distinct app_bundle_id values,
// most-recently-used first, for get_recent_apps.
func (r *Repository) RecentAppBundleIDs(ctx context.Context, limit int) ([]string, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("recent_apps", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT app_bundle_id FROM clipboard_items
		WHERE app_bundle_id IS NOT NULL
		GROUP BY app_bundle_id
		ORDER BY MAX(last_used_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("recent_apps", err)
	}

	defer func() { _ = rows.Close() }()

	return scanStringColumn(rows)
}

// ExternalBasenames returns the set of basenames referenced by storage_ref
// across all rows, used by the orphan sweep (spec §4.4, §9 item 4).
func (r *Repository) ExternalBasenames(ctx context.Context) (map[string]struct{}, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("external_basenames", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT storage_ref FROM clipboard_items WHERE storage_ref IS NOT NULL`)
	if err != nil {
		return nil, wrap("external_basenames", err)
	}

	defer func() { _ = rows.Close() }()

	refs, err := scanStringColumn(rows)
	if err != nil {
		return nil, wrap("external_basenames", err)
	}

	set := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		set[filepath.Base(ref)] = struct{}{}
	}

	return set, nil
}

// ExternalItem is one row whose payload lives in an external blob, used by
// the derived-size compensation routine.
type ExternalItem struct {
	ID         string
	StorageRef string
	SizeBytes  int64
}

// ListExternalItems returns every row with a non-null storage_ref.
func (r *Repository) ListExternalItems(ctx context.Context) ([]ExternalItem, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("list_external_items", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, storage_ref, size_bytes FROM clipboard_items WHERE storage_ref IS NOT NULL`)
	if err != nil {
		return nil, wrap("list_external_items", err)
	}

	defer func() { _ = rows.Close() }()

	var items []ExternalItem

	for rows.Next() {
		var item ExternalItem
		if err := rows.Scan(&item.ID, &item.StorageRef, &item.SizeBytes); err != nil {
			return nil, wrap("list_external_items", err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("list_external_items", err)
	}

	return items, nil
}

// UpdateSizeBytesBatch applies corrected sizes in one transaction, the
// "derived-size compensation" routine (spec §4.4).
func (r *Repository) UpdateSizeBytesBatch(ctx context.Context, updates map[string]int64) error {
	if len(updates) == 0 {
		return nil
	}

	return r.withTx(ctx, "update_size_bytes_batch", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE clipboard_items SET size_bytes = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}

		defer func() { _ = stmt.Close() }()

		for id, size := range updates {
			if _, err := stmt.ExecContext(ctx, size, id); err != nil {
				return fmt.Errorf("update size for %s: %w", id, err)
			}
		}

		return nil
	})
}

// IncrementalVacuum reclaims up to maxPages freed pages, the bounded vacuum
// step of spec §4.4's "full" cleanup mode. Runs outside withTx: PRAGMA
// incremental_vacuum cannot run inside an explicit transaction.
func (r *Repository) IncrementalVacuum(ctx context.Context, maxPages int) error {
	db, err := r.handle()
	if err != nil {
		return wrap("incremental_vacuum", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA incremental_vacuum(%d)", maxPages)); err != nil {
		return wrap("incremental_vacuum", err)
	}

	return nil
}

// CheckpointWAL runs a passive WAL checkpoint, per spec §4.4's "full"
// cleanup mode.
func (r *Repository) CheckpointWAL(ctx context.Context) error {
	db, err := r.handle()
	if err != nil {
		return wrap("checkpoint_wal", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return wrap("checkpoint_wal", err)
	}

	return nil
}

func requireRowAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

func chunkStrings(in []string, size int) [][]string {
	var chunks [][]string

	for i := 0; i < len(in); i += size {
		end := min(i+size, len(in))
		chunks = append(chunks, in[i:end])
	}

	return chunks
}
