package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/scopyapp/scopy/internal/model"
)

const selectItemCols = `SELECT
	id, type, content_hash, plain_text, note, app_bundle_id,
	created_at, last_used_at, use_count, is_pinned, size_bytes,
	file_size_bytes, storage_ref, raw_data`

func scanStoredItem(row interface{ Scan(dest ...any) error }) (model.StoredItem, error) {
	var (
		item        model.StoredItem
		typ         string
		note        sql.NullString
		appBundleID sql.NullString
		isPinned    int
		fileSize    sql.NullInt64
		storageRef  sql.NullString
		rawData     []byte
	)

	err := row.Scan(
		&item.ID, &typ, &item.ContentHash, &item.PlainText, &note, &appBundleID,
		&item.CreatedAt, &item.LastUsedAt, &item.UseCount, &isPinned, &item.SizeBytes,
		&fileSize, &storageRef, &rawData,
	)
	if err != nil {
		return model.StoredItem{}, err
	}

	item.Type = model.ClipboardItemType(typ)

	if note.Valid {
		item.Note = &note.String
	}

	if appBundleID.Valid {
		item.AppBundleID = &appBundleID.String
	}

	item.IsPinned = isPinned != 0

	if storageRef.Valid {
		item.StorageRef = &storageRef.String
	}

	item.RawData = rawData

	if fileSize.Valid {
		v := fileSize.Int64
		item.FileSizeBytes = &v
	}

	return item, nil
}

// hydrate fetches the full rows for ids, in no particular order.
func (e *SearchEngine) hydrate(ctx context.Context, ids []string) (map[string]model.StoredItem, error) {
	out := make(map[string]model.StoredItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))

	for i, id := range ids {
		args[i] = id
	}

	rows, err := e.db.QueryContext(ctx, selectItemCols+" FROM clipboard_items WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("hydrate: %w", err)
	}

	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanStoredItem(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrate scan: %w", err)
		}

		out[item.ID] = item
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hydrate iterate: %w", err)
	}

	return out, nil
}

// loadIndexable reads every row's index-relevant columns, ordered by
// (is_pinned desc, last_used_at desc), optionally bounded by limit (0 means
// unbounded).
func (e *SearchEngine) loadIndexable(ctx context.Context, limit int) ([]indexedItem, error) {
	query := `SELECT id, plain_text, note, app_bundle_id, last_used_at, is_pinned, type
		FROM clipboard_items ORDER BY is_pinned DESC, last_used_at DESC`

	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load indexable: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var items []indexedItem

	for rows.Next() {
		var (
			id          string
			plainText   string
			note        sql.NullString
			appBundleID sql.NullString
			lastUsedAt  float64
			isPinned    int
			typ         string
		)

		if err := rows.Scan(&id, &plainText, &note, &appBundleID, &lastUsedAt, &isPinned, &typ); err != nil {
			return nil, fmt.Errorf("load indexable scan: %w", err)
		}

		text := plainText
		if note.Valid && note.String != "" {
			text += "\n" + note.String
		}

		items = append(items, indexedItem{
			id:          id,
			textLower:   toLowerFold(text),
			lastUsedAt:  lastUsedAt,
			isPinned:    isPinned != 0,
			appBundleID: appBundleID.String,
			itemType:    model.ClipboardItemType(typ),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load indexable iterate: %w", err)
	}

	return items, nil
}

// corpusStats reports the average and max plain_text length, used to
// decide whether the corpus is "long-text heavy" (spec §4.5).
func (e *SearchEngine) corpusStats(ctx context.Context) (avgLen, maxLen float64, err error) {
	row := e.db.QueryRowContext(ctx, `SELECT COALESCE(AVG(LENGTH(plain_text)), 0), COALESCE(MAX(LENGTH(plain_text)), 0) FROM clipboard_items`)
	if err := row.Scan(&avgLen, &maxLen); err != nil {
		return 0, 0, fmt.Errorf("corpus stats: %w", err)
	}

	return avgLen, maxLen, nil
}

func (e *SearchEngine) corpusSize(ctx context.Context) (int, error) {
	row := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clipboard_items`)

	var n int

	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("corpus size: %w", err)
	}

	return n, nil
}
