package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/scopyapp/scopy/internal/model"
)

// selectItemCols is the column list shared by every query that scans into a
// [model.StoredItem], kept in one place so scanItemRow/scanItemRows agree on
// ordering.
const selectItemCols = `SELECT
	id, type, content_hash, plain_text, note, app_bundle_id,
	created_at, last_used_at, use_count, is_pinned, size_bytes,
	file_size_bytes, storage_ref, raw_data`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row rowScanner) (*model.StoredItem, error) {
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
		return nil, err
	}

	item.Type = model.ClipboardItemType(typ)
	item.Note = nullableStringPtr(note)
	item.AppBundleID = nullableStringPtr(appBundleID)
	item.IsPinned = isPinned != 0
	item.StorageRef = nullableStringPtr(storageRef)
	item.RawData = rawData

	if fileSize.Valid {
		v := fileSize.Int64
		item.FileSizeBytes = &v
	}

	return &item, nil
}

func scanItemRows(rows *sql.Rows) ([]model.StoredItem, error) {
	var items []model.StoredItem

	for rows.Next() {
		item, err := scanItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

func scanStringColumn(rows *sql.Rows) ([]string, error) {
	var out []string

	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan string column: %w", err)
		}

		if s.Valid {
			out = append(out, s.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate string column: %w", err)
	}

	return out, nil
}

func buildFilterWhere(f FilterOptions) (string, []any) {
	var (
		clauses []string
		args    []any
	)

	if f.AppBundleID != "" {
		clauses = append(clauses, "app_bundle_id = ?")
		args = append(args, f.AppBundleID)
	}

	if len(f.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Types)), ",")
		clauses = append(clauses, "type IN ("+placeholders+")")

		for _, t := range f.Types {
			args = append(args, string(t))
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}

	return *v
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}

	return b
}

func nullableStringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}

	return &s.String
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
