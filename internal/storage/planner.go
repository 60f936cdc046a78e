package storage

import (
	"context"
	"fmt"
)

// sizeWindowLimit bounds how many candidate rows PlanBySize scans before
// giving up, per spec §4.4 ("bounded to a large window, e.g. 10 000").
const sizeWindowLimit = 10000

// externalWindowLimit bounds PlanExternalExcess's candidate scan (spec §4.4:
// "bounded to ~5 000").
const externalWindowLimit = 5000

// CleanupPlan names the rows a cleanup pass should remove, plus the
// external blob basenames the caller must delete from disk afterward.
type CleanupPlan struct {
	IDs         []string
	StorageRefs []string
}

func (p *CleanupPlan) addRow(id string, ref *string) {
	p.IDs = append(p.IDs, id)

	if ref != nil && *ref != "" {
		p.StorageRefs = append(p.StorageRefs, *ref)
	}
}

// Empty reports whether the plan deletes nothing.
func (p CleanupPlan) Empty() bool { return len(p.IDs) == 0 }

type planRow struct {
	id        string
	ref       *string
	sizeBytes int64
}

// oldestUnpinned returns up to limit unpinned rows ordered by last_used_at
// ascending (oldest first), optionally restricted to imagesOnly.
func (r *Repository) oldestUnpinned(ctx context.Context, limit int, imagesOnly bool) ([]planRow, error) {
	db, err := r.handle()
	if err != nil {
		return nil, wrap("plan", err)
	}

	query := `SELECT id, storage_ref, size_bytes FROM clipboard_items WHERE is_pinned = 0`
	if imagesOnly {
		query += ` AND type = 'image'`
	}

	query += ` ORDER BY last_used_at ASC LIMIT ?`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, wrap("plan", err)
	}

	defer func() { _ = rows.Close() }()

	var out []planRow

	for rows.Next() {
		var (
			id   string
			ref  *string
			size int64
		)

		if err := rows.Scan(&id, &ref, &size); err != nil {
			return nil, wrap("plan", fmt.Errorf("scan candidate: %w", err))
		}

		out = append(out, planRow{id: id, ref: ref, sizeBytes: size})
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("plan", err)
	}

	return out, nil
}

// PlanByCount plans deletion of the oldest unpinned rows needed to bring the
// table at or under maxItems (spec §4.4, §9 scenario 3).
func (r *Repository) PlanByCount(ctx context.Context, maxItems int, imagesOnly bool) (CleanupPlan, error) {
	var plan CleanupPlan

	itemCount, _, _, err := r.Stats(ctx)
	if err != nil {
		return plan, err
	}

	excess := int(itemCount) - maxItems
	if excess <= 0 {
		return plan, nil
	}

	candidates, err := r.oldestUnpinned(ctx, excess, imagesOnly)
	if err != nil {
		return plan, err
	}

	for _, c := range candidates {
		plan.addRow(c.id, c.ref)
	}

	return plan, nil
}

// PlanByAge plans deletion of every unpinned row whose last_used_at is
// older than cutoffEpochSeconds.
func (r *Repository) PlanByAge(ctx context.Context, cutoffEpochSeconds float64, imagesOnly bool) (CleanupPlan, error) {
	var plan CleanupPlan

	db, err := r.handle()
	if err != nil {
		return plan, wrap("plan", err)
	}

	query := `SELECT id, storage_ref FROM clipboard_items WHERE is_pinned = 0 AND last_used_at < ?`
	if imagesOnly {
		query += ` AND type = 'image'`
	}

	rows, err := db.QueryContext(ctx, query, cutoffEpochSeconds)
	if err != nil {
		return plan, wrap("plan", err)
	}

	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id  string
			ref *string
		)

		if err := rows.Scan(&id, &ref); err != nil {
			return plan, wrap("plan", fmt.Errorf("scan candidate: %w", err))
		}

		plan.addRow(id, ref)
	}

	if err := rows.Err(); err != nil {
		return plan, wrap("plan", err)
	}

	return plan, nil
}

// PlanBySize plans deletion of the oldest unpinned rows needed to bring
// total_size_bytes at or under maxStorageBytes, scanning at most
// sizeWindowLimit candidates.
func (r *Repository) PlanBySize(ctx context.Context, maxStorageBytes int64, imagesOnly bool) (CleanupPlan, error) {
	var plan CleanupPlan

	_, _, totalSize, err := r.Stats(ctx)
	if err != nil {
		return plan, err
	}

	excessBytes := totalSize - maxStorageBytes
	if excessBytes <= 0 {
		return plan, nil
	}

	candidates, err := r.oldestUnpinned(ctx, sizeWindowLimit, imagesOnly)
	if err != nil {
		return plan, err
	}

	var reclaimed int64

	for _, c := range candidates {
		if reclaimed >= excessBytes {
			break
		}

		plan.addRow(c.id, c.ref)
		reclaimed += c.sizeBytes
	}

	return plan, nil
}

// PlanExternalExcess plans deletion of the oldest unpinned rows with an
// external blob needed to bring the count of unpinned externally-stored rows
// at or under maxExternalCount, scanning at most externalWindowLimit
// candidates. Pinned external rows are not counted.
func (r *Repository) PlanExternalExcess(ctx context.Context, maxExternalCount int) (CleanupPlan, error) {
	var plan CleanupPlan

	db, err := r.handle()
	if err != nil {
		return plan, wrap("plan", err)
	}

	row := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clipboard_items WHERE storage_ref IS NOT NULL AND is_pinned = 0`)

	var externalCount int

	if err := row.Scan(&externalCount); err != nil {
		return plan, wrap("plan", err)
	}

	excess := externalCount - maxExternalCount
	if excess <= 0 {
		return plan, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, storage_ref FROM clipboard_items
		WHERE storage_ref IS NOT NULL AND is_pinned = 0
		ORDER BY last_used_at ASC LIMIT ?`, externalWindowLimit)
	if err != nil {
		return plan, wrap("plan", err)
	}

	defer func() { _ = rows.Close() }()

	taken := 0

	for rows.Next() && taken < excess {
		var (
			id  string
			ref *string
		)

		if err := rows.Scan(&id, &ref); err != nil {
			return plan, wrap("plan", fmt.Errorf("scan candidate: %w", err))
		}

		plan.addRow(id, ref)
		taken++
	}

	if err := rows.Err(); err != nil {
		return plan, wrap("plan", err)
	}

	return plan, nil
}
