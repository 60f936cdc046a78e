// Package storageservice composes a storage.Repository and a
// blobstore.Store into the tiered-payload upsert, cleanup, and
// derived-artifact maintenance routines described in spec §4.4.
package storageservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/scopyapp/scopy/internal/blobstore"
	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/storage"
)

// inlineThreshold is the payload size, in bytes, above which a payload is
// externalized to the blob store rather than stored as an inline BLOB
// (spec §4.4: "small payloads inline as BLOB; payloads above a threshold go
// external").
const inlineThreshold = 64 * 1024

// fullVacuumPages bounds the incremental vacuum of a full cleanup pass
// (spec §4.4: "incremental vacuum of a bounded number of pages").
const fullVacuumPages = 256

// Budget configures a single Cleanup call.
type Budget struct {
	MaxItems         int64
	MaxStorageBytes  int64
	MaxExternalCount int
	AgeCutoffSeconds float64
	ImagesOnly       bool
}

// CleanupMode selects how thorough a Cleanup pass is (spec §4.4).
type CleanupMode string

// Recognized cleanup modes.
const (
	CleanupLight CleanupMode = "light"
	CleanupFull  CleanupMode = "full"
)

// CleanupOutcome reports what a Cleanup call actually did.
type CleanupOutcome struct {
	DeletedCount   int
	OrphansRemoved int
	VacuumRan      bool
}

// UpsertOutcome reports whether Upsert inserted a new row or refreshed an
// existing one.
type UpsertOutcome struct {
	Item     model.StoredItem
	Inserted bool
}

// Service composes Repository and blobstore.Store to implement spec §4.4.
type Service struct {
	repo  *storage.Repository
	blobs *blobstore.Store
	clock model.Clock
}

// New constructs a Service. clock defaults to model.RealClock if nil.
func New(repo *storage.Repository, blobs *blobstore.Store, clock model.Clock) *Service {
	if clock == nil {
		clock = model.RealClock
	}

	return &Service{repo: repo, blobs: blobs, clock: clock}
}

// Upsert implements spec §4.4's upsert operation: dedup by content hash,
// tiered inline/external payload placement on insert.
func (s *Service) Upsert(ctx context.Context, content model.ClipboardContent) (UpsertOutcome, error) {
	now := float64(s.clock().Unix())

	existing, err := s.repo.FindByHash(ctx, content.ContentHash)
	if err != nil {
		return UpsertOutcome{}, fmt.Errorf("storageservice: upsert: %w", err)
	}

	if existing != nil {
		if err := s.repo.TouchUse(ctx, existing.ID, now); err != nil {
			return UpsertOutcome{}, fmt.Errorf("storageservice: upsert: %w", err)
		}

		existing.LastUsedAt = now
		existing.UseCount++

		return UpsertOutcome{Item: *existing, Inserted: false}, nil
	}

	id, err := storage.NewItemID()
	if err != nil {
		return UpsertOutcome{}, fmt.Errorf("storageservice: upsert: %w", err)
	}

	item := model.StoredItem{
		ID:            id,
		Type:          content.Type,
		ContentHash:   content.ContentHash,
		PlainText:     content.PlainText,
		CreatedAt:     now,
		LastUsedAt:    now,
		UseCount:      1,
		IsPinned:      false,
		FileSizeBytes: content.FileSizeBytes,
	}

	switch content.Payload.Kind {
	case model.PayloadInline:
		if err := s.placePayload(&item, id, content); err != nil {
			return UpsertOutcome{}, err
		}
	case model.PayloadFileURLs:
		item.SizeBytes = content.DeclaredSize
	case model.PayloadNone:
		item.SizeBytes = int64(len(content.PlainText))
	}

	if err := s.repo.Insert(ctx, item); err != nil {
		return UpsertOutcome{}, fmt.Errorf("storageservice: upsert: %w", err)
	}

	return UpsertOutcome{Item: item, Inserted: true}, nil
}

// placePayload decides inline-vs-external placement for a freshly ingested
// payload and mutates item accordingly.
func (s *Service) placePayload(item *model.StoredItem, id string, content model.ClipboardContent) error {
	data := content.Payload.Inline
	item.SizeBytes = int64(len(data))

	if len(data) <= inlineThreshold {
		item.RawData = data

		return nil
	}

	ref, err := s.blobs.WriteBlob(id, payloadExtension(content.Type), data)
	if err != nil {
		return fmt.Errorf("storageservice: place payload: %w", err)
	}

	item.StorageRef = &ref

	return nil
}

func payloadExtension(t model.ClipboardItemType) string {
	switch t {
	case model.TypeImage:
		return "png"
	case model.TypeRTF:
		return "rtf"
	case model.TypeHTML:
		return "html"
	default:
		return "bin"
	}
}

// ResolvedPayload is the materialized representation CopyToClipboard hands
// back to the caller, which writes it to the Monitor.
type ResolvedPayload struct {
	Item     model.StoredItem
	Inline   []byte
	FilePath string // set instead of Inline when the payload is externally stored
}

// CopyToClipboard implements spec §4.4's copyToClipboard: reads the row,
// materializes its payload (preferring a direct file mapping over an
// in-memory read when the payload already lives externally), and bumps
// last_used_at/use_count.
func (s *Service) CopyToClipboard(ctx context.Context, id string) (ResolvedPayload, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return ResolvedPayload{}, fmt.Errorf("storageservice: copy to clipboard: %w", err)
	}

	now := float64(s.clock().Unix())
	if err := s.repo.TouchUse(ctx, id, now); err != nil {
		return ResolvedPayload{}, fmt.Errorf("storageservice: copy to clipboard: %w", err)
	}

	item.LastUsedAt = now
	item.UseCount++

	resolved := ResolvedPayload{Item: *item}

	switch {
	case item.HasExternalBlob():
		resolved.FilePath = *item.StorageRef
	default:
		resolved.Inline = item.RawData
	}

	return resolved, nil
}

// SetPinned flips is_pinned for id.
func (s *Service) SetPinned(ctx context.Context, id string, pinned bool) error {
	if err := s.repo.SetPinned(ctx, id, pinned); err != nil {
		return fmt.Errorf("storageservice: set pinned: %w", err)
	}

	return nil
}

// Delete removes one row and, if its payload was external, its blob.
func (s *Service) Delete(ctx context.Context, id string) error {
	ref, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("storageservice: delete: %w", err)
	}

	if ref != nil {
		s.blobs.RemoveBlob(*ref)
	}

	return nil
}

// ClearAll removes every row, or every unpinned row if keepPinned is true,
// and removes the corresponding external blobs.
func (s *Service) ClearAll(ctx context.Context, keepPinned bool) error {
	if !keepPinned {
		if err := s.clearAllIncludingPinned(ctx); err != nil {
			return err
		}

		return nil
	}

	refs, err := s.repo.ClearAllExceptPinned(ctx)
	if err != nil {
		return fmt.Errorf("storageservice: clear all: %w", err)
	}

	for _, ref := range refs {
		s.blobs.RemoveBlob(ref)
	}

	return nil
}

func (s *Service) clearAllIncludingPinned(ctx context.Context) error {
	all, err := s.repo.FetchRecent(ctx, 1<<30, 0)
	if err != nil {
		return fmt.Errorf("storageservice: clear all: %w", err)
	}

	ids := make([]string, len(all))
	for i, item := range all {
		ids[i] = item.ID
	}

	refs, err := s.repo.DeleteBatch(ctx, ids)
	if err != nil {
		return fmt.Errorf("storageservice: clear all: %w", err)
	}

	for _, ref := range refs {
		s.blobs.RemoveBlob(ref)
	}

	return nil
}

// UpdateNote sets or clears id's user note and returns the refreshed row.
func (s *Service) UpdateNote(ctx context.Context, id string, note *string) (model.StoredItem, error) {
	if err := s.repo.UpdateNote(ctx, id, note); err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: update note: %w", err)
	}

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: update note: %w", err)
	}

	return *item, nil
}

// UpdateFileSize persists a lazily-computed aggregate file size for a file
// item and returns the refreshed row (spec §4.6 "file-size probe").
func (s *Service) UpdateFileSize(ctx context.Context, id string, size int64) (model.StoredItem, error) {
	if err := s.repo.UpdateFileSizeBytes(ctx, id, size); err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: update file size: %w", err)
	}

	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: update file size: %w", err)
	}

	return *item, nil
}

// Cleanup implements spec §4.4's light/full cleanup modes.
func (s *Service) Cleanup(ctx context.Context, mode CleanupMode, budget Budget) (CleanupOutcome, error) {
	var outcome CleanupOutcome

	if budget.MaxItems > 0 {
		n, err := s.executePlan(ctx, func() (storage.CleanupPlan, error) {
			return s.repo.PlanByCount(ctx, int(budget.MaxItems), budget.ImagesOnly)
		})
		if err != nil {
			return outcome, err
		}

		outcome.DeletedCount += n
	}

	if budget.MaxStorageBytes > 0 {
		n, err := s.executePlan(ctx, func() (storage.CleanupPlan, error) {
			return s.repo.PlanBySize(ctx, budget.MaxStorageBytes, budget.ImagesOnly)
		})
		if err != nil {
			return outcome, err
		}

		outcome.DeletedCount += n
	}

	if budget.MaxExternalCount > 0 {
		n, err := s.executePlan(ctx, func() (storage.CleanupPlan, error) {
			return s.repo.PlanExternalExcess(ctx, budget.MaxExternalCount)
		})
		if err != nil {
			return outcome, err
		}

		outcome.DeletedCount += n
	}

	if mode == CleanupLight {
		return outcome, nil
	}

	if budget.AgeCutoffSeconds > 0 {
		n, err := s.executePlan(ctx, func() (storage.CleanupPlan, error) {
			return s.repo.PlanByAge(ctx, budget.AgeCutoffSeconds, budget.ImagesOnly)
		})
		if err != nil {
			return outcome, err
		}

		outcome.DeletedCount += n
	}

	removed, err := s.SweepOrphans(ctx)
	if err != nil {
		return outcome, err
	}

	outcome.OrphansRemoved = removed

	if err := s.repo.IncrementalVacuum(ctx, fullVacuumPages); err != nil {
		return outcome, fmt.Errorf("storageservice: cleanup: %w", err)
	}

	if err := s.repo.CheckpointWAL(ctx); err != nil {
		return outcome, fmt.Errorf("storageservice: cleanup: %w", err)
	}

	outcome.VacuumRan = true

	return outcome, nil
}

func (s *Service) executePlan(ctx context.Context, plan func() (storage.CleanupPlan, error)) (int, error) {
	p, err := plan()
	if err != nil {
		return 0, fmt.Errorf("storageservice: plan cleanup: %w", err)
	}

	if p.Empty() {
		return 0, nil
	}

	refs, err := s.repo.DeleteBatch(ctx, p.IDs)
	if err != nil {
		return 0, fmt.Errorf("storageservice: execute cleanup: %w", err)
	}

	for _, ref := range refs {
		s.blobs.RemoveBlob(ref)
	}

	return len(p.IDs), nil
}

// SweepOrphans removes any file under the external blob root whose basename
// isn't referenced by a row's storage_ref (spec §4.4's "full" mode).
func (s *Service) SweepOrphans(ctx context.Context) (int, error) {
	referenced, err := s.repo.ExternalBasenames(ctx)
	if err != nil {
		return 0, fmt.Errorf("storageservice: sweep orphans: %w", err)
	}

	basenames, err := s.blobs.ListBlobBasenames()
	if err != nil {
		return 0, fmt.Errorf("storageservice: sweep orphans: %w", err)
	}

	removed := 0

	for _, name := range basenames {
		if _, ok := referenced[name]; ok {
			continue
		}

		if err := s.blobs.RemoveBlobByBasename(name); err != nil {
			continue // a ref that fails validation or disappears mid-sweep is a hard skip (spec §4.3)
		}

		removed++
	}

	_ = ctx

	return removed, nil
}

// CompensateDerivedSizes implements spec §4.4's derived-size compensation:
// for every externally stored row, compare the recorded size_bytes to the
// file actually on disk and batch-correct mismatches in one transaction.
func (s *Service) CompensateDerivedSizes(ctx context.Context) (int, error) {
	items, err := s.repo.ListExternalItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("storageservice: compensate sizes: %w", err)
	}

	updates := make(map[string]int64)

	for _, item := range items {
		data, err := s.blobs.ReadBlob(item.StorageRef)
		if err != nil {
			continue // unreadable/invalid ref: hard skip, the orphan sweep handles cleanup
		}

		actual := int64(len(data))
		if actual != item.SizeBytes {
			updates[item.ID] = actual
		}
	}

	if len(updates) == 0 {
		return 0, nil
	}

	if err := s.repo.UpdateSizeBytesBatch(ctx, updates); err != nil {
		return 0, fmt.Errorf("storageservice: compensate sizes: %w", err)
	}

	return len(updates), nil
}

// FetchRecent returns a page of rows ordered newest/pinned first
// (spec §6's fetch_recent).
func (s *Service) FetchRecent(ctx context.Context, limit, offset int) ([]model.StoredItem, error) {
	items, err := s.repo.FetchRecent(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storageservice: fetch recent: %w", err)
	}

	return items, nil
}

// Stats implements spec §6's get_storage_stats: the plain (item_count,
// size_bytes) pair, as opposed to DetailedStats' per-type breakdown.
func (s *Service) Stats(ctx context.Context) (itemCount, totalSizeBytes int64, err error) {
	itemCount, _, totalSizeBytes, err = s.repo.Stats(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("storageservice: stats: %w", err)
	}

	return itemCount, totalSizeBytes, nil
}

// DetailedStats implements spec §6's get_detailed_storage_stats
// (SPEC_FULL.md §D.6's per-type/inline-vs-external breakdown).
func (s *Service) DetailedStats(ctx context.Context) (model.StorageStatsDTO, error) {
	stats, err := s.repo.DetailedStats(ctx)
	if err != nil {
		return model.StorageStatsDTO{}, fmt.Errorf("storageservice: detailed stats: %w", err)
	}

	return stats, nil
}

// RecentAppBundleIDs implements spec §6's get_recent_apps.
func (s *Service) RecentAppBundleIDs(ctx context.Context, limit int) ([]string, error) {
	apps, err := s.repo.RecentAppBundleIDs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("storageservice: recent apps: %w", err)
	}

	return apps, nil
}

// ReadImagePayload returns id's current row together with its raw payload
// bytes, read from the inline column or the external blob as appropriate.
// Used by OptimizeImage's re-encode path and by get_image_data (spec §6).
func (s *Service) ReadImagePayload(ctx context.Context, id string) (model.StoredItem, []byte, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.StoredItem{}, nil, fmt.Errorf("storageservice: read image payload: %w", err)
	}

	if item.HasExternalBlob() {
		data, err := s.blobs.ReadBlob(*item.StorageRef)
		if err != nil {
			return model.StoredItem{}, nil, fmt.Errorf("storageservice: read image payload: %w", err)
		}

		return *item, data, nil
	}

	return *item, item.RawData, nil
}

// ReplaceImagePayload overwrites id's payload with rewritten bytes, keeping
// its existing placement tier (inline stays inline; an externally stored
// blob is rewritten in place through the same atomic temp+rename path
// blobstore.WriteBlob already uses for a fresh write), and returns the
// refreshed row.
//
// Callers must only reach this once a rewrite has been confirmed worth
// keeping: the prior on-disk blob, if any, is left completely untouched
// until the new bytes are written and renamed into place, so a caller that
// never calls this on a failed or non-improving recompression gets the
// backup-and-restore behavior spec §7 describes "for free" — there is
// nothing to restore because nothing was touched.
func (s *Service) ReplaceImagePayload(ctx context.Context, id string, item model.StoredItem, rewritten []byte) (model.StoredItem, error) {
	var storageRef *string

	rawData := rewritten

	if item.HasExternalBlob() {
		ref, err := s.blobs.WriteBlob(id, "png", rewritten)
		if err != nil {
			return model.StoredItem{}, fmt.Errorf("storageservice: replace image payload: %w", err)
		}

		storageRef = &ref
		rawData = nil
	}

	if err := s.repo.UpdateContent(ctx, id, item.PlainText, item.Note, int64(len(rewritten)), storageRef, rawData); err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: replace image payload: %w", err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.StoredItem{}, fmt.Errorf("storageservice: replace image payload: %w", err)
	}

	return *updated, nil
}

// ThumbnailPath returns the cache path that WriteThumbnail will write to for
// contentHash, so callers can populate model.ItemDTO.ThumbnailPath before the
// thumbnail actually exists on disk (spec §4.6 "thumbnail generation").
func (s *Service) ThumbnailPath(contentHash string, isFile bool) string {
	return s.blobs.ThumbnailPath(contentHash, isFile)
}

// WriteThumbnail atomically persists generated PNG thumbnail bytes.
func (s *Service) WriteThumbnail(contentHash string, isFile bool, png []byte) error {
	if err := s.blobs.WriteThumbnail(contentHash, isFile, png); err != nil {
		return fmt.Errorf("storageservice: write thumbnail: %w", err)
	}

	return nil
}

// HasThumbnail reports whether a cached thumbnail already exists for
// contentHash, used by the clipboard service on a thumbnail-index miss.
func (s *Service) HasThumbnail(contentHash string, isFile bool) (bool, error) {
	ok, err := s.blobs.HasThumbnail(contentHash, isFile)
	if err != nil {
		return false, fmt.Errorf("storageservice: has thumbnail: %w", err)
	}

	return ok, nil
}

// HashBytes computes the content hash used to dedup inline payloads.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}
