// Package clipboard implements ClipboardService: the outward-facing actor
// composing Monitor, StorageService, SearchEngine, and SettingsStore
// (spec §4.6). All state-mutating operations are linearized through a
// single command-loop goroutine, replacing the literal actor model with
// the CSP idiom the teacher's own packages use for single-writer
// serialization.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/queue"
	"github.com/scopyapp/scopy/internal/search"
	"github.com/scopyapp/scopy/internal/storage"
	"github.com/scopyapp/scopy/internal/storageservice"
)

// ErrNotStarted means a call was made before Start or after Stop.
var ErrNotStarted = errors.New("clipboard service not started")

// Scheduling constants (spec §4.6).
const (
	cleanupDebounce        = 2 * time.Second
	lightCleanupInterval   = 60 * time.Second
	fullCleanupInterval    = 3600 * time.Second
	fileSizeProbeSuppress  = 3 * time.Hour
	maxConcurrentThumbs    = 2
	maxConcurrentSizeProbe = 2
	eventQueueCapacity     = 1024
)

// Service is the outward-facing actor described in spec §4.6.
type Service struct {
	monitor         model.Monitor
	storage         *storageservice.Service
	search          *search.SearchEngine
	settingsStore   model.SettingsStore
	thumbnailer     model.Thumbnailer
	pngRecompressor model.PNGRecompressor
	fileStater      model.FileStater
	clock           model.Clock
	log             *slog.Logger

	events *queue.BoundedQueue[model.Event]

	cmdCh chan func()

	mu              sync.Mutex
	started         bool
	cancel          context.CancelFunc
	settings        model.SettingsDTO
	lastLight       time.Time
	lastFull        time.Time
	cleanupPending  bool
	cleanupTimer    *time.Timer
	thumbSem        chan struct{}
	probeSem        chan struct{}
	thumbInProgress  map[string]struct{} // keyed by content hash, "file_" prefixed for file items
	thumbIndex       map[string]struct{} // filename index for O(1) existence checks
	probeLastAttempt map[string]time.Time
}

// Options configures New's optional collaborators.
type Options struct {
	Thumbnailer     model.Thumbnailer
	PNGRecompressor model.PNGRecompressor
	FileStater      model.FileStater
	Clock           model.Clock
	Logger          *slog.Logger
}

// New constructs a Service. It must be started with Start before use.
func New(monitor model.Monitor, storage *storageservice.Service, engine *search.SearchEngine, settingsStore model.SettingsStore, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = model.RealClock
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		monitor:          monitor,
		storage:          storage,
		search:           engine,
		settingsStore:    settingsStore,
		thumbnailer:      opts.Thumbnailer,
		pngRecompressor:  opts.PNGRecompressor,
		fileStater:       opts.FileStater,
		clock:            clock,
		log:              logger,
		events:           queue.New[model.Event](eventQueueCapacity),
		cmdCh:            make(chan func()),
		thumbSem:         make(chan struct{}, maxConcurrentThumbs),
		probeSem:         make(chan struct{}, maxConcurrentSizeProbe),
		thumbInProgress:  make(map[string]struct{}),
		thumbIndex:       make(map[string]struct{}),
		probeLastAttempt: make(map[string]time.Time),
	}
}

// Start loads settings, begins the command loop, starts the monitor, and
// schedules the orphan sweep (spec §4.6). It does not build the thumbnail
// filename index; that index is filled one entry at a time by
// lookupThumbnail.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()

		return nil
	}

	settings, err := s.settingsStore.Load(ctx)
	if err != nil {
		s.mu.Unlock()

		return fmt.Errorf("clipboard: start: load settings: %w", err)
	}

	s.settings = settings

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true
	s.mu.Unlock()

	go s.runLoop(runCtx)

	content, err := s.monitor.Start(ctx)
	if err != nil {
		s.Stop()

		return fmt.Errorf("clipboard: start: monitor: %w", err)
	}

	s.monitor.SetPollingInterval(settings.ClipboardPollingIntervalMs)

	go s.consumeMonitor(runCtx, content)

	go s.sweepOrphansOnStartup(runCtx)

	return nil
}

// Stop halts the monitor, cancels background tasks, closes the event
// queue, and marks the service stopped. Idempotent.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.started = false

	if s.cancel != nil {
		s.cancel()
	}

	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
	}

	if err := s.monitor.Stop(); err != nil {
		s.log.Error("clipboard: stop monitor", "error", err)
	}

	s.events.Finish()

	return nil
}

// runLoop is the single goroutine that executes every queued command,
// giving the actor's linearization guarantee (spec §5: "at most one of its
// operations executes at a time").
func (s *Service) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.cmdCh:
			cmd()
		}
	}
}

// call submits fn to the command loop and waits for it to finish,
// propagating ctx cancellation on either side of the handoff.
func (s *Service) call(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return ErrNotStarted
	}

	done := make(chan error, 1)

	select {
	case s.cmdCh <- func() { done <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) consumeMonitor(ctx context.Context, content <-chan model.ClipboardContent) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-content:
			if !ok {
				return
			}

			if err := s.call(ctx, func() error { return s.handleNewContent(ctx, c) }); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("clipboard: handle new content", "error", err)
			}
		}
	}
}

// handleNewContent implements spec §4.6's ingestion path. Must run inside
// the command loop.
func (s *Service) handleNewContent(ctx context.Context, c model.ClipboardContent) error {
	if c.Type == model.TypeImage && !s.settings.SaveImages {
		return nil
	}

	if c.Type == model.TypeFile && !s.settings.SaveFiles {
		return nil
	}

	if c.Type == model.TypeImage && s.pngRecompressor != nil && s.settings.PNGRecompressEnabled && c.Payload.Kind == model.PayloadInline {
		out, changed, err := s.pngRecompressor.Recompress(ctx, c.Payload.Inline, s.settings)
		if err != nil {
			s.log.Warn("clipboard: png recompress failed", "error", err)
		} else if changed {
			c.Payload.Inline = out
			c.ContentHash = storageservice.HashBytes(out)
			c.DeclaredSize = int64(len(out))
		}
	}

	outcome, err := s.storage.Upsert(ctx, c)
	if err != nil {
		return fmt.Errorf("handle new content: %w", err)
	}

	s.search.HandleUpserted(outcome.Item)

	dto := s.mapItemToDTO(outcome.Item)

	if outcome.Inserted {
		s.enqueue(model.Event{Kind: model.EventNewItem, Item: &dto})
	} else {
		s.enqueue(model.Event{Kind: model.EventItemUpdated, Item: &dto})
	}

	if dto.ThumbnailQueued {
		s.scheduleThumbnail(outcome.Item)
	}

	if outcome.Item.Type == model.TypeFile && outcome.Item.FileSizeBytes == nil {
		s.scheduleFileSizeProbe(outcome.Item)
	}

	s.scheduleCleanup()

	return nil
}

// mapItemToDTO applies the thumbnail-scheduling decision described in
// spec §4.6's "Thumbnail generation" paragraph.
func (s *Service) mapItemToDTO(item model.StoredItem) model.ItemDTO {
	dto := model.ItemDTO{
		ID:            item.ID,
		Type:          item.Type,
		PlainText:     item.PlainText,
		Note:          item.Note,
		AppBundleID:   item.AppBundleID,
		CreatedAt:     item.CreatedAt,
		LastUsedAt:    item.LastUsedAt,
		UseCount:      item.UseCount,
		IsPinned:      item.IsPinned,
		SizeBytes:     item.SizeBytes,
		FileSizeBytes: item.FileSizeBytes,
	}

	if !s.settings.ShowImageThumbnails || s.thumbnailer == nil {
		return dto
	}

	switch item.Type {
	case model.TypeImage:
		if path, ok := s.lookupThumbnail(item.ContentHash, false); ok {
			dto.ThumbnailPath = &path
		} else {
			dto.ThumbnailQueued = true
		}
	case model.TypeFile:
		if path, ok := s.lookupThumbnail(item.ContentHash, true); ok {
			dto.ThumbnailPath = &path
		} else {
			dto.ThumbnailQueued = true
		}
	}

	return dto
}

// lookupThumbnail checks the in-memory existence index first and falls back
// to a disk check (populating the index) for content seen before this
// process started, so a restart doesn't re-schedule thumbnails that were
// already generated in a previous run.
func (s *Service) lookupThumbnail(contentHash string, isFile bool) (string, bool) {
	key := contentHash
	if isFile {
		key = "file_" + contentHash
	}

	if _, exists := s.thumbIndex[key]; exists {
		return s.thumbnailPathFor(contentHash, isFile), true
	}

	ok, err := s.storage.HasThumbnail(contentHash, isFile)
	if err != nil {
		s.log.Warn("clipboard: thumbnail existence check failed", "error", err)

		return "", false
	}

	if !ok {
		return "", false
	}

	s.thumbIndex[key] = struct{}{}

	return s.thumbnailPathFor(contentHash, isFile), true
}

func (s *Service) thumbnailPathFor(contentHash string, isFile bool) string {
	return s.storage.ThumbnailPath(contentHash, isFile)
}

func (s *Service) enqueue(evt model.Event) {
	// Best-effort: a full queue suspends the caller, which here is always
	// the command-loop goroutine itself. Use a background context so a
	// slow/absent consumer never wedges the actor indefinitely past
	// process shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.events.Enqueue(ctx, evt); err != nil {
		s.log.Warn("clipboard: event queue full, dropping", "kind", evt.Kind, "error", err)
	}
}

// NextEvent returns the next queued event, or ok=false once Stop has
// finished and the queue has drained.
func (s *Service) NextEvent(ctx context.Context) (model.Event, bool, error) {
	return s.events.Dequeue(ctx)
}

// Pin implements spec §4.6's pin/unpin.
func (s *Service) Pin(ctx context.Context, id string, pinned bool) error {
	return s.call(ctx, func() error {
		return s.setPinned(ctx, id, pinned)
	})
}

func (s *Service) setPinned(ctx context.Context, id string, pinned bool) error {
	if err := s.storage.SetPinned(ctx, id, pinned); err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}

	s.search.HandlePinnedChange(id, pinned)

	kind := model.EventItemUnpinned
	if pinned {
		kind = model.EventItemPinned
	}

	s.enqueue(model.Event{Kind: kind, ItemID: id})

	return nil
}

// Delete implements spec §4.6's delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if err := s.storage.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		s.search.HandleDeletion(id)
		s.enqueue(model.Event{Kind: model.EventItemDeleted, ItemID: id})

		return nil
	})
}

// ClearAll implements spec §4.6's clearAll.
func (s *Service) ClearAll(ctx context.Context, keepPinned bool) error {
	return s.call(ctx, func() error {
		if err := s.storage.ClearAll(ctx, keepPinned); err != nil {
			return fmt.Errorf("clear all: %w", err)
		}

		s.search.HandleClearAll()
		s.enqueue(model.Event{Kind: model.EventItemsCleared, KeepPinned: keepPinned})

		return nil
	})
}

// UpdateNote implements spec §4.6's updateNote.
func (s *Service) UpdateNote(ctx context.Context, id string, note *string) error {
	return s.call(ctx, func() error {
		item, err := s.storage.UpdateNote(ctx, id, note)
		if err != nil {
			return fmt.Errorf("update note: %w", err)
		}

		s.search.HandleUpserted(item)

		dto := s.mapItemToDTO(item)
		s.enqueue(model.Event{Kind: model.EventItemUpdated, Item: &dto})

		return nil
	})
}

// CopyToClipboard implements spec §4.4/§4.6's copyToClipboard.
func (s *Service) CopyToClipboard(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		resolved, err := s.storage.CopyToClipboard(ctx, id)
		if err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}

		switch {
		case resolved.FilePath != "":
			if err := s.monitor.WriteFileURLs([]string{resolved.FilePath}); err != nil {
				return fmt.Errorf("copy to clipboard: write back: %w", err)
			}
		default:
			if resolved.Item.Type == model.TypeText {
				if err := s.monitor.WriteText(resolved.Item.PlainText); err != nil {
					return fmt.Errorf("copy to clipboard: write back: %w", err)
				}
			} else if err := s.monitor.WriteBytes(resolved.Item.Type, resolved.Inline); err != nil {
				return fmt.Errorf("copy to clipboard: write back: %w", err)
			}
		}

		s.search.HandleUpserted(resolved.Item)

		dto := s.mapItemToDTO(resolved.Item)
		s.enqueue(model.Event{Kind: model.EventItemUpdated, Item: &dto})

		return nil
	})
}

// UpdateSettings implements spec §4.6's updateSettings: saves and applies the
// new settings, invalidates the search cache when MaxItems or MaxStorageMB
// changed, and clears the thumbnail cache index when thumbnail parameters
// changed. It runs no cleanup pass; new budgets are first used by the next
// scheduled cleanup.
func (s *Service) UpdateSettings(ctx context.Context, settings model.SettingsDTO) error {
	return s.call(ctx, func() error {
		if err := s.settingsStore.Save(ctx, settings); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}

		prev := s.settings

		thumbParamsChanged := prev.ThumbnailHeight != settings.ThumbnailHeight ||
			prev.ShowImageThumbnails != settings.ShowImageThumbnails

		budgetChanged := prev.MaxItems != settings.MaxItems || prev.MaxStorageMB != settings.MaxStorageMB

		s.settings = settings
		s.monitor.SetPollingInterval(settings.ClipboardPollingIntervalMs)

		if thumbParamsChanged {
			s.thumbIndex = make(map[string]struct{})
		}

		if budgetChanged {
			s.search.InvalidateCache()
		}

		s.enqueue(model.Event{Kind: model.EventSettingsChanged})

		return nil
	})
}

// Search forwards to SearchEngine. Reads do not need actor serialization:
// SearchEngine owns its own independent read-only connection and internal
// locking (spec §4.5, §5).
func (s *Service) Search(ctx context.Context, req model.SearchRequest) (model.SearchResultPage, error) {
	return s.search.Search(ctx, req)
}

// FetchRecent implements spec §6's fetch_recent. Routed through the command
// loop because mapItemToDTO reads the actor's settings/thumbnail-index
// state, which is only ever safe to touch from the single command-loop
// goroutine (spec §5).
func (s *Service) FetchRecent(ctx context.Context, limit, offset int) ([]model.ItemDTO, error) {
	var dtos []model.ItemDTO

	err := s.call(ctx, func() error {
		items, err := s.storage.FetchRecent(ctx, limit, offset)
		if err != nil {
			return fmt.Errorf("fetch recent: %w", err)
		}

		dtos = make([]model.ItemDTO, len(items))
		for i, item := range items {
			dtos[i] = s.mapItemToDTO(item)
		}

		return nil
	})

	return dtos, err
}

// GetSettings implements spec §6's get_settings, returning the settings
// snapshot most recently loaded or applied via UpdateSettings.
func (s *Service) GetSettings(ctx context.Context) (model.SettingsDTO, error) {
	var out model.SettingsDTO

	err := s.call(ctx, func() error {
		out = s.settings

		return nil
	})

	return out, err
}

// GetStorageStats implements spec §6's get_storage_stats: the plain
// (item_count, size_bytes) pair. A read against Repository's own connection,
// so it does not need actor serialization (spec §5).
func (s *Service) GetStorageStats(ctx context.Context) (itemCount, sizeBytes int64, err error) {
	return s.storage.Stats(ctx)
}

// GetDetailedStorageStats implements spec §6's get_detailed_storage_stats.
func (s *Service) GetDetailedStorageStats(ctx context.Context) (model.StorageStatsDTO, error) {
	return s.storage.DetailedStats(ctx)
}

// GetRecentApps implements spec §6's get_recent_apps.
func (s *Service) GetRecentApps(ctx context.Context, limit int) ([]string, error) {
	return s.storage.RecentAppBundleIDs(ctx, limit)
}

// GetImageData implements spec §6's get_image_data: the raw bytes for id's
// payload, or nil if id doesn't exist or isn't an image. A plain read, so it
// does not need actor serialization.
func (s *Service) GetImageData(ctx context.Context, id string) ([]byte, error) {
	item, data, err := s.storage.ReadImagePayload(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("get image data: %w", err)
	}

	if item.Type != model.TypeImage {
		return nil, nil
	}

	return data, nil
}

// OptimizeImage implements spec §4.6/§6's optimize_image: re-encodes an
// image item's payload through the injected PNGRecompressor and keeps the
// rewritten bytes only if they are strictly smaller than the original (spec
// §9's tie-break: an equal-or-larger rewrite keeps the original). A
// recompressor failure is treated the same as spec §7's "external-process
// failure": logged, reported as unchanged, original payload untouched.
func (s *Service) OptimizeImage(ctx context.Context, id string) (model.OptimizationOutcome, error) {
	var outcome model.OptimizationOutcome

	err := s.call(ctx, func() error {
		item, original, err := s.storage.ReadImagePayload(ctx, id)
		if err != nil {
			return fmt.Errorf("optimize image: %w", err)
		}

		if item.Type != model.TypeImage {
			return fmt.Errorf("optimize image: item %q is not an image", id)
		}

		outcome.OldSizeBytes = int64(len(original))
		outcome.NewSizeBytes = outcome.OldSizeBytes

		if s.pngRecompressor == nil {
			outcome.Reason = "no recompressor configured"

			return nil
		}

		rewritten, changed, err := s.pngRecompressor.Recompress(ctx, original, s.settings)
		if err != nil {
			s.log.Warn("clipboard: optimize image: recompress failed", "item_id", id, "error", err)
			outcome.Reason = "recompress failed"

			return nil
		}

		if !changed || len(rewritten) >= len(original) {
			outcome.Reason = "no size improvement"

			return nil
		}

		updated, err := s.storage.ReplaceImagePayload(ctx, id, item, rewritten)
		if err != nil {
			return fmt.Errorf("optimize image: %w", err)
		}

		s.search.HandleUpserted(updated)

		dto := s.mapItemToDTO(updated)
		s.enqueue(model.Event{Kind: model.EventItemContentUpdated, Item: &dto})

		outcome.Changed = true
		outcome.NewSizeBytes = int64(len(rewritten))

		return nil
	})

	return outcome, err
}

func (s *Service) sweepOrphansOnStartup(ctx context.Context) {
	if _, err := s.storage.SweepOrphans(ctx); err != nil {
		s.log.Warn("clipboard: startup orphan sweep", "error", err)
	}
}

// scheduleCleanup debounces a cleanup pass (light or full, as
// runScheduledCleanup decides) by cleanupDebounce, per spec §4.6 ("schedule
// cleanup with a 2s debounce"). Must run inside the command loop.
func (s *Service) scheduleCleanup() {
	if s.cleanupPending {
		return
	}

	s.cleanupPending = true

	if s.cleanupTimer != nil {
		s.cleanupTimer.Stop()
	}

	s.cleanupTimer = time.AfterFunc(cleanupDebounce, func() {
		ctx := context.Background()

		if err := s.call(ctx, func() error {
			s.cleanupPending = false

			return s.runScheduledCleanup(ctx)
		}); err != nil {
			s.log.Warn("clipboard: scheduled cleanup", "error", err)
		}
	})
}

// runScheduledCleanup enforces the "light every >=60s, full every >=3600s"
// cadence of spec §4.6. Must run inside the command loop.
func (s *Service) runScheduledCleanup(ctx context.Context) error {
	now := s.clock()

	budget := storageservice.Budget{
		MaxItems:         int64(s.settings.MaxItems),
		MaxStorageBytes:  int64(s.settings.MaxStorageMB) * 1024 * 1024,
		MaxExternalCount: 0,
		ImagesOnly:       s.settings.CleanupImagesOnly,
	}

	mode := storageservice.CleanupLight
	if s.lastFull.IsZero() || now.Sub(s.lastFull) >= fullCleanupInterval {
		mode = storageservice.CleanupFull
		s.lastFull = now
	} else if !s.lastLight.IsZero() && now.Sub(s.lastLight) < lightCleanupInterval {
		return nil
	}

	s.lastLight = now

	outcome, err := s.storage.Cleanup(ctx, mode, budget)
	if err != nil {
		return fmt.Errorf("scheduled cleanup: %w", err)
	}

	if outcome.DeletedCount > 0 {
		s.search.InvalidateCache()
	}

	return nil
}

// scheduleThumbnail dispatches off-actor thumbnail generation, admission
// controlled to maxConcurrentThumbs in flight (spec §4.6).
func (s *Service) scheduleThumbnail(item model.StoredItem) {
	if s.thumbnailer == nil {
		return
	}

	key := item.ContentHash
	if item.Type == model.TypeFile {
		key = "file_" + item.ContentHash
	}

	if _, inProgress := s.thumbInProgress[key]; inProgress {
		return
	}

	s.thumbInProgress[key] = struct{}{}

	go func() {
		s.thumbSem <- struct{}{}
		defer func() { <-s.thumbSem }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		png, genErr := s.generateThumbnail(ctx, item)

		var writeErr error

		if genErr == nil {
			writeErr = s.storage.WriteThumbnail(item.ContentHash, item.Type == model.TypeFile, png)
		}

		_ = s.call(ctx, func() error {
			delete(s.thumbInProgress, key)

			if genErr != nil {
				s.log.Warn("clipboard: thumbnail generation failed", "item_id", item.ID, "error", genErr)

				return nil
			}

			if writeErr != nil {
				s.log.Warn("clipboard: thumbnail write failed", "item_id", item.ID, "error", writeErr)

				return nil
			}

			s.thumbIndex[key] = struct{}{}
			path := s.thumbnailPathFor(item.ContentHash, item.Type == model.TypeFile)
			s.enqueue(model.Event{Kind: model.EventThumbnailUpdated, ThumbnailID: item.ID, ThumbnailPath: path})

			return nil
		})
	}()
}

func (s *Service) generateThumbnail(ctx context.Context, item model.StoredItem) ([]byte, error) {
	maxHeight := s.settings.ThumbnailHeight

	switch item.Type {
	case model.TypeImage:
		return s.thumbnailer.FromBytes(ctx, item.RawData, maxHeight)
	case model.TypeFile:
		return s.thumbnailer.FromGenericFile(ctx, item.PlainText, maxHeight)
	default:
		return nil, fmt.Errorf("generate thumbnail: unsupported type %q", item.Type)
	}
}

// scheduleFileSizeProbe dispatches an off-actor aggregate-size read for a
// file item, retry-suppressed to fileSizeProbeSuppress (spec §4.6).
func (s *Service) scheduleFileSizeProbe(item model.StoredItem) {
	if s.fileStater == nil {
		return
	}

	if last, ok := s.probeLastAttempt[item.ID]; ok && s.clock().Sub(last) < fileSizeProbeSuppress {
		return
	}

	s.probeLastAttempt[item.ID] = s.clock()

	go func() {
		s.probeSem <- struct{}{}
		defer func() { <-s.probeSem }()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		size, err := s.fileStater.AggregateSize(ctx, []string{item.PlainText})
		if err != nil {
			s.log.Warn("clipboard: file size probe failed", "item_id", item.ID, "error", err)

			return
		}

		_ = s.call(ctx, func() error {
			updated, err := s.storage.UpdateFileSize(ctx, item.ID, size)
			if err != nil {
				s.log.Warn("clipboard: persist file size failed", "item_id", item.ID, "error", err)

				return nil //nolint:nilerr // best-effort; logged above
			}

			s.search.HandleUpserted(updated)

			dto := s.mapItemToDTO(updated)
			s.enqueue(model.Event{Kind: model.EventItemContentUpdated, Item: &dto})

			return nil
		})
	}()
}
