package clipboard_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/blobstore"
	"github.com/scopyapp/scopy/internal/clipboard"
	"github.com/scopyapp/scopy/internal/fs"
	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/search"
	"github.com/scopyapp/scopy/internal/storage"
	"github.com/scopyapp/scopy/internal/storageservice"
)

// fakeMonitor is a model.Monitor test double driven directly by tests via
// Emit; it never touches a real pasteboard.
type fakeMonitor struct {
	mu       sync.Mutex
	ch       chan model.ClipboardContent
	written  []model.ClipboardItemType
	interval int
	stopped  bool
}

func newFakeMonitor() *fakeMonitor {
	return &fakeMonitor{ch: make(chan model.ClipboardContent, 16)}
}

func (m *fakeMonitor) Start(context.Context) (<-chan model.ClipboardContent, error) {
	return m.ch, nil
}

func (m *fakeMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.stopped {
		m.stopped = true
		close(m.ch)
	}

	return nil
}

func (m *fakeMonitor) SetPollingInterval(intervalMs int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interval = intervalMs
}

func (m *fakeMonitor) WriteText(string) error { return nil }

func (m *fakeMonitor) WriteBytes(itemType model.ClipboardItemType, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.written = append(m.written, itemType)

	return nil
}

func (m *fakeMonitor) WriteFileURLs([]string) error { return nil }

func (m *fakeMonitor) Emit(t *testing.T, c model.ClipboardContent) {
	t.Helper()
	m.ch <- c
}

type fakeThumbnailer struct {
	png []byte
}

func (f *fakeThumbnailer) FromBytes(context.Context, []byte, int) ([]byte, error) {
	return f.png, nil
}

func (f *fakeThumbnailer) FromImageFile(context.Context, string, int) ([]byte, error) {
	return f.png, nil
}

func (f *fakeThumbnailer) FromVideoFile(context.Context, string, int) ([]byte, error) {
	return f.png, nil
}

func (f *fakeThumbnailer) FromGenericFile(context.Context, string, int) ([]byte, error) {
	return f.png, nil
}

type fakeSettingsStore struct {
	settings model.SettingsDTO
}

func (f *fakeSettingsStore) Load(context.Context) (model.SettingsDTO, error) {
	return f.settings, nil
}

func (f *fakeSettingsStore) Save(_ context.Context, s model.SettingsDTO) error {
	f.settings = s

	return nil
}

type fakeFileStater struct {
	size int64
}

func (f *fakeFileStater) AggregateSize(context.Context, []string) (int64, error) {
	return f.size, nil
}

// fakePNGRecompressor shrinks the input to shrinkTo bytes and reports
// changed=true, unless disabled, in which case it reports no change.
type fakePNGRecompressor struct {
	mu       sync.Mutex
	shrinkTo int
	disabled bool
}

func (f *fakePNGRecompressor) Recompress(_ context.Context, data []byte, _ model.SettingsDTO) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.disabled || f.shrinkTo >= len(data) {
		return data, false, nil
	}

	return data[:f.shrinkTo], true, nil
}

func newTestHarness(t *testing.T) (*clipboard.Service, *fakeMonitor, *storage.Repository, *fakePNGRecompressor) {
	t.Helper()

	dir := t.TempDir()

	repo, err := storage.Open(t.Context(), filepath.Join(dir, "scopy.sqlite3"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	blobs := blobstore.New(fs.NewReal(), filepath.Join(dir, "blobs"), filepath.Join(dir, "thumbs"))
	svc := storageservice.New(repo, blobs, nil)

	engine, err := search.Open(t.Context(), filepath.Join(dir, "scopy.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	monitor := newFakeMonitor()
	settingsStore := &fakeSettingsStore{settings: model.SettingsDTO{
		SaveImages:          true,
		SaveFiles:           true,
		ShowImageThumbnails: true,
		ThumbnailHeight:     200,
		MaxItems:            1000,
		MaxStorageMB:        512,
	}}

	recompressor := &fakePNGRecompressor{shrinkTo: 2}

	svcClipboard := clipboard.New(monitor, svc, engine, settingsStore, clipboard.Options{
		Thumbnailer:     &fakeThumbnailer{png: []byte("fake-png")},
		FileStater:      &fakeFileStater{size: 42},
		PNGRecompressor: recompressor,
	})

	require.NoError(t, svcClipboard.Start(t.Context()))
	t.Cleanup(func() { _ = svcClipboard.Stop() })

	return svcClipboard, monitor, repo, recompressor
}

func waitForEvent(t *testing.T, svc *clipboard.Service, kind model.EventKind) model.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	for {
		evt, ok, err := svc.NextEvent(ctx)
		require.NoError(t, err)
		require.True(t, ok, "event stream closed before %s arrived", kind)

		if evt.Kind == kind {
			return evt
		}
	}
}

func Test_Service_HandleNewContent_Text_Emits_NewItem(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeText,
		PlainText:   "hello world",
		ContentHash: "hash-1",
	})

	evt := waitForEvent(t, svc, model.EventNewItem)
	require.Equal(t, "hello world", evt.Item.PlainText)
	require.False(t, evt.Item.IsPinned)
}

func Test_Service_HandleNewContent_Duplicate_Emits_ItemUpdated(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	content := model.ClipboardContent{Type: model.TypeText, PlainText: "dup", ContentHash: "hash-dup"}

	monitor.Emit(t, content)
	waitForEvent(t, svc, model.EventNewItem)

	monitor.Emit(t, content)
	evt := waitForEvent(t, svc, model.EventItemUpdated)
	require.Equal(t, int64(2), evt.Item.UseCount)
}

func Test_Service_HandleNewContent_Image_Schedules_Thumbnail(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-img",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("pngbytes")},
	})

	newItem := waitForEvent(t, svc, model.EventNewItem)
	require.True(t, newItem.Item.ThumbnailQueued)

	thumbEvt := waitForEvent(t, svc, model.EventThumbnailUpdated)
	require.Equal(t, newItem.Item.ID, thumbEvt.ThumbnailID)
	require.NotEmpty(t, thumbEvt.ThumbnailPath)
}

func Test_Service_HandleNewContent_Image_Not_Saved_When_SaveImages_Disabled(t *testing.T) {
	t.Parallel()

	svc, monitor, repo, _ := newTestHarness(t)

	require.NoError(t, svc.UpdateSettings(t.Context(), model.SettingsDTO{
		SaveImages: false,
		SaveFiles:  true,
	}))
	waitForEvent(t, svc, model.EventSettingsChanged)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-skip",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("x")},
	})

	// Give the actor a moment to process; no newItem event should follow.
	time.Sleep(100 * time.Millisecond)

	count, _, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(0), count)
}

func Test_Service_Pin_Then_Delete(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "pinme", ContentHash: "hash-pin"})
	evt := waitForEvent(t, svc, model.EventNewItem)

	require.NoError(t, svc.Pin(t.Context(), evt.Item.ID, true))
	pinEvt := waitForEvent(t, svc, model.EventItemPinned)
	require.Equal(t, evt.Item.ID, pinEvt.ItemID)

	require.NoError(t, svc.Delete(t.Context(), evt.Item.ID))
	delEvt := waitForEvent(t, svc, model.EventItemDeleted)
	require.Equal(t, evt.Item.ID, delEvt.ItemID)
}

func Test_Service_Search_Finds_Ingested_Item(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "searchable content", ContentHash: "hash-search"})
	waitForEvent(t, svc, model.EventNewItem)

	page, err := svc.Search(t.Context(), model.SearchRequest{Query: "searchable", Mode: model.ModeFuzzy, Sort: model.SortRelevance, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "searchable content", page.Items[0].PlainText)
}

func Test_Service_File_Item_Schedules_Size_Probe(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeFile,
		PlainText:   "/tmp/some/file.bin",
		ContentHash: "hash-file",
		Payload:     model.Payload{Kind: model.PayloadFileURLs, FileURLs: []string{"/tmp/some/file.bin"}},
		DeclaredSize: 10,
	})

	waitForEvent(t, svc, model.EventNewItem)

	contentEvt := waitForEvent(t, svc, model.EventItemContentUpdated)
	require.NotNil(t, contentEvt.Item.FileSizeBytes)
	require.Equal(t, int64(42), *contentEvt.Item.FileSizeBytes)
}

func Test_Service_Stop_Is_Idempotent(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestHarness(t)

	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())
}

func Test_Service_Call_After_Stop_Returns_ErrNotStarted(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestHarness(t)
	require.NoError(t, svc.Stop())

	err := svc.Pin(t.Context(), "whatever", true)
	require.ErrorIs(t, err, clipboard.ErrNotStarted)
}

func Test_Service_FetchRecent_Returns_Ingested_Items_Newest_First(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "first", ContentHash: "hash-first"})
	waitForEvent(t, svc, model.EventNewItem)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "second", ContentHash: "hash-second"})
	waitForEvent(t, svc, model.EventNewItem)

	items, err := svc.FetchRecent(t.Context(), 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "second", items[0].PlainText)
	require.Equal(t, "first", items[1].PlainText)
}

func Test_Service_FetchRecent_Honors_Limit_And_Offset(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	for i := range 3 {
		monitor.Emit(t, model.ClipboardContent{
			Type:        model.TypeText,
			PlainText:   fmt.Sprintf("item-%d", i),
			ContentHash: fmt.Sprintf("hash-%d", i),
		})
		waitForEvent(t, svc, model.EventNewItem)
	}

	items, err := svc.FetchRecent(t.Context(), 1, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "item-1", items[0].PlainText)
}

func Test_Service_GetSettings_Returns_Current_Settings(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestHarness(t)

	settings, err := svc.GetSettings(t.Context())
	require.NoError(t, err)
	require.True(t, settings.SaveImages)
	require.Equal(t, 1000, settings.MaxItems)

	require.NoError(t, svc.UpdateSettings(t.Context(), model.SettingsDTO{SaveImages: false, MaxItems: 50}))
	waitForEvent(t, svc, model.EventSettingsChanged)

	settings, err = svc.GetSettings(t.Context())
	require.NoError(t, err)
	require.False(t, settings.SaveImages)
	require.Equal(t, 50, settings.MaxItems)
}

func Test_Service_GetStorageStats_Counts_Ingested_Items(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	count, _, err := svc.GetStorageStats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(0), count)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "counted", ContentHash: "hash-counted"})
	waitForEvent(t, svc, model.EventNewItem)

	count, size, err := svc.GetStorageStats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Positive(t, size)
}

func Test_Service_GetDetailedStorageStats_Breaks_Down_By_Type(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "text item", ContentHash: "hash-detail"})
	waitForEvent(t, svc, model.EventNewItem)

	stats, err := svc.GetDetailedStorageStats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.ItemCount)
	require.Equal(t, int64(1), stats.UnpinnedCount)
	require.Equal(t, int64(1), stats.CountByType[model.TypeText])
}

func Test_Service_GetRecentApps_Returns_Source_Bundle_IDs(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeText,
		PlainText:   "from an app",
		ContentHash: "hash-app",
		AppBundleID: "com.example.editor",
	})
	waitForEvent(t, svc, model.EventNewItem)

	apps, err := svc.GetRecentApps(t.Context(), 10)
	require.NoError(t, err)
	require.Contains(t, apps, "com.example.editor")
}

func Test_Service_GetImageData_Returns_Payload_Bytes(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-imgdata",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("raw-image-bytes")},
	})
	evt := waitForEvent(t, svc, model.EventNewItem)

	data, err := svc.GetImageData(t.Context(), evt.Item.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("raw-image-bytes"), data)
}

func Test_Service_GetImageData_Returns_Nil_For_Unknown_ID(t *testing.T) {
	t.Parallel()

	svc, _, _, _ := newTestHarness(t)

	data, err := svc.GetImageData(t.Context(), "does-not-exist")
	require.NoError(t, err)
	require.Nil(t, data)
}

func Test_Service_OptimizeImage_Shrinks_Payload_And_Emits_ContentUpdated(t *testing.T) {
	t.Parallel()

	svc, monitor, _, recompressor := newTestHarness(t)
	recompressor.shrinkTo = 2

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-optimize",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("original-png-bytes")},
	})
	evt := waitForEvent(t, svc, model.EventNewItem)
	waitForEvent(t, svc, model.EventThumbnailUpdated)

	outcome, err := svc.OptimizeImage(t.Context(), evt.Item.ID)
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, int64(len("original-png-bytes")), outcome.OldSizeBytes)
	require.Equal(t, int64(2), outcome.NewSizeBytes)

	updated := waitForEvent(t, svc, model.EventItemContentUpdated)
	require.Equal(t, evt.Item.ID, updated.Item.ID)

	data, err := svc.GetImageData(t.Context(), evt.Item.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("or"), data)
}

func Test_Service_OptimizeImage_Keeps_Original_When_Recompressor_Disabled(t *testing.T) {
	t.Parallel()

	svc, monitor, _, recompressor := newTestHarness(t)
	recompressor.disabled = true

	monitor.Emit(t, model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-no-op",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("untouched-bytes")},
	})
	evt := waitForEvent(t, svc, model.EventNewItem)
	waitForEvent(t, svc, model.EventThumbnailUpdated)

	outcome, err := svc.OptimizeImage(t.Context(), evt.Item.ID)
	require.NoError(t, err)
	require.False(t, outcome.Changed)
	require.Equal(t, "no size improvement", outcome.Reason)

	data, err := svc.GetImageData(t.Context(), evt.Item.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("untouched-bytes"), data)
}

func Test_Service_OptimizeImage_Rejects_Non_Image_Item(t *testing.T) {
	t.Parallel()

	svc, monitor, _, _ := newTestHarness(t)

	monitor.Emit(t, model.ClipboardContent{Type: model.TypeText, PlainText: "not an image", ContentHash: "hash-textonly"})
	evt := waitForEvent(t, svc, model.EventNewItem)

	_, err := svc.OptimizeImage(t.Context(), evt.Item.ID)
	require.Error(t, err)
}
