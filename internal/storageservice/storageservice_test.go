package storageservice_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/blobstore"
	"github.com/scopyapp/scopy/internal/fs"
	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/storage"
	"github.com/scopyapp/scopy/internal/storageservice"
)

func newTestService(t *testing.T) (*storageservice.Service, *storage.Repository, *blobstore.Store) {
	t.Helper()

	dir := t.TempDir()

	repo, err := storage.Open(t.Context(), filepath.Join(dir, "scopy.sqlite3"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	blobs := blobstore.New(fs.NewReal(), filepath.Join(dir, "blobs"), filepath.Join(dir, "thumbs"))

	return storageservice.New(repo, blobs, nil), repo, blobs
}

func Test_Service_Upsert_Inserts_New_Content(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	outcome, err := svc.Upsert(t.Context(), model.ClipboardContent{
		Type:        model.TypeText,
		PlainText:   "hello",
		ContentHash: "hash-1",
	})
	require.NoError(t, err)
	require.True(t, outcome.Inserted)
	require.Equal(t, int64(1), outcome.Item.UseCount)
}

func Test_Service_Upsert_Twice_Yields_One_Row_With_Incremented_UseCount(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)

	content := model.ClipboardContent{Type: model.TypeText, PlainText: "hello", ContentHash: "hash-1"}

	first, err := svc.Upsert(t.Context(), content)
	require.NoError(t, err)
	require.True(t, first.Inserted)

	second, err := svc.Upsert(t.Context(), content)
	require.NoError(t, err)
	require.False(t, second.Inserted)
	require.Equal(t, int64(2), second.Item.UseCount)

	count, _, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "upsert(c) followed by upsert(c) should yield exactly one row")
}

func Test_Service_Upsert_Large_Payload_Goes_External(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)

	big := make([]byte, 128*1024)

	outcome, err := svc.Upsert(t.Context(), model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-big",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: big},
	})
	require.NoError(t, err)
	require.True(t, outcome.Item.HasExternalBlob())
	require.Nil(t, outcome.Item.RawData)

	stored, err := repo.Get(t.Context(), outcome.Item.ID)
	require.NoError(t, err)
	require.True(t, stored.HasExternalBlob())
}

func Test_Service_Upsert_Small_Payload_Stays_Inline(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	outcome, err := svc.Upsert(t.Context(), model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-small",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: []byte("small")},
	})
	require.NoError(t, err)
	require.False(t, outcome.Item.HasExternalBlob())
	require.Equal(t, []byte("small"), outcome.Item.RawData)
}

func Test_Service_CopyToClipboard_Bumps_UseCount_And_Resolves_External_Payload(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	big := make([]byte, 128*1024)
	for i := range big {
		big[i] = byte(i)
	}

	outcome, err := svc.Upsert(t.Context(), model.ClipboardContent{
		Type:        model.TypeImage,
		ContentHash: "hash-big",
		Payload:     model.Payload{Kind: model.PayloadInline, Inline: big},
	})
	require.NoError(t, err)

	resolved, err := svc.CopyToClipboard(t.Context(), outcome.Item.ID)
	require.NoError(t, err)
	require.NotEmpty(t, resolved.FilePath)
	require.Equal(t, int64(2), resolved.Item.UseCount)
}

func Test_Service_Cleanup_Light_Deletes_Excess_Unpinned_Rows(t *testing.T) {
	t.Parallel()

	svc, repo, _ := newTestService(t)

	now := time.Now()

	for i := range 5 {
		id, err := storage.NewItemID()
		require.NoError(t, err)
		require.NoError(t, repo.Insert(t.Context(), model.StoredItem{
			ID:          id,
			Type:        model.TypeText,
			ContentHash: string(rune('a' + i)),
			PlainText:   "entry",
			CreatedAt:   float64(now.Add(time.Duration(i) * time.Second).Unix()),
			LastUsedAt:  float64(now.Add(time.Duration(i) * time.Second).Unix()),
			UseCount:    1,
		}))
	}

	outcome, err := svc.Cleanup(t.Context(), storageservice.CleanupLight, storageservice.Budget{MaxItems: 3})
	require.NoError(t, err)
	require.Equal(t, 2, outcome.DeletedCount)
	require.False(t, outcome.VacuumRan, "light mode should not run vacuum")

	count, _, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func Test_Service_Cleanup_Full_Sweeps_Orphan_Blobs(t *testing.T) {
	t.Parallel()

	svc, _, blobs := newTestService(t)

	_, err := blobs.WriteBlob("orphan-id", "bin", []byte("unreferenced"))
	require.NoError(t, err)

	outcome, err := svc.Cleanup(t.Context(), storageservice.CleanupFull, storageservice.Budget{})
	require.NoError(t, err)
	require.Equal(t, 1, outcome.OrphansRemoved)
	require.True(t, outcome.VacuumRan)
}

func Test_Service_CompensateDerivedSizes_Corrects_Stale_Size(t *testing.T) {
	t.Parallel()

	svc, repo, blobs := newTestService(t)

	id, err := storage.NewItemID()
	require.NoError(t, err)

	ref, err := blobs.WriteBlob(id, "bin", []byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, repo.Insert(t.Context(), model.StoredItem{
		ID:          id,
		Type:        model.TypeFile,
		ContentHash: "hash-file",
		CreatedAt:   float64(time.Now().Unix()),
		LastUsedAt:  float64(time.Now().Unix()),
		UseCount:    1,
		SizeBytes:   999, // deliberately wrong
		StorageRef:  &ref,
	}))

	corrected, err := svc.CompensateDerivedSizes(t.Context())
	require.NoError(t, err)
	require.Equal(t, 1, corrected)

	item, err := repo.Get(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, int64(10), item.SizeBytes)
}
