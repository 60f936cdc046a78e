package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/storage"
)

func openTestRepo(t *testing.T) *storage.Repository {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scopy.sqlite3")

	repo, err := storage.Open(t.Context(), path, nil)
	require.NoError(t, err, "Open should succeed against a fresh path")

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func newTestItem(t *testing.T, hash, text string, now time.Time) model.StoredItem {
	t.Helper()

	id, err := storage.NewItemID()
	require.NoError(t, err, "NewItemID should not fail")

	return model.StoredItem{
		ID:          id,
		Type:        model.TypeText,
		ContentHash: hash,
		PlainText:   text,
		CreatedAt:   float64(now.Unix()),
		LastUsedAt:  float64(now.Unix()),
		UseCount:    1,
		SizeBytes:   int64(len(text)),
	}
}

func Test_Repository_Open_Creates_Schema_When_Path_Is_Fresh(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	itemCount, unpinnedCount, totalSize, err := repo.Stats(t.Context())
	require.NoError(t, err, "Stats should succeed on a freshly migrated database")
	require.Zero(t, itemCount)
	require.Zero(t, unpinnedCount)
	require.Zero(t, totalSize)
}

func Test_Repository_Insert_Then_Get_Returns_Same_Row(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	now := time.Now()
	item := newTestItem(t, "hash-alpha", "alpha", now)

	require.NoError(t, repo.Insert(t.Context(), item), "insert should succeed")

	got, err := repo.Get(t.Context(), item.ID)
	require.NoError(t, err, "get should find the inserted row")
	require.Equal(t, item.ContentHash, got.ContentHash)
	require.Equal(t, item.PlainText, got.PlainText)

	itemCount, unpinnedCount, totalSize, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.EqualValues(t, 1, itemCount, "counters should track the insert")
	require.EqualValues(t, 1, unpinnedCount)
	require.EqualValues(t, len("alpha"), totalSize)
}

func Test_Repository_Insert_Then_Get_Round_Trips_Every_Field(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	now := time.Now()
	item := newTestItem(t, "hash-roundtrip", "round trip me", now)

	note := "a note"
	item.Note = &note
	bundleID := "com.example.app"
	item.AppBundleID = &bundleID

	require.NoError(t, repo.Insert(t.Context(), item), "insert should succeed")

	got, err := repo.Get(t.Context(), item.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(item, *got); diff != "" {
		t.Fatalf("round-tripped item differs (-want +got):\n%s", diff)
	}
}

func Test_Repository_Get_Returns_NotFound_When_Id_Is_Unknown(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	_, err := repo.Get(t.Context(), "does-not-exist")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func Test_Repository_FindByHash_Returns_Nil_When_No_Match(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	got, err := repo.FindByHash(t.Context(), "missing-hash")
	require.NoError(t, err)
	require.Nil(t, got)
}

func Test_Repository_Delete_Removes_Row_And_Returns_StorageRef(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	now := time.Now()
	item := newTestItem(t, "hash-beta", "beta", now)
	ref := "/blobs/ab/cdef.bin"
	item.StorageRef = &ref
	item.RawData = nil

	require.NoError(t, repo.Insert(t.Context(), item))

	gotRef, err := repo.Delete(t.Context(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, gotRef)
	require.Equal(t, ref, *gotRef)

	_, err = repo.Get(t.Context(), item.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	itemCount, _, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Zero(t, itemCount)
}

func Test_Repository_SetPinned_Updates_Unpinned_Counter(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	item := newTestItem(t, "hash-gamma", "gamma", time.Now())

	require.NoError(t, repo.Insert(t.Context(), item))
	require.NoError(t, repo.SetPinned(t.Context(), item.ID, true))

	_, unpinnedCount, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Zero(t, unpinnedCount, "pinning should remove the row from the unpinned counter")
}

func Test_Repository_ClearAllExceptPinned_Keeps_Pinned_Rows(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	now := time.Now()

	pinned := newTestItem(t, "hash-pinned", "keepme", now)
	require.NoError(t, repo.Insert(t.Context(), pinned))
	require.NoError(t, repo.SetPinned(t.Context(), pinned.ID, true))

	unpinned := newTestItem(t, "hash-unpinned", "dropme", now)
	require.NoError(t, repo.Insert(t.Context(), unpinned))

	refs, err := repo.ClearAllExceptPinned(t.Context())
	require.NoError(t, err)
	require.Empty(t, refs, "neither row used an external blob")

	_, err = repo.Get(t.Context(), pinned.ID)
	require.NoError(t, err, "pinned row should survive clear-all")

	_, err = repo.Get(t.Context(), unpinned.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func Test_Repository_PlanByCount_Selects_Oldest_Unpinned_Rows(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	base := time.Now().Add(-1 * time.Hour)

	var ids []string

	for i := range 5 {
		item := newTestItem(t, "hash-"+string(rune('a'+i)), "text", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Insert(t.Context(), item))
		ids = append(ids, item.ID)
	}

	plan, err := repo.PlanByCount(t.Context(), 2, false)
	require.NoError(t, err)
	require.Len(t, plan.IDs, 3, "excess of 5-2=3 oldest rows should be planned")
	require.ElementsMatch(t, ids[:3], plan.IDs, "the three oldest rows should be selected")
}

func Test_Repository_PlanByCount_Is_Empty_When_Under_Budget(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	item := newTestItem(t, "hash-solo", "solo", time.Now())
	require.NoError(t, repo.Insert(t.Context(), item))

	plan, err := repo.PlanByCount(t.Context(), 10, false)
	require.NoError(t, err)
	require.True(t, plan.Empty())
}

func Test_Repository_PlanByAge_Selects_Rows_Older_Than_Cutoff(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	oldTime := time.Now().Add(-2 * time.Hour)
	newTime := time.Now()

	oldItem := newTestItem(t, "hash-old", "old", oldTime)
	newItem := newTestItem(t, "hash-new", "new", newTime)

	require.NoError(t, repo.Insert(t.Context(), oldItem))
	require.NoError(t, repo.Insert(t.Context(), newItem))

	cutoff := float64(time.Now().Add(-1 * time.Hour).Unix())

	plan, err := repo.PlanByAge(t.Context(), cutoff, false)
	require.NoError(t, err)
	require.Equal(t, []string{oldItem.ID}, plan.IDs)
}

func Test_Repository_DeleteBatch_Removes_All_Given_Ids(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	var ids []string

	for i := range 3 {
		item := newTestItem(t, "hash-batch-"+string(rune('a'+i)), "text", time.Now())
		require.NoError(t, repo.Insert(t.Context(), item))
		ids = append(ids, item.ID)
	}

	_, err := repo.DeleteBatch(t.Context(), ids)
	require.NoError(t, err)

	itemCount, _, _, err := repo.Stats(t.Context())
	require.NoError(t, err)
	require.Zero(t, itemCount)
}

func Test_Repository_ExternalBasenames_Returns_Basename_Set(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	item := newTestItem(t, "hash-ext", "ext", time.Now())
	ref := "/var/blobs/aa/bbcc.bin"
	item.StorageRef = &ref

	require.NoError(t, repo.Insert(t.Context(), item))

	basenames, err := repo.ExternalBasenames(t.Context())
	require.NoError(t, err)
	require.Contains(t, basenames, "bbcc.bin")
}

func Test_Repository_TouchUse_Bumps_LastUsedAt_And_UseCount(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)
	item := newTestItem(t, "hash-touch", "touch", time.Now().Add(-1*time.Hour))
	require.NoError(t, repo.Insert(t.Context(), item))

	now := float64(time.Now().Unix())
	require.NoError(t, repo.TouchUse(t.Context(), item.ID, now))

	got, err := repo.Get(t.Context(), item.ID)
	require.NoError(t, err)
	require.Equal(t, now, got.LastUsedAt)
	require.EqualValues(t, 2, got.UseCount)
}

func Test_Repository_HasTrigramFTS_Does_Not_Error_When_Tokenizer_Unavailable(t *testing.T) {
	t.Parallel()

	repo := openTestRepo(t)

	_, err := repo.HasTrigramFTS(t.Context())
	require.NoError(t, err, "probing for the optional tokenizer must never itself fail")
}
