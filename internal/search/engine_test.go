package search_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/search"
	"github.com/scopyapp/scopy/internal/storage"
)

// openTestDB creates a fresh migrated database and returns both a writable
// Repository and a read-only SearchEngine pointed at the same file, mirroring
// spec §4.5's two-connection architecture.
func openTestDB(t *testing.T) (*storage.Repository, *search.SearchEngine) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scopy.sqlite3")

	repo, err := storage.Open(t.Context(), path, nil)
	require.NoError(t, err, "Repository.Open should succeed against a fresh path")

	t.Cleanup(func() { _ = repo.Close() })

	engine, err := search.Open(t.Context(), path)
	require.NoError(t, err, "search.Open should succeed once the schema exists")

	t.Cleanup(func() { _ = engine.Close() })

	return repo, engine
}

func insertItem(t *testing.T, repo *storage.Repository, hash, text string, now time.Time) model.StoredItem {
	t.Helper()

	id, err := storage.NewItemID()
	require.NoError(t, err)

	item := model.StoredItem{
		ID:          id,
		Type:        model.TypeText,
		ContentHash: hash,
		PlainText:   text,
		CreatedAt:   float64(now.Unix()),
		LastUsedAt:  float64(now.Unix()),
		UseCount:    1,
		SizeBytes:   int64(len(text)),
	}

	require.NoError(t, repo.Insert(t.Context(), item))

	return item
}

func Test_SearchEngine_Open_Fails_When_Path_Has_No_Schema(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := search.Open(t.Context(), filepath.Join(dir, "missing.sqlite3"))
	require.Error(t, err, "opening a read-only connection against a nonexistent database should fail")
}

func Test_SearchEngine_Search_Empty_Query_Returns_Filtered_Page(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "hello world", now)
	insertItem(t, repo, "hash-2", "goodbye world", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, 2, page.Total)
	require.False(t, page.HasMore)
}

func Test_SearchEngine_Search_Exact_Short_Query_Finds_Substring(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "ab cd", now)
	insertItem(t, repo, "hash-2", "xy zz", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{
		Query: "ab",
		Mode:  model.ModeExact,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "ab cd", page.Items[0].PlainText)
}

func Test_SearchEngine_Search_Fuzzy_Matches_Subsequence(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "the quick brown fox", now)
	insertItem(t, repo, "hash-2", "a totally unrelated entry", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{
		Query:          "qkbrn",
		Mode:           model.ModeFuzzy,
		ForceFullFuzzy: true,
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "the quick brown fox", page.Items[0].PlainText)
}

func Test_SearchEngine_Search_FuzzyPlus_Vetoes_When_Long_Token_Missing(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "release notes for version four", now)
	insertItem(t, repo, "hash-2", "release version without the other word", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{
		Query:          "release notes",
		Mode:           model.ModeFuzzyPlus,
		ForceFullFuzzy: true,
		Limit:          10,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "release notes for version four", page.Items[0].PlainText)
}

func Test_SearchEngine_Search_Pinned_Items_Sort_First(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	older := insertItem(t, repo, "hash-1", "older entry", now)
	insertItem(t, repo, "hash-2", "newer entry", now.Add(time.Second))

	require.NoError(t, repo.SetPinned(t.Context(), older.ID, true))
	engine.HandlePinnedChange(older.ID, true)

	page, err := engine.Search(t.Context(), model.SearchRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, older.ID, page.Items[0].ID, "pinned item should sort first regardless of recency")
}

func Test_SearchEngine_Search_Regex_Matches_Pattern(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "error code 42", now)
	insertItem(t, repo, "hash-2", "all good here", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{
		Query: `error code \d+`,
		Mode:  model.ModeRegex,
		Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "error code 42", page.Items[0].PlainText)
}

func Test_SearchEngine_Search_Regex_Invalid_Pattern_Returns_Error(t *testing.T) {
	t.Parallel()

	_, engine := openTestDB(t)

	_, err := engine.Search(t.Context(), model.SearchRequest{
		Query: `[unterminated`,
		Mode:  model.ModeRegex,
		Limit: 10,
	})
	require.ErrorIs(t, err, search.ErrInvalidRegex)
}

func Test_SearchEngine_HandleDeletion_Removes_Item_From_Results(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	item := insertItem(t, repo, "hash-1", "to be deleted", now)

	_, err := repo.Delete(t.Context(), item.ID)
	require.NoError(t, err)
	engine.HandleDeletion(item.ID)

	page, err := engine.Search(t.Context(), model.SearchRequest{
		Query:          "deleted",
		Mode:           model.ModeFuzzy,
		ForceFullFuzzy: true,
		Limit:          10,
	})
	require.NoError(t, err)
	require.Empty(t, page.Items)
}

func Test_SearchEngine_External_Mutation_Invalidates_Cache(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	insertItem(t, repo, "hash-1", "first entry", now)

	// A 2-character exact query is answered from the recent-items cache, so
	// the second search sees the new row only if that cache was dropped.
	_, err := engine.Search(t.Context(), model.SearchRequest{Query: "en", Mode: model.ModeExact, Limit: 10})
	require.NoError(t, err)

	// Insert through Repository directly, without calling engine.HandleUpserted,
	// to simulate a mutation SearchEngine only learns about via data_version.
	insertItem(t, repo, "hash-2", "second entry added externally", now.Add(time.Second))

	page, err := engine.Search(t.Context(), model.SearchRequest{Query: "en", Mode: model.ModeExact, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2, "external mutation detection should pick up the new row via PRAGMA data_version")
}

func Test_SearchEngine_Search_Paginates_With_Offset(t *testing.T) {
	t.Parallel()

	repo, engine := openTestDB(t)

	now := time.Now()
	for i := range 5 {
		insertItem(t, repo, string(rune('a'+i)), "shared prefix text", now.Add(time.Duration(i)*time.Second))
	}

	first, err := engine.Search(t.Context(), model.SearchRequest{Limit: 2, Offset: 0})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore)

	second, err := engine.Search(t.Context(), model.SearchRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)

	require.NotEqual(t, first.Items[0].ID, second.Items[0].ID)
}
