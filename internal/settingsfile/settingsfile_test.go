package settingsfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/model"
	"github.com/scopyapp/scopy/internal/settingsfile"
)

func Test_Store_Load_Returns_Default_When_File_Missing(t *testing.T) {
	t.Parallel()

	store := settingsfile.New(filepath.Join(t.TempDir(), "missing.jsonc"))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, settingsfile.Default(), got)
}

func Test_Store_Save_Then_Load_Round_Trips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.jsonc")
	store := settingsfile.New(path)

	want := settingsfile.Default()
	want.MaxItems = 500
	want.DefaultSearchMode = model.ModeFuzzyPlus

	require.NoError(t, store.Save(t.Context(), want))

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func Test_Store_Load_Tolerates_JSONC_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.jsonc")

	content := `{
		// polling interval
		"max_items": 42,
		"save_images": true,
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := settingsfile.New(path)

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, 42, got.MaxItems)
	require.True(t, got.SaveImages)
}
