package blobstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scopyapp/scopy/internal/blobstore"
	"github.com/scopyapp/scopy/internal/fs"
)

func newTestStore(t *testing.T) (*blobstore.Store, string) {
	t.Helper()

	dir := t.TempDir()
	store := blobstore.New(fs.NewReal(), filepath.Join(dir, "blobs"), filepath.Join(dir, "thumbs"))

	return store, dir
}

func Test_Store_WriteBlob_Then_ReadBlob_Round_Trips(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	ref, err := store.WriteBlob("item-1", "png", []byte("hello"))
	require.NoError(t, err)

	data, err := store.ReadBlob(ref)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func Test_Store_ValidateStorageRef_Rejects_Traversal(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	_, err := store.WriteBlob("item-1", "png", []byte("x"))
	require.NoError(t, err)

	err = store.ValidateStorageRef(filepath.Join(dir, "blobs") + "/../blobs/escape.png")
	require.ErrorIs(t, err, blobstore.ErrInvalidRef)
}

func Test_Store_ValidateStorageRef_Rejects_Outside_Root(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	err := store.ValidateStorageRef(filepath.Join(dir, "elsewhere", "file.png"))
	require.ErrorIs(t, err, blobstore.ErrInvalidRef)
}

func Test_Store_ValidateStorageRef_Rejects_Non_Identifier_Basename(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	err := store.ValidateStorageRef(filepath.Join(dir, "blobs", "not a valid id!.png"))
	require.ErrorIs(t, err, blobstore.ErrInvalidRef)
}

func Test_Store_RemoveBlob_Is_Silent_NoOp_When_Ref_Invalid(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	store.RemoveBlob("../escape")
}

func Test_Store_ThumbnailPath_Uses_File_Prefix_For_File_Items(t *testing.T) {
	t.Parallel()

	store, dir := newTestStore(t)

	imgPath := store.ThumbnailPath("abc123", false)
	filePath := store.ThumbnailPath("abc123", true)

	require.Equal(t, filepath.Join(dir, "thumbs", "abc123.png"), imgPath)
	require.Equal(t, filepath.Join(dir, "thumbs", "file_abc123.png"), filePath)
}

func Test_Store_WriteThumbnail_Then_HasThumbnail_Reports_True(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	require.NoError(t, store.WriteThumbnail("deadbeef", false, []byte("png-bytes")))

	ok, err := store.HasThumbnail("deadbeef", false)
	require.NoError(t, err)
	require.True(t, ok)
}

func Test_Store_ListBlobBasenames_Returns_Written_Files(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.WriteBlob("item-a", "bin", []byte("a"))
	require.NoError(t, err)
	_, err = store.WriteBlob("item-b", "bin", []byte("b"))
	require.NoError(t, err)

	names, err := store.ListBlobBasenames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"item-a.bin", "item-b.bin"}, names)
}
