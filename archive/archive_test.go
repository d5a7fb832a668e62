package archive_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/gzlogr/archive"
	"golift.io/gzlogr/filer"
	"golift.io/gzlogr/mocks"
)

var errTest = errors.New("this is a test error")

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
}

func TestNames(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	assert.Equal("app", archive.Base("/var/log/app.log"))
	assert.Equal("app", archive.Base("app"))
	assert.Equal("app_1.log.gz", archive.Numbered("app", 1))
	assert.Equal("app_12.log.gz", archive.Numbered("app", 12))
	assert.Equal("app_20201010.log.gz", archive.Dated("app", "20201010"))
}

func TestNextNumberEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	n, err := archive.NextNumber(filer.Default(), dir, "app")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = archive.NextNumber(filer.Default(), filepath.Join(dir, "missing"), "app")
	require.NoError(t, err, "a missing directory has no archives")
	assert.Equal(t, 1, n)
}

func TestNextNumberMax(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Gaps are fine, the highest number wins. Other bases and plain files are ignored.
	touch(t, dir, "app_1.log.gz", "app_7.log.gz", "app_3.log.gz", "app.log", "app.log.gz",
		"other_99.log.gz", "app_100.log")

	n, err := archive.NextNumber(filer.Default(), dir, "app")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	n, err = archive.NextNumber(filer.Default(), dir, "other")
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}

func TestNextNumberUnderscoreBase(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "my_app.log.gz", "my_app_2.log.gz")

	n, err := archive.NextNumber(filer.Default(), dir, "my_app")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNextNumberParseError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "app_1.log.gz", "app_oops.log.gz")

	n, err := archive.NextNumber(filer.Default(), dir, "app")
	require.ErrorIs(t, err, archive.ErrDiscriminator)
	assert.Zero(t, n)

	var parseErr *archive.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "oops", parseErr.Discriminator)
	assert.Equal(t, filepath.Join(dir, "app_oops.log.gz"), parseErr.File)
}

func TestList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	touch(t, dir, "app_2.log.gz", "app_20201010.log.gz", "app.log")

	list, err := archive.List(filer.Default(), dir, "app")
	require.NoError(t, err)
	assert.Equal(t, []archive.Archive{
		{Path: filepath.Join(dir, "app_2.log.gz"), Discriminator: "2"},
		{Path: filepath.Join(dir, "app_20201010.log.gz"), Discriminator: "20201010"},
	}, list)
}

func TestListReadDirError(t *testing.T) {
	t.Parallel()

	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	mockFiler := mocks.NewMockFiler(mockCtrl)
	mockFiler.EXPECT().ReadDir("/var/log").Return(nil, errTest)

	_, err := archive.NextNumber(mockFiler, "/var/log", "app")
	assert.ErrorIs(t, err, errTest)
}

func TestUnique(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	name, err := archive.Unique(filer.Default(), dir, "app_20201010.log.gz")
	require.NoError(t, err)
	assert.Equal(t, "app_20201010.log.gz", name)

	touch(t, dir, "app_20201010.log.gz", "app_20201010-1.log.gz")

	name, err = archive.Unique(filer.Default(), dir, "app_20201010.log.gz")
	require.NoError(t, err)
	assert.Equal(t, "app_20201010-2.log.gz", name)
}
