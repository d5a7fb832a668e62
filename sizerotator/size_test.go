package sizerotator_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/gzlogr"
	"golift.io/gzlogr/compressor"
	"golift.io/gzlogr/filer"
	"golift.io/gzlogr/mocks"
	"golift.io/gzlogr/sizerotator"
)

var errTest = errors.New("this is a test error")

func TestPost(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	layout := &sizerotator.Layout{PostRotate: func(s1, s2 string) {
		assert.Equal("string1", s1)
		assert.Equal("string2", s2)
	}}
	layout.Post("string1", "string2")

	layout.PostRotate = nil
	layout.Post("string1", "string2")
}

func TestDirs(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	layout := &sizerotator.Layout{ArchiveDir: filepath.Join("/", "var", "log", "archives")}
	dirs, err := layout.Dirs(filepath.Join("/", "var", "log", "service.log"))
	assert.Equal([]string{filepath.Join("/", "var", "log"), filepath.Join("/", "var", "log", "archives")},
		dirs, "the wrong directories were returned")
	assert.NoError(err, "this should not producce an error")
	assert.Equal(filer.Default(), layout.Filer)
	assert.NotNil(layout.Clock)
	assert.NotNil(layout.Printf)
	assert.NotNil(layout.Compress)

	layout = &sizerotator.Layout{}
	dirs, err = layout.Dirs(filepath.Join("/", "var", "log", "service.log"))
	assert.Equal([]string{filepath.Join("/", "var", "log")}, dirs, "the wrong directory was returned")
	assert.NoError(err)
}

func TestShouldRotate(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	layout := &sizerotator.Layout{MaxBytes: 50}
	assert.False(layout.ShouldRotate(gzlogr.Active{Size: 40, Pending: 10}), "exactly full is not over")
	assert.True(layout.ShouldRotate(gzlogr.Active{Size: 40, Pending: 11}))
	assert.True(layout.ShouldRotate(gzlogr.Active{Size: 51}), "a file already over must rotate on startup")
	assert.False(layout.ShouldRotate(gzlogr.Active{Size: 0, Pending: 500}), "an empty file never rotates")

	layout.MaxBytes = 0
	assert.False(layout.ShouldRotate(gzlogr.Active{Size: 1 << 40}), "0 disables size rotation")
}

func TestRotateMock(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	var (
		mockFiler = mocks.NewMockFiler(mockCtrl)
		info      = mocks.NewMockFileInfo(mockCtrl)
		existing  = mocks.NewMockFileInfo(mockCtrl)
		logFile   = filepath.Join("/", "var", "log", "service.log")
		newFile   = filepath.Join("/", "var", "log", "service_4.log.gz")
		layout    = &sizerotator.Layout{
			Days:  -1,
			Filer: mockFiler,
			Compress: func(oldFile, gzFile string) (*compressor.Report, error) {
				assert.Equal(logFile, oldFile)
				assert.Equal(newFile, gzFile)

				return &compressor.Report{}, nil
			},
		}
	)

	info.EXPECT().Size().Return(int64(100))
	existing.EXPECT().Name().Return("service_3.log.gz").AnyTimes()
	mockFiler.EXPECT().Stat(logFile).Return(info, nil)
	mockFiler.EXPECT().ReadDir(filepath.Join("/", "var", "log")).Return([]os.FileInfo{existing}, nil)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 100})
	assert.Equal(newFile, file)
	assert.NoError(err)

	// A missing log file has nothing to archive.
	mockFiler.EXPECT().Stat(logFile).Return(nil, os.ErrNotExist)

	file, err = layout.Rotate(gzlogr.Active{Path: logFile})
	assert.Empty(file)
	assert.NoError(err)

	// Stat errors are returned.
	mockFiler.EXPECT().Stat(logFile).Return(nil, errTest)

	file, err = layout.Rotate(gzlogr.Active{Path: logFile})
	assert.Empty(file)
	assert.ErrorIs(err, errTest)
}

func fill(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
}

func TestRotateNumbering(t *testing.T) {
	t.Parallel()

	var (
		dir     = t.TempDir()
		logFile = filepath.Join(dir, "app.log")
		layout  = &sizerotator.Layout{MaxBytes: 10, Days: 7}
	)

	for i := 1; i <= 3; i++ {
		fill(t, logFile, 20)

		file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 20})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "app_"+string(rune('0'+i))+".log.gz"), file)

		_, err = os.Stat(logFile)
		require.ErrorIs(t, err, os.ErrNotExist, "the plain file must be gone after compression")
	}

	// Remove the middle archive; numbers are never reused, the next one is 4.
	require.NoError(t, os.Remove(filepath.Join(dir, "app_2.log.gz")))
	fill(t, logFile, 20)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 20})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app_4.log.gz"), file)
}

func TestRotateEmptyFile(t *testing.T) {
	t.Parallel()

	var (
		dir     = t.TempDir()
		logFile = filepath.Join(dir, "app.log")
		layout  = &sizerotator.Layout{MaxBytes: 10, Days: 7}
	)

	fill(t, logFile, 0)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile})
	require.NoError(t, err)
	assert.Empty(t, file)

	_, err = os.Stat(filepath.Join(dir, "app_1.log.gz"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRotateParseError(t *testing.T) {
	t.Parallel()

	var (
		dir     = t.TempDir()
		logFile = filepath.Join(dir, "app.log")
		printed []string
		layout  = &sizerotator.Layout{
			MaxBytes: 10,
			Days:     7,
			Printf:   func(msg string, v ...any) { printed = append(printed, msg) },
		}
	)

	fill(t, logFile, 20)
	fill(t, filepath.Join(dir, "app_bogus.log.gz"), 1)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 20})
	require.Error(t, err)
	assert.Empty(t, file)
	assert.Len(t, printed, 1, "the error must be printed before it is returned")

	info, err := os.Stat(logFile)
	require.NoError(t, err, "the active file must be left alone")
	assert.Equal(t, int64(20), info.Size())
}

func TestRotatePrunes(t *testing.T) {
	t.Parallel()

	var (
		dir     = t.TempDir()
		logFile = filepath.Join(dir, "app.log")
		old     = filepath.Join(dir, "app_1.log.gz")
		recent  = filepath.Join(dir, "app_2.log.gz")
		layout  = &sizerotator.Layout{MaxBytes: 10, Days: 3}
	)

	fill(t, old, 1)
	fill(t, recent, 1)
	require.NoError(t, os.Chtimes(old, time.Now().AddDate(0, 0, -4), time.Now().AddDate(0, 0, -4)))
	require.NoError(t, os.Chtimes(recent, time.Now().AddDate(0, 0, -2), time.Now().AddDate(0, 0, -2)))
	fill(t, logFile, 20)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 20})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app_3.log.gz"), file)

	_, err = os.Stat(old)
	require.ErrorIs(t, err, os.ErrNotExist, "the old archive must be pruned")
	_, err = os.Stat(recent)
	require.NoError(t, err, "the recent archive must be kept")
}

// A failed compression is reported and returned, the log file stays put.
func TestRotateCompressError(t *testing.T) {
	t.Parallel()

	var (
		dir     = t.TempDir()
		logFile = filepath.Join(dir, "app.log")
		printed []string
		layout  = &sizerotator.Layout{
			MaxBytes: 10,
			Days:     -1,
			Printf:   func(msg string, _ ...any) { printed = append(printed, msg) },
			Compress: func(string, string) (*compressor.Report, error) { return nil, errTest },
		}
	)

	fill(t, logFile, 20)

	file, err := layout.Rotate(gzlogr.Active{Path: logFile, Size: 20})
	require.ErrorIs(t, err, errTest)
	assert.Empty(t, file)
	assert.Equal(t, []string{"Compression Error after %v: %v"}, printed)
	assert.FileExists(t, logFile)
}
