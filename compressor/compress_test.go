package compressor_test

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golift.io/gzlogr/compressor"
)

func TestCompress(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	r, err := compressor.Compress("/does/not/exist/file")
	require.Error(t, err)
	assert.Contains(err.Error(), "stating old file:")
	assert.ErrorIs(err, r.Error)

	name := filepath.Join(t.TempDir(), "testfile.log")
	require.NoError(t, os.WriteFile(name, make([]byte, 300000), 0o600))

	r, err = compressor.Compress(name)
	require.NoError(t, err)
	assert.Nil(r.Error)
	assert.Equal(int64(300000), r.OldSize)
	assert.Equal(name+compressor.SuffixGZ, r.NewFile)
	assert.Positive(r.NewSize)
	assert.Less(r.NewSize, r.OldSize)

	_, err = os.Stat(name)
	assert.ErrorIs(err, os.ErrNotExist, "the source file must be removed")
}

func TestCompressToRoundTrip(t *testing.T) {
	t.Parallel()

	var (
		dir  = t.TempDir()
		src  = filepath.Join(dir, "app.log")
		dst  = filepath.Join(dir, "app_1.log.gz")
		data = []byte("line one\nline two\n")
		gz   = &compressor.Gzip{Level: 77} // invalid level, uses the default.
	)

	require.NoError(t, os.WriteFile(src, data, 0o640))

	_, err := gz.Compress(src, dst)
	require.NoError(t, err)

	file, err := os.Open(dst)
	require.NoError(t, err)
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	require.NoError(t, err)
	assert.Equal(t, "app_1.log", gzr.Name)

	got, err := io.ReadAll(gzr)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCompressNeverOverwrites(t *testing.T) {
	t.Parallel()

	var (
		dir = t.TempDir()
		src = filepath.Join(dir, "app.log")
		dst = filepath.Join(dir, "app_1.log.gz")
	)

	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	r, err := compressor.CompressTo(src, dst)
	require.ErrorIs(t, err, compressor.ErrExists)
	require.ErrorIs(t, r.Error, compressor.ErrExists)

	old, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), old, "the existing archive must be untouched")

	_, err = os.Stat(src)
	assert.NoError(t, err, "the source must survive a failed compression")
}

func TestLog(t *testing.T) {
	t.Parallel()

	var lines []string

	printf := func(msg string, v ...any) { lines = append(lines, msg) }
	compressor.Log(&compressor.Report{OldFile: "a", NewFile: "a.gz"}, printf)
	compressor.Log(&compressor.Report{Error: os.ErrClosed}, printf)

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Compression Finished")
	assert.Contains(t, lines[1], "Compression Error")
}

func TestLogError(t *testing.T) {
	t.Parallel()

	var lines []string

	printf := func(msg string, v ...any) { lines = append(lines, fmt.Sprintf(msg, v...)) }
	compressor.LogError(nil, os.ErrPermission, printf)
	compressor.LogError(&compressor.Report{OldFile: "a", Elapsed: time.Second}, os.ErrClosed, printf)

	require.Len(t, lines, 2)
	assert.Equal(t, "Compression Error after 0s: "+os.ErrPermission.Error(), lines[0])
	assert.Equal(t, "Compression Error after 1s: "+os.ErrClosed.Error(), lines[1])
}
