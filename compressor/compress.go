// Package compressor gzips rotated log files.
// The source file is removed only after the archive is completely written,
// so there is never a moment where neither copy exists, and a failed
// compression leaves the source untouched.
package compressor

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golift.io/gzlogr/filer"
)

// SuffixGZ is appended to a fileName to make the new compressed file name.
const SuffixGZ = ".gz"

// ErrExists is returned when the destination archive already exists. Archives are never overwritten.
var ErrExists = errors.New("archive already exists")

// Report contains a report of the compression operation.
// Always check for Error to make sure the New* data is valid.
type Report struct {
	OldFile string
	NewFile string
	OldSize int64
	NewSize int64
	Elapsed time.Duration
	Error   error
}

// Gzip compresses files with a compression level and an overridable Filer.
type Gzip struct {
	Level int // gzip level. Invalid values use gzip.DefaultCompression.
	filer.Filer
}

// Default is the Gzip used by the package-level functions.
var Default = &Gzip{Level: gzip.DefaultCompression, Filer: filer.Default()} //nolint:gochecknoglobals

// Compress gzips a file to fileName.gz and returns a report. Blocks until finished.
func Compress(fileName string) (*Report, error) {
	return Default.Compress(fileName, fileName+SuffixGZ)
}

// CompressTo gzips oldFile into newFile and removes oldFile. Blocks until finished.
func CompressTo(oldFile, newFile string) (*Report, error) {
	return Default.Compress(oldFile, newFile)
}

// LogError sends a failed compression to printf. A nil report, from a custom
// compressor, is replaced with one carrying only err.
func LogError(report *Report, err error, printf func(msg string, fmt ...any)) {
	failed := Report{Error: err}
	if report != nil {
		failed = *report
		failed.Error = err
	}

	Log(&failed, printf)
}

// Compress gzips oldFile into newFile, then deletes oldFile.
func (g *Gzip) Compress(oldFile, newFile string) (*Report, error) {
	report := &Report{OldFile: oldFile, NewFile: newFile}

	if g.Filer == nil {
		g.Filer = filer.Default()
	}

	level := g.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	oldInfo, err := g.Stat(report.OldFile)
	if report.Error = err; report.Error != nil {
		return report, fmt.Errorf("stating old file: %w", report.Error)
	}

	report.OldSize = oldInfo.Size()
	start := time.Now()
	report.NewSize, report.Error = g.compress(report.OldFile, report.NewFile, oldInfo.Mode(), level)
	report.Elapsed = time.Since(start)

	if report.Error != nil {
		return report, fmt.Errorf("compressor error: %w", report.Error)
	}

	return report, nil
}

// Log sends a report to a custom procedure.
func Log(report *Report, printf func(msg string, fmt ...any)) {
	if printf == nil {
		printf = log.Printf
	}

	const kilobyte = 1024

	if report.Error != nil {
		printf("Compression Error after %v: %v", report.Elapsed.Round(time.Millisecond), report.Error)
	} else {
		printf("Compression Finished in %v: %s/%dkB -> %s/%dkB", report.Elapsed.Round(time.Millisecond),
			report.OldFile, report.OldSize/kilobyte, report.NewFile, report.NewSize/kilobyte)
	}
}

// compress does the "hard" work: Open the old file, create the new file, copy the old
// file through a gzip writer, close all open file handles, and lastly delete the old file.
// A partially written new file is removed on failure.
func (g *Gzip) compress(oldFile, newFile string, mode os.FileMode, level int) (int64, error) {
	src, err := g.OpenFile(oldFile, os.O_RDONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("opening source file: %w", err)
	}
	defer src.Close()

	dst, err := g.OpenFile(newFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if errors.Is(err, os.ErrExist) {
		return 0, fmt.Errorf("%w: %s", ErrExists, newFile)
	} else if err != nil {
		return 0, fmt.Errorf("opening gz file: %w", err)
	}

	if err = g.write(src, dst, level); err != nil {
		_ = g.Remove(newFile)
		return 0, fmt.Errorf("%s -> %s: %w", oldFile, newFile, err)
	}

	src.Close()

	if err = g.Remove(oldFile); err != nil && !filer.IsGone(err) {
		return 0, fmt.Errorf("removing source file: %w", err)
	}

	info, err := g.Stat(newFile)
	if err != nil {
		return 0, fmt.Errorf("stating gz file: %w", err)
	}

	return info.Size(), nil
}

// write copies src through a gzip writer into dst and closes dst.
func (g *Gzip) write(src io.Reader, dst *os.File, level int) error {
	defer dst.Close()

	gzw, _ := gzip.NewWriterLevel(dst, level)
	gzw.Name = strings.TrimSuffix(filepath.Base(dst.Name()), SuffixGZ)

	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		return err //nolint:wrapcheck
	}

	if err := gzw.Close(); err != nil {
		return err //nolint:wrapcheck
	}

	return dst.Close() //nolint:wrapcheck
}
