// Package sizerotator provides a Rotator for gzlogr that archives a log file
// once it grows past a size threshold. Archives are gzip compressed and named
// with an increasing integer: service.log rotates to service_1.log.gz, then
// service_2.log.gz, and so on. The next integer is always one more than the
// highest integer found in the archive directory, so numbers are never reused.
//
// Old archives are deleted by age, not by count. Every rotation first prunes
// archives older than Layout.Days from the archive directory.
package sizerotator

import (
	"compress/gzip"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"golift.io/gzlogr"
	"golift.io/gzlogr/archive"
	"golift.io/gzlogr/compressor"
	"golift.io/gzlogr/filer"
	"golift.io/gzlogr/pruner"
)

// MegaByte is a handy multiplier for MaxBytes.
const MegaByte = 1024 * 1024

// Layout defines when a log file is rotated by size, and how the archives are named and pruned.
type Layout struct {
	ArchiveDir string // Location where archives are written. Default: the log file's directory.
	MaxBytes   int64  // Rotate when the file would grow past this many bytes. 0 disables rotation.
	Days       int    // Delete archives older than this many days. 0 deletes all older archives, -1 keeps all.
	// Printf receives rotation errors. Default writes to stderr.
	Printf func(msg string, v ...any)
	// Compress writes the archive and removes the source. Default: a compressor.Gzip using Filer.
	Compress func(oldFile, newFile string) (*compressor.Report, error)
	// Mockable interfaces. Can be used for custom processing. Setting these is very optional.
	PostRotate func(fileName, newFile string)
	Clock      clockwork.Clock
	filer.Filer
}

// Dirs validates input data and returns the list of directories being used.
func (l *Layout) Dirs(fileName string) ([]string, error) {
	l.setDefaults()

	switch fpath := filepath.Dir(fileName); {
	case l.ArchiveDir == "" || fpath == l.ArchiveDir:
		return []string{fpath}, nil
	default:
		return []string{fpath, l.ArchiveDir}, nil
	}
}

// ShouldRotate returns true when the pending write pushes a non-empty file past MaxBytes.
func (l *Layout) ShouldRotate(active gzlogr.Active) bool {
	return l.MaxBytes > 0 && active.Size > 0 && active.Size+active.Pending > l.MaxBytes
}

// Rotate prunes old archives, then compresses the log file into the next numbered archive.
// Returns the new archive's path, or an empty string if the file was empty or missing.
func (l *Layout) Rotate(active gzlogr.Active) (string, error) {
	l.setDefaults()

	dir := l.getArchiveDir(active.Path)

	if _, err := l.pruner().Prune(dir); err != nil {
		return "", fmt.Errorf("pruning archives: %w", err)
	}

	info, err := l.Stat(active.Path)
	if filer.IsGone(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("stating log file: %w", err)
	} else if info.Size() == 0 {
		return "", nil
	}

	base := archive.Base(active.Path)

	next, err := archive.NextNumber(l.Filer, dir, base)
	if err != nil {
		l.Printf("Unable to get previous gz log file number | %v", err)
		return "", fmt.Errorf("numbering archive: %w", err)
	}

	newFile := filepath.Join(dir, archive.Numbered(base, next))

	if report, err := l.Compress(active.Path, newFile); err != nil {
		compressor.LogError(report, err, l.Printf)
		return "", err
	}

	return newFile, nil
}

// Post satisfies the Rotator interface.
func (l *Layout) Post(fileName, newFile string) {
	if l.PostRotate != nil {
		l.PostRotate(fileName, newFile)
	}
}

func (l *Layout) setDefaults() {
	if l.Filer == nil {
		l.Filer = filer.Default()
	}

	if l.Clock == nil {
		l.Clock = clockwork.NewRealClock()
	}

	if l.Printf == nil {
		l.Printf = log.New(os.Stderr, "", log.LstdFlags).Printf
	}

	if l.Compress == nil {
		l.Compress = (&compressor.Gzip{Level: gzip.DefaultCompression, Filer: l.Filer}).Compress
	}
}

func (l *Layout) pruner() *pruner.Pruner {
	return &pruner.Pruner{Days: l.Days, Clock: l.Clock, Filer: l.Filer}
}

func (l *Layout) getArchiveDir(fileName string) string {
	if l.ArchiveDir != "" {
		return l.ArchiveDir
	}

	return filepath.Dir(fileName)
}

// Our interface must satify a gzlogr.Rotator.
var _ gzlogr.Rotator = (*Layout)(nil)
