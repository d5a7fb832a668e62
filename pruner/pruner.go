// Package pruner deletes rotated log archives that outlived a retention window.
//
// Pruning is directory wide: every file in the directory ending with the
// archive suffix is eligible, no matter which log file it was rotated from.
// Active (uncompressed) log files are never touched. The age of an archive is
// its modification time; the cutoff is now minus Days calendar days.
package pruner

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golift.io/gzlogr/archive"
	"golift.io/gzlogr/filer"
)

// Pruner removes old archives from a directory.
type Pruner struct {
	Days   int             // Keep archives this many days. Negative disables pruning.
	Suffix string          // Only files with this suffix are pruned. Default: .gz
	Clock  clockwork.Clock // Source of "now". Default: the system clock.
	filer.Filer
}

// OlderThan deletes archives in dir older than days, using the real file system and clock.
func OlderThan(dir string, days int) error {
	_, err := (&Pruner{Days: days}).Prune(dir)
	return err
}

// Cutoff returns the time before which archives are deleted.
func (p *Pruner) Cutoff() time.Time {
	return p.clock().Now().AddDate(0, 0, -p.Days)
}

// Prune deletes every archive in dir with a modification time before the cutoff.
// Paths listed in keep are never deleted. Files that disappear while pruning
// are skipped, so running Prune twice leaves the directory in the same state.
// Returns the number of files deleted.
func (p *Pruner) Prune(dir string, keep ...string) (int, error) {
	if p.Days < 0 {
		return 0, nil
	}

	if p.Filer == nil {
		p.Filer = filer.Default()
	}

	suffix := p.Suffix
	if suffix == "" {
		suffix = archive.GZext
	}

	files, err := p.ReadDir(dir)
	if filer.IsGone(err) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("listing log directory: %w", err)
	}

	var (
		cutoff  = p.Cutoff()
		deleted = 0
	)

	for _, file := range files {
		fileName := filepath.Join(dir, file.Name())
		if file.IsDir() || !strings.HasSuffix(file.Name(), suffix) || kept(fileName, keep) {
			continue
		}

		if !file.ModTime().Before(cutoff) {
			continue
		}

		if err := p.Remove(fileName); filer.IsGone(err) {
			continue // someone beat us to it.
		} else if err != nil {
			return deleted, fmt.Errorf("error removing file: %w", err)
		}

		deleted++
	}

	return deleted, nil
}

func (p *Pruner) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}

	return p.Clock
}

func kept(fileName string, keep []string) bool {
	for _, k := range keep {
		if filepath.Clean(k) == fileName {
			return true
		}
	}

	return false
}
