// Package timerotator provides a Rotator for gzlogr that archives a log file
// when a calendar boundary is crossed: every N seconds, minutes, hours, days,
// at midnight or on a day of the week. Archives are gzip compressed and named
// with the date of the period the file was collecting logs for:
// service.log rotates to service_20201010.log.gz. Control the date format with
// the Layout.Format strftime pattern.
//
// The next rollover time is derived from the log file's modification time the
// first time a Layout sees a file. That is how a rollover missed while the
// process was not running is detected: a file last written yesterday is
// archived under yesterday's date on the next write or startup.
package timerotator

import (
	"compress/gzip"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/strftime"
	"golift.io/gzlogr"
	"golift.io/gzlogr/archive"
	"golift.io/gzlogr/compressor"
	"golift.io/gzlogr/filer"
	"golift.io/gzlogr/pruner"
)

// Unit is the calendar unit a rollover interval is counted in.
type Unit uint8

// Units a log file may be rotated on. Midnight and Day are the same thing.
const (
	Midnight Unit = iota
	Second
	Minute
	Hour
	Day
	Weekday
)

// Some Formats you may use in your app.
const (
	FormatDay    = "%Y%m%d"     // Default for Day, Midnight and Weekday.
	FormatHour   = "%Y%m%d%H"   // Default for Hour.
	FormatMinute = "%Y%m%d%H%M" // Default for Minute.
	FormatSecond = "%Y%m%d%H%M%S"
)

// ErrBadUnit is returned when a rotation unit can't be parsed.
var ErrBadUnit = errors.New("invalid rotation unit")

// Layout defines how often logs are rotated and how time-stamped archives are named.
type Layout struct {
	ArchiveDir string       // Location where archives are written. Default: the log file's directory.
	When       Unit         // Unit of the rotation interval. Default: Midnight.
	Interval   int          // Rotate every Interval units. Default: 1.
	Weekday    time.Weekday // Day to rotate on when When is Weekday.
	UTC        bool         // Use UTC to find boundaries and format archive names.
	Format     string       // strftime pattern for the archive date. Default depends on When.
	Days       int          // Delete archives older than this many days. 0 deletes all older archives, -1 keeps all.
	// Printf receives rotation errors. Default writes to stderr.
	Printf func(msg string, v ...any)
	// Compress writes the archive and removes the source. Default: a compressor.Gzip using Filer.
	Compress func(oldFile, newFile string) (*compressor.Report, error)
	// Mockable interfaces. Can be used for custom processing. Setting these is very optional.
	PostRotate func(fileName, newFile string)
	Clock      clockwork.Clock
	filer.Filer

	pattern *strftime.Strftime
	next    time.Time // next rollover, zero until the first check.
}

// ParseUnit turns a rotation unit string into a Unit and a weekday.
// Accepted: S, M, H, D, MIDNIGHT and W0-W6 where W0 is Monday. Case is ignored.
func ParseUnit(when string) (Unit, time.Weekday, error) {
	switch when = strings.ToUpper(strings.TrimSpace(when)); when {
	case "S":
		return Second, 0, nil
	case "M":
		return Minute, 0, nil
	case "H":
		return Hour, 0, nil
	case "D":
		return Day, 0, nil
	case "MIDNIGHT", "":
		return Midnight, 0, nil
	}

	if len(when) == 2 && when[0] == 'W' {
		if day, err := strconv.Atoi(when[1:]); err == nil && day >= 0 && day <= 6 {
			return Weekday, time.Weekday((day + 1) % 7), nil
		}
	}

	return Midnight, 0, fmt.Errorf("%w: %q", ErrBadUnit, when)
}

// Dirs validates input data and returns the list of directories being used.
func (l *Layout) Dirs(fileName string) ([]string, error) {
	if err := l.setDefaults(); err != nil {
		return nil, err
	}

	switch fpath := filepath.Dir(fileName); {
	case l.ArchiveDir == "" || fpath == l.ArchiveDir:
		return []string{fpath}, nil
	default:
		return []string{fpath, l.ArchiveDir}, nil
	}
}

// ShouldRotate returns true once the current period is over. An empty file is
// never rotated; the next rollover is moved forward instead.
func (l *Layout) ShouldRotate(active gzlogr.Active) bool {
	if err := l.setDefaults(); err != nil {
		return false
	}

	now := l.now()
	due := !now.Before(l.nextRollover(active))

	if due && active.Size == 0 {
		l.next = l.NextRollover(now)
		return false
	}

	return due
}

// NextRollover returns the end of the period that contains when.
func (l *Layout) NextRollover(when time.Time) time.Time {
	return l.step(l.periodStart(when.In(l.location())), l.Interval)
}

// Rotate renames the log file to an intermediate name carrying the date of the
// vacated period, compresses it, then prunes old archives.
// Returns the new archive's path, or an empty string if there was no file.
func (l *Layout) Rotate(active gzlogr.Active) (string, error) {
	if err := l.setDefaults(); err != nil {
		return "", err
	}

	var (
		dir     = l.getArchiveDir(active.Path)
		vacated = l.step(l.nextRollover(active), -l.Interval)
		stamp   = l.pattern.FormatString(vacated)
	)

	name, err := archive.Unique(l.Filer, dir, archive.Dated(archive.Base(active.Path), stamp))
	if err != nil {
		l.Printf("Unable to name archive for %s: %v", active.Path, err)
		return "", err
	}

	gzFile := filepath.Join(dir, name)
	plain := strings.TrimSuffix(gzFile, archive.GZext)

	if err = l.Rename(active.Path, plain); filer.IsGone(err) {
		l.next = l.NextRollover(l.now())
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("error renaming log: %w", err)
	}

	if report, err := l.Compress(plain, gzFile); err != nil {
		compressor.LogError(report, err, l.Printf)
		// Put the file back so it's left in the state we found it.
		if renameErr := l.Rename(plain, active.Path); renameErr != nil {
			err = errors.Join(err, renameErr)
		}

		return "", err
	}

	l.next = l.NextRollover(l.now())

	if _, err = l.pruner().Prune(dir, gzFile); err != nil {
		return gzFile, fmt.Errorf("pruning archives: %w", err)
	}

	return gzFile, nil
}

// Post satisfies the Rotator interface.
func (l *Layout) Post(fileName, newFile string) {
	if l.PostRotate != nil {
		l.PostRotate(fileName, newFile)
	}
}

func (l *Layout) setDefaults() error {
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

	if l.Interval < 1 {
		l.Interval = 1
	}

	if l.When > Weekday {
		return fmt.Errorf("%w: %d", ErrBadUnit, l.When)
	}

	if l.pattern != nil {
		return nil
	}

	if l.Format == "" {
		l.Format = defaultFormat(l.When)
	}

	pattern, err := strftime.New(l.Format)
	if err != nil {
		return fmt.Errorf("invalid strftime pattern %q: %w", l.Format, err)
	}

	l.pattern = pattern

	return nil
}

func defaultFormat(when Unit) string {
	switch when {
	case Second:
		return FormatSecond
	case Minute:
		return FormatMinute
	case Hour:
		return FormatHour
	case Midnight, Day, Weekday:
		fallthrough
	default:
		return FormatDay
	}
}

// nextRollover returns the tracked rollover time, deriving it from the
// file's modification time when this file hasn't been seen yet.
func (l *Layout) nextRollover(active gzlogr.Active) time.Time {
	if l.next.IsZero() {
		when := active.ModTime
		if when.IsZero() {
			when = l.now()
		}

		l.next = l.NextRollover(when)
	}

	return l.next
}

// periodStart aligns a time to the start of the period it's in.
func (l *Layout) periodStart(when time.Time) time.Time {
	year, month, day := when.Date()
	loc := when.Location()

	switch l.When {
	case Second:
		return time.Date(year, month, day, when.Hour(), when.Minute(), when.Second(), 0, loc)
	case Minute:
		return time.Date(year, month, day, when.Hour(), when.Minute(), 0, 0, loc)
	case Hour:
		return time.Date(year, month, day, when.Hour(), 0, 0, 0, loc)
	case Weekday:
		back := (int(when.Weekday()) - int(l.Weekday) + 7) % 7
		return time.Date(year, month, day-back, 0, 0, 0, 0, loc)
	case Midnight, Day:
		fallthrough
	default:
		return time.Date(year, month, day, 0, 0, 0, 0, loc)
	}
}

// step moves a period boundary count periods forward (or backward).
func (l *Layout) step(when time.Time, count int) time.Time {
	switch l.When {
	case Second:
		return when.Add(time.Duration(count) * time.Second)
	case Minute:
		return when.Add(time.Duration(count) * time.Minute)
	case Hour:
		return when.Add(time.Duration(count) * time.Hour)
	case Weekday:
		return when.AddDate(0, 0, 7*count)
	case Midnight, Day:
		fallthrough
	default:
		return when.AddDate(0, 0, count)
	}
}

func (l *Layout) location() *time.Location {
	if l.UTC {
		return time.UTC
	}

	return time.Local
}

func (l *Layout) now() time.Time {
	return l.Clock.Now().In(l.location())
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
