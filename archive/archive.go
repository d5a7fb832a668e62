// Package archive names and discovers rotated, compressed log files.
//
// Size based archives are named `{base}_{N}.log.gz` where N starts at 1 and
// grows by one each rotation. Time based archives are named
// `{base}_{stamp}.log.gz`. The base is the active file name without its
// extension: app.log rotates to app_1.log.gz, app_2.log.gz and so on.
//
// Discovery matches archives by substring: an archive belongs to a base when
// its name contains the base. Base names sharing one directory must not be
// substrings of one another ("app" and "myapp"), or their numbering mixes.
package archive

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golift.io/gzlogr/filer"
)

// Some constants this package uses.
const (
	LogExt = ".log" // extension of active files and archives before compression.
	GZext  = ".gz"  // suffix of every archive.
	Joiner = "_"    // joins the base name with the discriminator.
)

// ErrDiscriminator is returned when an archive name has a discriminator that is not a number.
var ErrDiscriminator = errors.New("archive discriminator is not numeric")

// ParseError reports an existing archive whose name can't be numbered.
type ParseError struct {
	File          string
	Discriminator string
	Err           error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q: %v", e.File, e.Discriminator, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Archive is a discovered compressed log file.
type Archive struct {
	Path          string
	Discriminator string // text between the last Joiner and the extension.
}

// Base returns a file's base name: the path and extension are removed.
func Base(fileName string) string {
	name := filepath.Base(fileName)

	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Numbered returns the file name of the nth size based archive.
func Numbered(base string, n int) string {
	return base + Joiner + strconv.Itoa(n) + LogExt + GZext
}

// Dated returns the file name of a time based archive.
func Dated(base, stamp string) string {
	return base + Joiner + stamp + LogExt + GZext
}

// List returns the archives in dir that belong to base, sorted by file name.
// A missing directory has no archives.
func List(f filer.Filer, dir, base string) ([]Archive, error) {
	files, err := f.ReadDir(dir)
	if filer.IsGone(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("listing archives: %w", err)
	}

	list := []Archive{}

	for _, file := range files {
		name := file.Name()
		if !strings.HasSuffix(name, GZext) || !strings.Contains(name, base) {
			continue // not our file.
		}

		list = append(list, Archive{Path: filepath.Join(dir, name), Discriminator: discriminator(name, base)})
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Path < list[j].Path })

	return list, nil
}

// NextNumber returns the number for the next size based archive of base in dir.
// This is the highest existing number plus one, or 1 when there are none.
// Archives without a discriminator are skipped. A discriminator that is not a
// number returns a *ParseError because a malformed name means something else
// is writing archives with our base name.
func NextNumber(f filer.Filer, dir, base string) (int, error) {
	list, err := List(f, dir, base)
	if err != nil {
		return 0, err
	}

	highest := 0

	for _, archive := range list {
		if archive.Discriminator == "" {
			continue
		}

		n, err := strconv.Atoi(archive.Discriminator)
		if err != nil {
			return 0, &ParseError{File: archive.Path, Discriminator: archive.Discriminator, Err: ErrDiscriminator}
		}

		if n > highest {
			highest = n
		}
	}

	return highest + 1, nil
}

// Unique returns name if it does not exist in dir. Otherwise a counter is
// appended to the discriminator: app_20201010-1.log.gz, app_20201010-2.log.gz.
func Unique(f filer.Filer, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	if strings.HasSuffix(name, LogExt+GZext) {
		ext = LogExt + GZext
	}

	stem := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = stem + "-" + strconv.Itoa(i) + ext
		}

		_, err := f.Stat(filepath.Join(dir, candidate))
		if filer.IsGone(err) {
			return candidate, nil
		} else if err != nil {
			return "", fmt.Errorf("checking archive name: %w", err)
		}
	}
}

// discriminator returns the text between the last Joiner and the extension.
// A file named exactly like the base (app.log.gz) has no discriminator.
func discriminator(name, base string) string {
	stem := strings.TrimSuffix(strings.TrimSuffix(name, GZext), LogExt)
	if stem == base {
		return ""
	}

	idx := strings.LastIndex(stem, Joiner)
	if idx < 0 {
		return ""
	}

	return stem[idx+len(Joiner):]
}
