package gzlogr

//go:generate mockgen -destination=mocks/gzlogr.go -package=mocks golift.io/gzlogr Rotator

import "time"

// Active describes the log file currently being appended to.
// It is handed to a Rotator each time a write is about to happen.
type Active struct {
	Path    string    // Full path to the active log file.
	Size    int64     // Bytes already in the file.
	Pending int64     // Bytes about to be appended. 0 for forced or startup checks.
	ModTime time.Time // Last modification time of the file.
}

// Rotator allows passing in your own logic for file rotation.
// A size based and a time based Rotator are included with this library.
// Use those directly, or extend them with your own methods and interface.
type Rotator interface {
	// Dirs is called once on startup.
	// This should do any validation and return a list of directories to create.
	Dirs(fileName string) (dirPaths []string, err error)
	// ShouldRotate is called before every write. Return true to roll the file over.
	ShouldRotate(active Active) bool
	// Rotate archives the active file. The active file is closed when this is called.
	// The returned archive may be empty if there was nothing to archive.
	Rotate(active Active) (archive string, err error)
	// Post is called after rotation finishes and the new file is created/opened.
	Post(fileName, archive string)
}
