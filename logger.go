package gzlogr

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"golift.io/gzlogr/filer"
)

// These are the default directory and log file POSIX modes.
const (
	FileMode os.FileMode = 0o600
	DirMode  os.FileMode = 0o750
)

// Custom errors returned by this package.
var (
	ErrNilInterface   = errors.New("nil Rotator interface provided")
	ErrDirNotWritable = errors.New("log directory is not writable")
)

// Config is the data needed to create a new Logger.
type Config struct {
	Rotator  Rotator     // REQUIRED: Use your own or one of the provided layouts.
	Filepath string      // Full path to log file. Set this, the default is lousy.
	FileMode os.FileMode // POSIX mode for new files.
	DirMode  os.FileMode // POSIX mode for new folders.
}

// Logger is what you get in return for providing a Config. Use this to set log output.
// You must obtain a Logger by calling one of the New() procedures.
// Writes are synchronous: a write that triggers a rotation returns after the
// rotation, compression and pruning finish.
type Logger struct {
	config      *Config    // incoming configurtation.
	mu          sync.Mutex // serializes writes and rotations.
	active      Active     // size and mtime of the active open file.
	File        *os.File   // The active open file. Useful for direct writing.
	Interface   Rotator    // copied from config for brevity.
	filer.Filer            // overridable file system procedures.
}

// New takes in your configuration and returns a Logger you can use with
// log.SetOutput() or any io.Writer consumer. Configuration problems, like an
// unwritable directory, are returned here and the Logger is not usable.
// The active file is checked for rotation before New returns, so a file left
// over from a previous run that is already due is archived immediately.
func New(config *Config) (*Logger, error) {
	logger := &Logger{config: config, Interface: config.Rotator, Filer: filer.Default()}
	if err := logger.initialize(); err != nil {
		return nil, err
	}

	return logger, nil
}

// NewMust is New, but panics on any error.
func NewMust(config *Config) *Logger {
	logger, err := New(config)
	if err != nil {
		panic(err)
	}

	return logger
}

// initialize runs all the startup routines.
func (l *Logger) initialize() error {
	if l.Interface == nil {
		return ErrNilInterface
	}

	if err := l.setConfigDefaults(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.checkAndRotate(0)
}

// setConfigDefaults does exactly what it says. Sets missing values.
// It also creates the log directories and makes sure they're writable.
func (l *Logger) setConfigDefaults() error {
	if l.config.Filepath == "" {
		l.config.Filepath = filepath.Join(os.TempDir(),
			filepath.Base(os.Args[0])+"-"+path.Base(reflect.TypeFor[Logger]().PkgPath())+".log")
	}

	if l.config.DirMode == 0 {
		l.config.DirMode = DirMode
	}

	if l.config.FileMode == 0 {
		l.config.FileMode = FileMode
	}

	dirs, err := l.Interface.Dirs(l.config.Filepath)
	if err != nil {
		return fmt.Errorf("validating Rotator: %w", err)
	}

	for _, dir := range dirs {
		if err := l.MkdirAll(dir, l.config.DirMode); err != nil {
			return fmt.Errorf("making directories for logfiles: %w", err)
		}

		if err := writable(dir); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDirNotWritable, dir, err)
		}
	}

	return nil
}

// openLog opens the log file for writing.
// If the file exists, it is appended to. If it does not exist, it is created.
func (l *Logger) openLog() error {
	perm := os.O_WRONLY | os.O_APPEND
	l.active = Active{Path: l.config.Filepath}

	if info, err := l.Stat(l.config.Filepath); filer.IsGone(err) {
		// File doesn't exist, create it!
		perm = os.O_WRONLY | os.O_TRUNC | os.O_CREATE
		l.active.ModTime = time.Now()
	} else if err != nil {
		return fmt.Errorf("checking logfile: %w", err)
	} else {
		// File exists, append to it!
		l.active.Size = info.Size()
		l.active.ModTime = info.ModTime()
	}

	var err error

	l.File, err = l.OpenFile(l.config.Filepath, perm, l.config.FileMode)
	if err != nil {
		return fmt.Errorf("error with new logfile: %w", err)
	}

	return nil
}

// Write sends data directly to the file. This satisfies the io.Writer interface.
// Errors from a triggered rotation are returned and nothing is written.
func (l *Logger) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.write(b)
}

// write sends a message into the log file after everyhing checks out.
func (l *Logger) write(b []byte) (int, error) {
	if err := l.checkAndRotate(int64(len(b))); err != nil {
		return 0, err
	}

	size, err := l.File.Write(b)
	l.active.Size += int64(size)
	l.active.ModTime = time.Now()

	if err != nil {
		return size, fmt.Errorf("error writing log msg: %w", err)
	}

	return size, nil
}

// checkAndRotate makes sure the log file is open and ready for writing,
// then asks the Rotator if the file must be rolled over first.
func (l *Logger) checkAndRotate(size int64) error {
	if l.File == nil {
		if err := l.openLog(); err != nil {
			return err
		}
	}

	l.active.Pending = size
	if !l.Interface.ShouldRotate(l.active) {
		return nil
	}

	_, err := l.rotate()

	return err
}

// Rotate forces the log to rotate immediately. Returns the size of the rotated log.
func (l *Logger) Rotate() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.File == nil {
		if err := l.openLog(); err != nil {
			return 0, err
		}
	}

	l.active.Pending = 0

	return l.rotate()
}

// rotate closes the active file, hands it to the Rotator and opens a fresh one.
// If the Rotator fails the original file is opened again for appending.
func (l *Logger) rotate() (int64, error) {
	active := l.active

	if err := l.close(); err != nil {
		return active.Size, err
	}

	archive, err := l.Interface.Rotate(active)
	if err != nil {
		err = fmt.Errorf("error rotating: %w", err)
		if openErr := l.openLog(); openErr != nil {
			err = errors.Join(err, openErr)
		}

		return active.Size, err
	}

	if err := l.openLog(); err != nil {
		return active.Size, err
	}

	if archive != "" {
		l.Interface.Post(l.config.Filepath, archive)
	}

	return active.Size, nil
}

// Close closes the active log file session. A Write after Close opens the file again.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.close()
}

// close closes the active log file.
func (l *Logger) close() error {
	if l.File == nil {
		return nil
	}

	err := l.File.Close()
	l.File = nil

	if err != nil {
		return fmt.Errorf("closing log file %s: %w", l.config.Filepath, err)
	}

	return nil
}

// Path returns the path of the active log file.
func (l *Logger) Path() string {
	return l.config.Filepath
}

// Our interface must satify an io.WriteCloser.
var _ io.WriteCloser = (*Logger)(nil)
