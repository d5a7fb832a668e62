// Package logging is the log writer front-end for gzlogr.
// It formats records with zap and appends them to one or more rotating log
// files that share a directory, optionally copying every record to stderr.
//
// There is no global logger: New returns a Handle that the application passes
// around. Records written with Handle.Log (and the level helpers) return any
// write or rotation error to the caller. Records written through the zap
// logger from Handle.Logger report those errors on stderr instead.
//
// With no filenames and the stream handler on, a Handle is a plain console
// logger and no directory is touched.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golift.io/gzlogr"
	"golift.io/gzlogr/sizerotator"
	"golift.io/gzlogr/timerotator"
)

// Handle owns the rotating log files of one configured logger.
type Handle struct {
	settings *Settings
	logger   *zap.Logger
	cores    []zapcore.Core
	files    []*gzlogr.Logger
}

// New validates the settings, opens (and if due, rotates) every log file and
// returns a Handle. Configuration errors are returned here; no files are left
// open when New fails.
func New(settings *Settings) (*Handle, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	level, err := parseLevel(settings.Level)
	if err != nil {
		return nil, err
	}

	enc, err := fileEncoding(settings.Encoding)
	if err != nil {
		return nil, err
	}

	encoder, err := newEncoder(settings)
	if err != nil {
		return nil, err
	}

	handle := &Handle{settings: settings}

	for _, name := range settings.Filenames {
		rotator, err := newRotator(settings)
		if err != nil {
			handle.Close()
			return nil, err
		}

		file, err := gzlogr.New(&gzlogr.Config{
			Filepath: filepath.Join(settings.Directory, strings.TrimSpace(name)),
			Rotator:  rotator,
		})
		if err != nil {
			handle.Close()
			return nil, fmt.Errorf("opening log file %s: %w", name, err)
		}

		handle.files = append(handle.files, file)
		handle.cores = append(handle.cores, zapcore.NewCore(encoder, zapcore.AddSync(encode(file, enc)), level))
	}

	if settings.StreamHandler {
		handle.cores = append(handle.cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if settings.ShowLocation {
		opts = append(opts, zap.AddCaller())
	}

	handle.logger = zap.New(zapcore.NewTee(handle.cores...), opts...).Named(settings.Name)

	return handle, nil
}

// Logger returns the zap logger writing to every configured output.
// Its Panic and Fatal methods still panic and exit; use Critical instead.
func (h *Handle) Logger() *zap.Logger {
	return h.logger
}

// Files returns the paths of the active log files.
func (h *Handle) Files() []string {
	paths := make([]string, len(h.files))
	for i, file := range h.files {
		paths[i] = file.Path()
	}

	return paths
}

// Log writes a record to every output enabled for the level. Errors from every
// output, including failed rotations, are combined and returned.
func (h *Handle) Log(level zapcore.Level, msg string, fields ...zap.Field) error {
	return h.log(level, msg, fields)
}

// Debug logs a record at debug level. See Log.
func (h *Handle) Debug(msg string, fields ...zap.Field) error {
	return h.log(zapcore.DebugLevel, msg, fields)
}

// Info logs a record at info level. See Log.
func (h *Handle) Info(msg string, fields ...zap.Field) error {
	return h.log(zapcore.InfoLevel, msg, fields)
}

// Warn logs a record at warn level. See Log.
func (h *Handle) Warn(msg string, fields ...zap.Field) error {
	return h.log(zapcore.WarnLevel, msg, fields)
}

// Error logs a record at error level. See Log.
func (h *Handle) Error(msg string, fields ...zap.Field) error {
	return h.log(zapcore.ErrorLevel, msg, fields)
}

// Critical logs a record at CriticalLevel. See Log.
func (h *Handle) Critical(msg string, fields ...zap.Field) error {
	return h.log(CriticalLevel, msg, fields)
}

// log is called by the exported helpers so the caller is always two frames up.
func (h *Handle) log(level zapcore.Level, msg string, fields []zap.Field) error {
	entry := zapcore.Entry{
		Level:      level,
		Time:       time.Now(),
		LoggerName: h.settings.Name,
		Message:    msg,
	}

	if h.settings.ShowLocation {
		entry.Caller = zapcore.NewEntryCaller(runtime.Caller(2)) //nolint:mnd
	}

	var err error

	for _, core := range h.cores {
		if core.Enabled(level) {
			err = multierr.Append(err, core.Write(entry, fields))
		}
	}

	return err
}

// Rotate forces every log file to rotate now.
func (h *Handle) Rotate() error {
	var err error

	for _, file := range h.files {
		_, rotateErr := file.Rotate()
		err = multierr.Append(err, rotateErr)
	}

	return err
}

// Close flushes the logger and closes every log file.
func (h *Handle) Close() error {
	var err error

	if h.logger != nil {
		_ = h.logger.Sync() // stderr can't always be synced.
	}

	for _, file := range h.files {
		err = multierr.Append(err, file.Close())
	}

	return err
}

func newRotator(settings *Settings) (gzlogr.Rotator, error) {
	if strings.EqualFold(settings.Rotation, ModeTime) {
		when, weekday, err := timerotator.ParseUnit(settings.RotateWhen)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return &timerotator.Layout{
			When:     when,
			Weekday:  weekday,
			Interval: settings.Interval,
			UTC:      settings.UTC,
			Days:     settings.DaysToKeep,
		}, nil
	}

	return &sizerotator.Layout{
		MaxBytes: int64(settings.MaxFileSizeMB) * sizerotator.MegaByte,
		Days:     settings.DaysToKeep,
	}, nil
}

// CriticalLevel is the level of Critical records. It sits above ERROR and,
// unlike zap's panic and fatal levels, never stops the program.
const CriticalLevel = zapcore.DPanicLevel

// parseLevel accepts zap level names and WARNING and CRITICAL.
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(level) {
	case "WARNING":
		return zapcore.WarnLevel, nil
	case "CRITICAL":
		return CriticalLevel, nil
	}

	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return parsed, fmt.Errorf("%w: %q", ErrBadLevel, level)
	}

	return parsed, nil
}

// fileEncoding returns nil for UTF-8, the native encoding, or the named encoding.
func fileEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadEncoding, name)
	}

	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return nil, nil
	}

	return enc, nil
}

// encode wraps a writer in a transcoder when the log files are not UTF-8.
func encode(w io.Writer, enc encoding.Encoding) io.Writer {
	if enc == nil {
		return w
	}

	return &transcoder{Writer: w, enc: enc}
}

// transcoder converts each record in one piece, so the rotating file sees a
// single write per record. Characters the encoding can't represent are replaced.
type transcoder struct {
	io.Writer
	enc encoding.Encoding
}

func (t *transcoder) Write(p []byte) (int, error) {
	b, err := encoding.ReplaceUnsupported(t.enc.NewEncoder()).Bytes(p)
	if err != nil {
		return 0, fmt.Errorf("encoding log record: %w", err)
	}

	if _, err = t.Writer.Write(b); err != nil {
		return 0, err //nolint:wrapcheck
	}

	return len(p), nil
}

// newEncoder builds the line format: [time]:[LEVEL]:[name]:[file:line]:message.
func newEncoder(settings *Settings) (zapcore.Encoder, error) {
	pattern, err := strftime.New(settings.DateFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid date format %q: %w", settings.DateFormat, err)
	}

	const millisecond = int(time.Millisecond)

	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		ConsoleSeparator: ":",
		EncodeTime: func(when time.Time, enc zapcore.PrimitiveArrayEncoder) {
			if settings.UTC {
				when = when.UTC()
			}

			enc.AppendString(fmt.Sprintf("[%s.%03d]", pattern.FormatString(when), when.Nanosecond()/millisecond))
		},
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			if level == CriticalLevel {
				enc.AppendString("[CRITICAL]")
				return
			}

			enc.AppendString("[" + level.CapitalString() + "]")
		},
		EncodeName: func(name string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + name + "]")
		},
		EncodeCaller: func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + caller.TrimmedPath() + "]")
		},
		EncodeDuration: zapcore.StringDurationEncoder,
	}), nil
}
