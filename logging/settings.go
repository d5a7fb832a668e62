package logging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by LoadSettings.
const EnvPrefix = "LOG_"

// DefaultFilename is used when no filenames are configured.
const DefaultFilename = "app.log"

// Rotation modes.
const (
	ModeSize = "size"
	ModeTime = "time"
)

// Settings errors.
var (
	ErrNoFilenames = errors.New("at least one log filename or the stream handler is required")
	ErrBadFilename = errors.New("log filename must be a plain file name")
	ErrBadMode     = errors.New("rotation mode must be size or time")
	ErrBadLevel    = errors.New("unknown log level")
	ErrBadEncoding = errors.New("unknown log file encoding")
)

// Settings is everything needed to build a Handle.
// Each field can be set with an environment variable: LOG_ + the koanf tag in upper case.
type Settings struct {
	Level         string   `koanf:"level"`            // DEBUG, INFO, WARNING, ERROR or CRITICAL.
	Name          string   `koanf:"name"`             // Logger name, printed in every line.
	Directory     string   `koanf:"directory"`        // Where log files and archives live.
	Filenames     []string `koanf:"filenames"`        // Files that each get every record. Empty logs to stderr only.
	Encoding      string   `koanf:"encoding"`         // Character set of the log files.
	DateFormat    string   `koanf:"date_format"`      // strftime pattern of the record time stamp.
	DaysToKeep    int      `koanf:"days_to_keep"`     // Archives older than this are pruned.
	MaxFileSizeMB int      `koanf:"max_file_size_mb"` // Size rotation threshold.
	UTC           bool     `koanf:"utc"`              // Time stamps and rotation boundaries in UTC.
	StreamHandler bool     `koanf:"stream_handler"`   // Also write records to stderr.
	ShowLocation  bool     `koanf:"show_location"`    // Print the caller's file and line.
	Rotation      string   `koanf:"rotation"`         // size or time.
	RotateWhen    string   `koanf:"rotate_when"`      // S, M, H, D, MIDNIGHT or W0-W6.
	Interval      int      `koanf:"rotate_interval"`  // Rotate every this many RotateWhen units.
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() *Settings {
	return &Settings{
		Level:         "INFO",
		Name:          "app",
		Directory:     "logs",
		Filenames:     []string{DefaultFilename},
		Encoding:      "UTF-8",
		DateFormat:    "%Y-%m-%dT%H:%M:%S",
		DaysToKeep:    7,
		MaxFileSizeMB: 10,
		UTC:           true,
		StreamHandler: true,
		ShowLocation:  false,
		Rotation:      ModeSize,
		RotateWhen:    "midnight",
		Interval:      1,
	}
}

// LoadSettings builds Settings from defaults, then the optional YAML document,
// then LOG_* environment variables. Later sources win.
// LOG_FILENAMES takes a comma separated list, as does a yaml string.
func LoadSettings(yamlData []byte) (*Settings, error) {
	k := koanf.New(".")

	if len(yamlData) > 0 {
		if err := k.Load(rawbytes.Provider(yamlData), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing log settings: %w", err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("reading log settings from environment: %w", err)
	}

	settings := DefaultSettings()
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           settings,
		},
	}

	if err := k.UnmarshalWithConf("", settings, conf); err != nil {
		return nil, fmt.Errorf("decoding log settings: %w", err)
	}

	return settings, nil
}

// Validate checks the settings that don't need the file system.
// No filenames is valid only with StreamHandler: records go to stderr only.
func (s *Settings) Validate() error {
	if len(s.Filenames) == 0 && !s.StreamHandler {
		return ErrNoFilenames
	}

	for _, name := range s.Filenames {
		if name = strings.TrimSpace(name); name == "" || strings.ContainsAny(name, `/\,`) || name == "." || name == ".." {
			return fmt.Errorf("%w: %q", ErrBadFilename, name)
		}
	}

	if mode := strings.ToLower(s.Rotation); mode != ModeSize && mode != ModeTime {
		return fmt.Errorf("%w: %q", ErrBadMode, s.Rotation)
	}

	return nil
}
