// Package main is a simple example app to write logs to see log rotation in action.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golift.io/gzlogr/logging"
)

// ///////////////////////////////////////////////////////////////////////// //

/* This is a simple example app to write logs to see log rotation in action. */

// Usage, size rotation with a 1 megabyte threshold:
//   go run ./cmd/exampleapp size --max-mb 1
//
// Usage, time rotation every 10 seconds, keep nothing older than today:
//   go run ./cmd/exampleapp time --when S --interval 10 --days 0
//
// Usage, size rotation, forced every 2 seconds:
//   go run ./cmd/exampleapp size --every 2s
//
// Settings may also come from a yaml file (--config) and LOG_* variables.

const (
	defaultDir      = "/tmp/myfolder"
	bytesPerLogLine = 5000
	timeBetweenLogs = time.Millisecond * 5
)

// ///////////////////////////////////////////////////////////////////////// //

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newApp().Run(ctx, os.Args)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "exampleapp",
		Usage: "write fake logs to watch gzip log rotation",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "yaml settings file"},
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "log directory", Value: defaultDir},
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "log file name, repeat for more files"},
			&cli.IntFlag{Name: "days", Usage: "days of archives to keep, negative keeps all"},
			&cli.IntFlag{Name: "line-bytes", Usage: "size of each fake log line", Value: bytesPerLogLine},
			&cli.IntFlag{Name: "count", Usage: "stop after this many lines, 0 runs until interrupted"},
			&cli.DurationFlag{Name: "pause", Usage: "time between log lines", Value: timeBetweenLogs},
			&cli.DurationFlag{Name: "every", Usage: "force a rotation at this interval"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "do not copy records to stderr"},
		},
		Commands: []*cli.Command{
			{
				Name:  logging.ModeSize,
				Usage: "rotate when a file grows past --max-mb",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "max-mb", Usage: "rotation threshold in megabytes", Value: 1},
				},
				Action: run,
			},
			{
				Name:  logging.ModeTime,
				Usage: "rotate when the period in --when and --interval ends",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "when", Usage: "S, M, H, D, MIDNIGHT or W0-W6", Value: "S"},
					&cli.IntFlag{Name: "interval", Usage: "number of --when units per period", Value: 1},
					&cli.BoolFlag{Name: "local", Usage: "use local time instead of UTC"},
				},
				Action: run,
			},
		},
	}
}

// run loads the settings, applies the flags given and writes logs until done.
func run(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd.String("config"))
	if err != nil {
		return err
	}

	applyFlags(settings, cmd)

	handle, err := logging.New(settings)
	if err != nil {
		return err
	}
	defer handle.Close()

	fmt.Fprintf(os.Stderr, "writing %s rotated logs to %v\n", settings.Rotation, handle.Files())

	return makeLogs(ctx, handle, cmd)
}

func loadSettings(configFile string) (*logging.Settings, error) {
	if configFile == "" {
		return logging.LoadSettings(nil)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return logging.LoadSettings(data)
}

// applyFlags overrides settings with flags set on the command line.
func applyFlags(settings *logging.Settings, cmd *cli.Command) {
	settings.Rotation = cmd.Name

	if cmd.IsSet("dir") || !cmd.IsSet("config") {
		settings.Directory = cmd.String("dir")
	}

	if files := cmd.StringSlice("file"); len(files) > 0 {
		settings.Filenames = files
	}

	if cmd.IsSet("days") {
		settings.DaysToKeep = cmd.Int("days")
	}

	if cmd.Bool("quiet") {
		settings.StreamHandler = false
	}

	switch cmd.Name {
	case logging.ModeSize:
		settings.MaxFileSizeMB = cmd.Int("max-mb")
	case logging.ModeTime:
		settings.RotateWhen = cmd.String("when")
		settings.Interval = cmd.Int("interval")
		settings.UTC = !cmd.Bool("local")
	}
}

// Write fake logs!
func makeLogs(ctx context.Context, handle *logging.Handle, cmd *cli.Command) error {
	logLine := string(bytes.Repeat([]byte{'_'}, cmd.Int("line-bytes")))
	count := cmd.Int("count")

	ticker := time.NewTicker(cmd.Duration("pause"))
	defer ticker.Stop()

	var every <-chan time.Time

	if interval := cmd.Duration("every"); interval > 0 {
		forced := time.NewTicker(interval)
		defer forced.Stop()

		every = forced.C
	}

	for written := 0; count == 0 || written < count; {
		select {
		case <-ctx.Done():
			return nil
		case <-every:
			if err := handle.Rotate(); err != nil {
				return err
			}
		case <-ticker.C:
			if err := handle.Info(logLine, zap.Int("line", written)); err != nil {
				return err
			}

			written++
		}
	}

	return nil
}
