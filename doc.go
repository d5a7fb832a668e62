// Package gzlogr is a log rotation module designed to plug directly into a
// standard go logger. It writes a log file, rolls it over when it's too big
// or too old, gzips the rolled file and deletes archives older than a number
// of days.
//
// The New() methods return a simple io.WriteCloser that works with most log packages.
// Every write asks a Rotator if the file must be rolled over first; the
// rotation runs inline, so a write returns after the archive is written.
// There are no background go routines or timers.
//
// Two Rotators are included:
//
//   - sizerotator archives a file that outgrew a byte limit to app_1.log.gz, app_2.log.gz, ...
//   - timerotator archives a file when a calendar boundary passes to app_20201010.log.gz.
//
// Both delete archives older than a retention window from the log directory on
// every rotation. The logging package wires one Logger per file into a zap
// logger configured from the environment.
//
//	https://pkg.go.dev/golift.io/gzlogr/sizerotator
//	https://pkg.go.dev/golift.io/gzlogr/timerotator
package gzlogr
