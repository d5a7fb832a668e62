//go:build !windows

package gzlogr

import "golang.org/x/sys/unix"

// writable checks the directory grants us write and search permission.
func writable(dir string) error {
	return unix.Access(dir, unix.W_OK|unix.X_OK) //nolint:wrapcheck
}
