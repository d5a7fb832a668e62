package gzlogr

import (
	"errors"
	"os"
)

// writable creates and deletes a temporary file, Windows has no access(2).
func writable(dir string) error {
	tmp, err := os.CreateTemp(dir, ".gzlogr-*")
	if err != nil {
		return err //nolint:wrapcheck
	}

	return errors.Join(tmp.Close(), os.Remove(tmp.Name()))
}
