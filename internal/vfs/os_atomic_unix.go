//go:build !windows

package vfs

import (
	"io/fs"

	"github.com/google/renameio/v2"
)

func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
