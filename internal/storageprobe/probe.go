// Package storageprobe reports whether the local database will survive a
// restart.
package storageprobe

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ironlog/ironlog/internal/status"
)

// Check inspects the filesystem holding path. Persisted is false on memory
// backed filesystems, true on anything else, and nil when the platform
// cannot tell.
func Check(path string) status.Storage {
	result := status.Storage{Checked: true, Platform: runtime.GOOS}

	dir, err := existingDir(path)
	if err != nil {
		result.Detail = err.Error()
		return result
	}

	persisted, detail := filesystemPersists(dir)
	result.Persisted = persisted
	result.Detail = detail
	return result
}

// existingDir returns the nearest existing directory at or above path.
func existingDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		info, err := os.Stat(dir)
		if err == nil {
			if info.IsDir() {
				return dir, nil
			}
			continue
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if parent := filepath.Dir(dir); parent == dir {
			return "", err
		}
	}
}
