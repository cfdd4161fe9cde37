package observers

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// PurgeArtifacts removes files in dir older than maxAge. Returns deleted count.
func PurgeArtifacts(fs afero.Fs, dir string, maxAge time.Duration) (int, error) {
	if dir == "" || maxAge <= 0 {
		return 0, nil
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	exists, err := afero.DirExists(fs, dir)
	if err != nil || !exists {
		return 0, err
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return 0, err
	}
	var removed int
	var errs error
	cutoff := time.Now().Add(-maxAge)
	for _, info := range entries {
		if info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, info.Name())
		if err := fs.Remove(path); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		removed++
	}
	return removed, errs
}
