package fetcher

import (
	"errors"
	"io/fs"
	"os"
)

// LocalFile is a temporary copy of a fetched resource plus its sidecar companions.
type LocalFile struct {
	// Name is the resource name the file was fetched from.
	Name string
	// Path is the local temporary file path.
	Path string
	// Sidecars holds local paths of companion files written next to Path.
	Sidecars []string
}

// Remove deletes the temporary file and its sidecars. Missing files are ignored, so Remove may be called more than once.
func (l *LocalFile) Remove() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, p := range append([]string{l.Path}, l.Sidecars...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
