package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
)

// lockSuffix is appended to a catalog path to form its lock file.
const lockSuffix = ".lock"

// Lock implements [Locker.Lock] with an exclusively created "<path>.lock"
// file holding the owner's pid. A lock left behind by a crashed run must be
// removed by hand; the error names the file.
func (s *FileStore) Lock(ctx context.Context, path string) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockPath := path + lockSuffix
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("catalog: lock %q: %w (remove %s if no other run is active)", path, ErrLocked, lockPath)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: lock %q: %w", path, err)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("catalog: lock %q: %w", path, err)
	}

	return func() error {
		if err := os.Remove(lockPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("catalog: unlock %q: %w", path, err)
		}
		return nil
	}, nil
}
