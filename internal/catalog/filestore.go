package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Compile-time assertions that FileStore satisfies Store and Locker.
var (
	_ Store  = (*FileStore)(nil)
	_ Locker = (*FileStore)(nil)
)

// defaultPerm is the mode of newly created catalog files.
const defaultPerm fs.FileMode = 0o644

// FileStore keeps catalogs in files on the local disk. Names are file paths.
// The zero value is ready to use.
type FileStore struct {
	// Format forces the document format. When empty it is picked per path
	// with [FormatFromPath].
	Format Format
}

// NewFileStore returns a [FileStore] that picks the format from each path.
func NewFileStore() *FileStore {
	return &FileStore{}
}

func (s *FileStore) format(path string) Format {
	if s.Format != "" {
		return s.Format
	}
	return FormatFromPath(path)
}

// Load implements [Store.Load].
func (s *FileStore) Load(ctx context.Context, path string) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("catalog: load %q: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", path, err)
	}

	c, err := Decode(data, s.format(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", path, err)
	}
	return c, nil
}

// Save implements [Store.Save]. The document is encoded fully in memory,
// written to a temporary file in the destination directory, synced and
// renamed over path. An existing file keeps its permission bits.
func (s *FileStore) Save(ctx context.Context, path string, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(c, s.format(path))
	if err != nil {
		return fmt.Errorf("catalog: save %q: %w: %w", path, ErrWrite, err)
	}

	perm := defaultPerm
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	if err := writeFileAtomic(path, data, perm); err != nil {
		return fmt.Errorf("catalog: save %q: %w: %w", path, ErrWrite, err)
	}
	return nil
}

// writeFileAtomic replaces path with data via a temporary sibling file so
// readers never observe a partial document.
func writeFileAtomic(path string, data []byte, perm fs.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
