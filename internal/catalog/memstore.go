package catalog

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Compile-time assertions that MemStore satisfies Store and Locker.
var (
	_ Store  = (*MemStore)(nil)
	_ Locker = (*MemStore)(nil)
)

// MemStore is a thread-safe, in-memory [Store]. Documents are kept as encoded
// bytes so that loading exercises the same decoding rules as [FileStore].
// It is suitable for tests and dry runs. The zero value is ready to use and
// stores JSON.
type MemStore struct {
	// Format is the encoding used for stored documents. Empty means JSON.
	Format Format

	mu     sync.Mutex
	docs   map[string][]byte
	locked map[string]bool
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		docs:   make(map[string][]byte),
		locked: make(map[string]bool),
	}
}

func (s *MemStore) format() Format {
	if s.Format == "" {
		return FormatJSON
	}
	return s.Format
}

// Put stores a raw document under name without decoding it.
func (s *MemStore) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = make(map[string][]byte)
	}
	s.docs[name] = slices.Clone(data)
}

// Document returns a copy of the raw document stored under name.
func (s *MemStore) Document(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	return slices.Clone(data), ok
}

// Load implements [Store.Load].
func (s *MemStore) Load(ctx context.Context, name string) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.Document(name)
	if !ok {
		return nil, fmt.Errorf("catalog: load %q: %w", name, ErrNotFound)
	}
	c, err := Decode(data, s.format())
	if err != nil {
		return nil, fmt.Errorf("catalog: load %q: %w", name, err)
	}
	return c, nil
}

// Save implements [Store.Save].
func (s *MemStore) Save(ctx context.Context, name string, c *Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(c, s.format())
	if err != nil {
		return fmt.Errorf("catalog: save %q: %w: %w", name, ErrWrite, err)
	}
	s.Put(name, data)
	return nil
}

// Lock implements [Locker.Lock].
func (s *MemStore) Lock(ctx context.Context, name string) (func() error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked == nil {
		s.locked = make(map[string]bool)
	}
	if s.locked[name] {
		return nil, fmt.Errorf("catalog: lock %q: %w", name, ErrLocked)
	}
	s.locked[name] = true

	var once sync.Once
	return func() error {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.locked, name)
		})
		return nil
	}, nil
}
