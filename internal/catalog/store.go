package catalog

import "context"

// Store reads and writes whole catalog documents by name. For [FileStore]
// the name is a file path; other stores use it as a key.
type Store interface {
	// Load reads and decodes the named catalog.
	// Returns an error wrapping [ErrNotFound], [ErrParse] or [ErrSchema] for
	// a missing, malformed or mis-shaped document.
	Load(ctx context.Context, name string) (*Catalog, error)

	// Save encodes c and replaces the named catalog with it. Either the whole
	// document is replaced or the previous one is left as it was.
	// Returns an error wrapping [ErrWrite] on failure.
	Save(ctx context.Context, name string, c *Catalog) error
}

// Locker is implemented by stores that can serialise concurrent
// read-modify-write cycles on one catalog.
type Locker interface {
	// Lock takes an exclusive lock on the named catalog. It does not wait:
	// if the lock is held it returns an error wrapping [ErrLocked].
	// The returned function releases the lock.
	Lock(ctx context.Context, name string) (unlock func() error, err error)
}
