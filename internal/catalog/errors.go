package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by [Store.Load] when the named catalog does not exist.
	ErrNotFound = errors.New("catalog not found")

	// ErrParse is returned when a document is not well-formed JSON or YAML.
	ErrParse = errors.New("catalog document is malformed")

	// ErrSchema is returned when a well-formed document does not have the
	// catalog shape: the root is not an object, the "buildings" key is missing,
	// or a record has fields of the wrong type or fails validation.
	ErrSchema = errors.New("catalog document does not match the schema")

	// ErrDuplicateID is matched by every [*DuplicateIDError].
	ErrDuplicateID = errors.New("building id already exists in catalog")

	// ErrWrite is returned by [Store.Save] when the destination cannot be written.
	ErrWrite = errors.New("catalog could not be written")

	// ErrLocked is returned by [Locker.Lock] when another run holds the lock.
	ErrLocked = errors.New("catalog is locked by another run")
)

// DuplicateIDError lists the ids that would appear more than once after a
// merge. It matches [ErrDuplicateID] with errors.Is.
type DuplicateIDError struct {
	// IDs holds each colliding id once, in the order the collision was found.
	IDs []string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateID, strings.Join(e.IDs, ", "))
}

// Is reports whether target is [ErrDuplicateID].
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}
