package memstore

import "errors"

var (
	// ErrUnsupported is returned for query, update or pipeline features the
	// store does not implement.
	ErrUnsupported = errors.New("memstore: unsupported")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("memstore: duplicate key")

	// ErrImmutableID is returned when an update would change _id.
	ErrImmutableID = errors.New("memstore: _id is immutable")
)
