package engine

import "github.com/google/uuid"

// IDGenerator mints identifiers for entities created on the client side,
// such as the id of an optimistically added item. Ids are minted outside
// Update and carried in messages so Update stays deterministic.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. Panics if the system random
// source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
