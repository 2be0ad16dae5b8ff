package attendance

import "github.com/google/uuid"

// Record id prefixes.
const (
	PrefixWorker = "worker-"
	PrefixLog    = "log-"
	PrefixUser   = "u-"
	PrefixLogin  = "login-"
)

// IDGenerator produces the unique part of new record ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids, so records created
// later sort later when compared as strings.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
