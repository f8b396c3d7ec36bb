// Package ids generates identifiers for stored entities.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier; sorting ids sorts
// entities by creation time.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ObjectKey returns a random key for content-store objects.  Keys carry no
// ordering so uploads cannot be enumerated by guessing neighbours.
func ObjectKey() string {
	return uuid.NewString()
}
