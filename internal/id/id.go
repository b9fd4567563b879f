package id

import "github.com/google/uuid"

// New returns a random run or item identifier.
func New() string {
	return uuid.NewString()
}

// Short is the first block of a new identifier, for log lines and file
// names where collisions within one batch are the only concern.
func Short() string {
	return New()[:8]
}
