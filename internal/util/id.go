package util

import "github.com/google/uuid"

// NewID returns a time-ordered UUIDv7 string.
// It panics only if the OS random source is unavailable.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic("util: generate UUIDv7: " + err.Error())
	}
	return id.String()
}
