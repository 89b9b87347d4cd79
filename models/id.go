package models

import "github.com/gofrs/uuid/v5"

// NewId returns a time-ordered UUIDv7 string.
func NewId() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system random source does.
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}
