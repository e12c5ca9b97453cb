// Package repository provides the user store implementations.
package repository

import (
	"errors"
	"time"

	"github.com/userstats/userstats/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
)

// ListOptions selects one page of users.
type ListOptions struct {
	Skip      int
	Limit     int
	Sort      string
	Ascending bool
}

// splitTimestamps separates the store-managed timestamps from the caller
// fields. Only time.Time values are taken; anything else a caller put under
// those keys stays in the returned fields.
func splitTimestamps(fields model.Fields) (model.Fields, *time.Time, *time.Time) {
	rest := make(model.Fields, len(fields))
	var createdAt, updatedAt *time.Time

	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			switch k {
			case model.FieldCreatedAt:
				createdAt = &t
				continue
			case model.FieldUpdatedAt:
				updatedAt = &t
				continue
			}
		}
		rest[k] = v
	}

	return rest, createdAt, updatedAt
}
