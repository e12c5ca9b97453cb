// Package model defines domain entities for the application.
package model

import (
	"encoding/json"
	"time"
)

// JSON keys owned by the store rather than the caller.
const (
	FieldID        = "id"
	FieldMongoID   = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Fields holds caller-supplied user attributes. Values are whatever the
// request body carried; nothing here is validated.
type Fields map[string]any

// User is a stored user record. Besides the store-managed keys it carries
// arbitrary caller fields that are flattened into the JSON form.
type User struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    Fields
}

// MarshalJSON renders the user as one flat object.
func (u *User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+3)
	for k, v := range u.Fields {
		out[k] = v
	}
	out[FieldID] = u.ID
	if !u.CreatedAt.IsZero() {
		out[FieldCreatedAt] = u.CreatedAt
	}
	if !u.UpdatedAt.IsZero() {
		out[FieldUpdatedAt] = u.UpdatedAt
	}
	return json.Marshal(out)
}

// Sanitize returns a copy of f without keys the store generates.
func (f Fields) Sanitize() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if k == FieldID || k == FieldMongoID {
			continue
		}
		out[k] = normalizeNumber(v)
	}
	return out
}

// normalizeNumber turns json.Number values (produced by a decoder with
// UseNumber) into int64 when integral and float64 otherwise, recursing
// into nested objects and arrays.
func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalizeNumber(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeNumber(inner)
		}
		return out
	default:
		return v
	}
}
