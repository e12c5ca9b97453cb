package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userstats/userstats/internal/model"
)

func TestPgOrderBy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		field     string
		ascending bool
		want      string
		wantArgs  []any
	}{
		{"created desc", "createdAt", false, "created_at DESC NULLS LAST, id DESC", []any{0, 10}},
		{"updated asc", "updatedAt", true, "updated_at ASC NULLS FIRST, id ASC", []any{0, 10}},
		{"id", "id", true, "id ASC", []any{0, 10}},
		{"json key", "age", false, "doc -> $3::text DESC NULLS LAST, id DESC", []any{0, 10, "age"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := []any{0, 10}
			got := pgOrderBy(tt.field, tt.ascending, &args)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSplitTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rest, created, updated := splitTimestamps(model.Fields{
		"name":      "A",
		"createdAt": now,
		"updatedAt": "not a time",
	})

	require.NotNil(t, created)
	assert.Equal(t, now, *created)
	assert.Nil(t, updated)
	assert.Equal(t, model.Fields{"name": "A", "updatedAt": "not a time"}, rest)
}
