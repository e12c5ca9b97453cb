package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/userstats/userstats/internal/model"
)

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	u, err := s.CreateUser(ctx, model.Fields{"name": "a"})
	require.NoError(t, err)

	u.Fields["name"] = "mutated"

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Fields["name"])
}

func TestMemoryStore_ListBounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.CreateUser(ctx, model.Fields{"name": name})
		require.NoError(t, err)
	}

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{name: "negative skip starts at the beginning", opts: ListOptions{Skip: -4, Limit: 2}, want: 2},
		{name: "skip past the end", opts: ListOptions{Skip: math.MaxInt, Limit: 2}, want: 0},
		{name: "huge limit", opts: ListOptions{Skip: 1, Limit: math.MaxInt}, want: 2},
	}

	for _, tt := range tests {
		users, err := s.ListUsers(ctx, tt.opts)
		require.NoError(t, err, tt.name)
		assert.Len(t, users, tt.want, tt.name)
	}
}

func TestMemoryStore_StatsNullGroups(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemory()

	for _, f := range []model.Fields{
		{"name": "no city", "age": int64(99)},
		{"name": "no age", "city": "Accra"},
		{"name": "both", "city": "Lome", "age": int64(10)},
	} {
		_, err := s.CreateUser(ctx, f)
		require.NoError(t, err)
	}

	stats, err := s.UserStats(ctx, model.StatsFilter{})
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Nil(t, stats[0].CityName)
	assert.Equal(t, 99.0, *stats[0].AverageAge)

	assert.Equal(t, "Lome", *stats[1].CityName)

	assert.Equal(t, "Accra", *stats[2].CityName)
	assert.Nil(t, stats[2].AverageAge)
	assert.EqualValues(t, 1, stats[2].TotalUsers)
}

func TestCompareValues(t *testing.T) {
	t.Parallel()

	now := time.Now()

	assert.Equal(t, -1, compareValues(nil, 1))
	assert.Equal(t, -1, compareValues(int64(2), 2.5))
	assert.Equal(t, 0, compareValues(int32(3), 3.0))
	assert.Equal(t, -1, compareValues(5, "a"))
	assert.Equal(t, 1, compareValues("b", "a"))
	assert.Equal(t, -1, compareValues(false, true))
	assert.Equal(t, -1, compareValues(now, now.Add(time.Second)))
}
