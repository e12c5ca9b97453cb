package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/userstats/userstats/internal/model"
)

// MemoryStore keeps users in process memory. It follows the ordering and
// grouping rules of the document store and is meant for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*model.User
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{users: make(map[string]*model.User)}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// CreateUser stores a copy of fields under a new ULID.
func (s *MemoryStore) CreateUser(ctx context.Context, fields model.Fields) (*model.User, error) {
	rest, createdAt, updatedAt := splitTimestamps(fields)

	now := time.Now().UTC()
	u := &model.User{
		ID:        ulid.Make().String(),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    rest,
	}
	if createdAt != nil {
		u.CreatedAt = createdAt.UTC()
	}
	if updatedAt != nil {
		u.UpdatedAt = updatedAt.UTC()
	}

	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()

	return cloneUser(u), nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

// ListUsers returns one page of users.
func (s *MemoryStore) ListUsers(ctx context.Context, opts ListOptions) ([]*model.User, error) {
	s.mu.RLock()
	all := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		c := compareValues(sortValue(all[i], opts.Sort), sortValue(all[j], opts.Sort))
		if c == 0 {
			c = strings.Compare(all[i].ID, all[j].ID)
		}
		if opts.Ascending {
			return c < 0
		}
		return c > 0
	})

	skip := max(opts.Skip, 0)
	if skip >= len(all) {
		return []*model.User{}, nil
	}
	end := len(all)
	if opts.Limit > 0 && opts.Limit < end-skip {
		end = skip + opts.Limit
	}

	page := make([]*model.User, 0, end-skip)
	for _, u := range all[skip:end] {
		page = append(page, cloneUser(u))
	}
	return page, nil
}

// CountUsers returns the number of stored users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// UpdateUser merges fields into an existing user under the write lock.
func (s *MemoryStore) UpdateUser(ctx context.Context, id string, fields model.Fields) (*model.User, error) {
	rest, createdAt, updatedAt := splitTimestamps(fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	next := cloneUser(u)
	for k, v := range rest {
		next.Fields[k] = v
	}
	if createdAt != nil {
		next.CreatedAt = createdAt.UTC()
	}
	if updatedAt != nil {
		next.UpdatedAt = updatedAt.UTC()
	} else {
		next.UpdatedAt = time.Now().UTC()
	}
	s.users[id] = next

	return cloneUser(next), nil
}

// DeleteUser removes a user.
func (s *MemoryStore) DeleteUser(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

// UserStats groups matching users by city.
func (s *MemoryStore) UserStats(ctx context.Context, filter model.StatsFilter) ([]model.CityStats, error) {
	type group struct {
		city  *string
		sum   float64
		aged  int64
		total int64
	}

	groups := make(map[string]*group)
	var order []string

	s.mu.RLock()
	for _, u := range s.users {
		age, hasAge := toFloat(u.Fields["age"])
		city, hasCity := u.Fields["city"].(string)

		if filter.MinAge != nil && (!hasAge || age < float64(*filter.MinAge)) {
			continue
		}
		if filter.MaxAge != nil && (!hasAge || age > float64(*filter.MaxAge)) {
			continue
		}
		if filter.City != "" && (!hasCity || !strings.Contains(strings.ToLower(city), strings.ToLower(filter.City))) {
			continue
		}

		key := "\x00null"
		var name *string
		if hasCity {
			key = city
			c := city
			name = &c
		}

		g, ok := groups[key]
		if !ok {
			g = &group{city: name}
			groups[key] = g
			order = append(order, key)
		}
		g.total++
		if hasAge {
			g.sum += age
			g.aged++
		}
	}
	s.mu.RUnlock()

	stats := make([]model.CityStats, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		row := model.CityStats{CityName: g.city, TotalUsers: g.total}
		if g.aged > 0 {
			avg := g.sum / float64(g.aged)
			row.AverageAge = &avg
		}
		stats = append(stats, row)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		a, b := stats[i].AverageAge, stats[j].AverageAge
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})

	return stats, nil
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Fields = make(model.Fields, len(u.Fields))
	for k, v := range u.Fields {
		c.Fields[k] = v
	}
	return &c
}

func sortValue(u *model.User, field string) any {
	switch field {
	case model.FieldID, model.FieldMongoID:
		return u.ID
	case model.FieldCreatedAt:
		return u.CreatedAt
	case model.FieldUpdatedAt:
		return u.UpdatedAt
	default:
		return u.Fields[field]
	}
}

// typeRank orders values of different kinds: missing, numbers, strings,
// everything else, booleans, timestamps.
func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case bool:
		return 4
	case time.Time:
		return 5
	default:
		return 3
	}
}

func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 4:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case 5:
		return a.(time.Time).Compare(b.(time.Time))
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
