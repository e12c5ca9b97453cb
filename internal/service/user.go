// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/userstats/userstats/internal/metrics"
	"github.com/userstats/userstats/internal/model"
	"github.com/userstats/userstats/internal/repository"
	"github.com/userstats/userstats/internal/validation"
)

// Service errors.
var (
	ErrUserNotFound = errors.New("user not found")
)

// UserStore is the data access the service needs. Update and delete must
// act atomically and report repository.ErrUserNotFound when no user matched.
type UserStore interface {
	CreateUser(ctx context.Context, fields model.Fields) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, opts repository.ListOptions) ([]*model.User, error)
	CountUsers(ctx context.Context) (int64, error)
	UpdateUser(ctx context.Context, id string, fields model.Fields) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
	UserStats(ctx context.Context, filter model.StatsFilter) ([]model.CityStats, error)
}

// UserService handles user business logic.
type UserService struct {
	store   UserStore
	metrics metrics.Recorder
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, recorder metrics.Recorder) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &UserService{
		store:   store,
		metrics: recorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// PageMeta describes where a page sits in the whole collection.
type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// ListUsersOutput defines output for listing users.
type ListUsersOutput struct {
	Users []*model.User
	Meta  PageMeta
}

// CreateUser stores the caller's fields as a new user. createdAt defaults to
// now; updatedAt is always now.
func (s *UserService) CreateUser(ctx context.Context, fields model.Fields) (*model.User, error) {
	clean := fields.Sanitize()
	now := s.now()

	if created, ok := clean[model.FieldCreatedAt]; ok {
		clean[model.FieldCreatedAt] = coerceTime(created)
	} else {
		clean[model.FieldCreatedAt] = now
	}
	clean[model.FieldUpdatedAt] = now

	start := time.Now()
	user, err := s.store.CreateUser(ctx, clean)
	s.metrics.ObserveStoreDuration("create", time.Since(start))
	if err != nil {
		return nil, err
	}

	s.metrics.IncUserCreated()

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	start := time.Now()
	user, err := s.store.GetUser(ctx, id)
	s.metrics.ObserveStoreDuration("get", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return user, nil
}

// ListUsers returns one page of users plus pagination metadata. The total
// counts the whole collection; the list endpoint has no filters.
func (s *UserService) ListUsers(ctx context.Context, q validation.ListQuery) (*ListUsersOutput, error) {
	opts := repository.ListOptions{
		Skip:      q.Skip(),
		Limit:     q.Limit,
		Sort:      q.Sort,
		Ascending: q.Ascending(),
	}

	start := time.Now()
	users, err := s.store.ListUsers(ctx, opts)
	s.metrics.ObserveStoreDuration("list", time.Since(start))
	if err != nil {
		return nil, err
	}

	start = time.Now()
	total, err := s.store.CountUsers(ctx)
	s.metrics.ObserveStoreDuration("count", time.Since(start))
	if err != nil {
		return nil, err
	}

	if users == nil {
		users = []*model.User{}
	}

	return &ListUsersOutput{
		Users: users,
		Meta: PageMeta{
			Total:      total,
			Page:       q.Page,
			Limit:      q.Limit,
			TotalPages: TotalPages(total, q.Limit),
		},
	}, nil
}

// UpdateUser sets the caller's fields on an existing user.
func (s *UserService) UpdateUser(ctx context.Context, id string, fields model.Fields) (*model.User, error) {
	clean := fields.Sanitize()
	if created, ok := clean[model.FieldCreatedAt]; ok {
		clean[model.FieldCreatedAt] = coerceTime(created)
	}
	clean[model.FieldUpdatedAt] = s.now()

	start := time.Now()
	user, err := s.store.UpdateUser(ctx, id, clean)
	s.metrics.ObserveStoreDuration("update", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.metrics.IncUserUpdated()

	return user, nil
}

// DeleteUser removes a user.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	start := time.Now()
	err := s.store.DeleteUser(ctx, id)
	s.metrics.ObserveStoreDuration("delete", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.metrics.IncUserDeleted()

	return nil
}

// UserStats returns the per-city age report for the given filters.
func (s *UserService) UserStats(ctx context.Context, q validation.StatsQuery) ([]model.CityStats, error) {
	filter, err := q.Filter()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	stats, err := s.store.UserStats(ctx, filter)
	s.metrics.ObserveStoreDuration("stats", time.Since(start))
	if err != nil {
		return nil, err
	}

	if stats == nil {
		stats = []model.CityStats{}
	}

	return stats, nil
}

// TotalPages returns ceil(total / limit).
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	l := int64(limit)
	n := total / l
	if total%l != 0 {
		n++
	}
	return n
}

// coerceTime turns RFC 3339 strings into time.Time so caller-supplied
// timestamps sort like store-generated ones. Other values pass through.
func coerceTime(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return v
	}
	return t.UTC()
}
