package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/userstats/userstats/internal/model"
)

// createUsersTable bootstraps the single table PostgresStore needs.
const createUsersTable = `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		doc        JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

const userColumns = `id, doc, created_at, updated_at`

// PostgresStore keeps users as JSONB documents in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createUsersTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure users table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}

// CreateUser inserts a new user with a ULID primary key.
func (s *PostgresStore) CreateUser(ctx context.Context, fields model.Fields) (*model.User, error) {
	rest, createdAt, updatedAt := splitTimestamps(fields)

	now := time.Now().UTC()
	if createdAt == nil {
		createdAt = &now
	}
	if updatedAt == nil {
		updatedAt = &now
	}

	doc, err := json.Marshal(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	query := `
		INSERT INTO users (id, doc, created_at, updated_at)
		VALUES ($1, $2::jsonb, $3, $4)
		RETURNING ` + userColumns

	row := s.pool.QueryRow(ctx, query, ulid.Make().String(), string(doc), *createdAt, *updatedAt)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	return user, nil
}

// ListUsers returns one page of users.
func (s *PostgresStore) ListUsers(ctx context.Context, opts ListOptions) ([]*model.User, error) {
	args := []any{opts.Skip, opts.Limit}
	orderBy := pgOrderBy(opts.Sort, opts.Ascending, &args)

	query := `SELECT ` + userColumns + ` FROM users ORDER BY ` + orderBy + ` OFFSET $1 LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, min(opts.Limit, 100))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of users in the table.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UpdateUser merges fields into an existing user in a single statement.
func (s *PostgresStore) UpdateUser(ctx context.Context, id string, fields model.Fields) (*model.User, error) {
	rest, createdAt, updatedAt := splitTimestamps(fields)

	if updatedAt == nil {
		now := time.Now().UTC()
		updatedAt = &now
	}

	doc, err := json.Marshal(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}

	query := `
		UPDATE users
		SET doc = doc || $2::jsonb,
		    updated_at = $3,
		    created_at = COALESCE($4, created_at)
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.pool.QueryRow(ctx, query, id, string(doc), *updatedAt, createdAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes a user. Returns ErrUserNotFound if no row matched.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UserStats computes the per-city report with a GROUP BY query.
func (s *PostgresStore) UserStats(ctx context.Context, filter model.StatsFilter) ([]model.CityStats, error) {
	query, args := StatsQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user stats: %w", err)
	}
	defer rows.Close()

	stats := make([]model.CityStats, 0)
	for rows.Next() {
		var row model.CityStats
		if err := rows.Scan(&row.CityName, &row.AverageAge, &row.TotalUsers); err != nil {
			return nil, fmt.Errorf("failed to scan user stats: %w", err)
		}
		stats = append(stats, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user stats: %w", err)
	}

	return stats, nil
}

// pgOrderBy maps a sort field onto an ORDER BY clause. Store-managed fields
// map to columns; anything else is a JSONB key passed as a parameter.
// Missing keys sort lowest, as in the document store.
func pgOrderBy(field string, ascending bool, args *[]any) string {
	dir, nulls := "DESC", "NULLS LAST"
	if ascending {
		dir, nulls = "ASC", "NULLS FIRST"
	}

	var expr string
	switch field {
	case model.FieldID, model.FieldMongoID:
		return "id " + dir
	case model.FieldCreatedAt:
		expr = "created_at"
	case model.FieldUpdatedAt:
		expr = "updated_at"
	default:
		*args = append(*args, field)
		expr = fmt.Sprintf("doc -> $%d::text", len(*args))
	}

	return fmt.Sprintf("%s %s %s, id %s", expr, dir, nulls, dir)
}

// scanUser reads one row of userColumns.
func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u   model.User
		raw []byte
	)

	if err := row.Scan(&u.ID, &raw, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields model.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode user document: %w", err)
	}

	u.Fields = fields.Sanitize()
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	return &u, nil
}
