package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var userColumns = []string{
	"id", "name", "email", "password_hash", "role", "department", "is_active", "created_at", "updated_at",
}

const uniqueViolation = "23505"

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Department,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query, args, err := psql.
		Insert("users").
		Columns("id", "name", "email", "password_hash", "role", "department", "is_active").
		Values(user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Department, user.IsActive).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Create query for user: %w", err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	query, args, err := psql.
		Update("users").
		Set("name", user.Name).
		Set("email", user.Email).
		Set("password_hash", user.PasswordHash).
		Set("role", user.Role).
		Set("department", user.Department).
		Set("is_active", user.IsActive).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": user.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for user %s: %w", user.ID, err)
	}
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, sq.Eq{"id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, sq.Eq{"email": email})
}

func (r *userRepository) fetchSingle(ctx context.Context, where sq.Eq) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user lookup: %w", err)
	}
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	builder := psql.Select(userColumns...).From("users")
	if filter.Role != nil {
		builder = builder.Where(sq.Eq{"role": *filter.Role})
	}
	if filter.Active != nil {
		builder = builder.Where(sq.Eq{"is_active": *filter.Active})
	}
	query, args, err := builder.OrderBy("created_at DESC", "id").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build List query for users: %w", err)
	}
	return r.queryUsers(ctx, query, args)
}

// FindActiveByRoles returns active users holding any of roles, in a stable
// order so a seeded picker selects reproducibly.
func (r *userRepository) FindActiveByRoles(ctx context.Context, roles []domain.Role) ([]domain.User, error) {
	if len(roles) == 0 {
		return []domain.User{}, nil
	}
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"role": roles, "is_active": true}).
		OrderBy("created_at ASC", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindActiveByRoles query: %w", err)
	}
	return r.queryUsers(ctx, query, args)
}

func (r *userRepository) queryUsers(ctx context.Context, query string, args []any) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return result, nil
}
