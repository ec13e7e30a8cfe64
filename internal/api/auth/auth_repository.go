package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/artisanhub/artisanhub-api/app/observability/metrics"
	"github.com/artisanhub/artisanhub-api/internal/types"
)

// UserRepo is the credential store: one record per identity.
type UserRepo interface {
	// GetUserByEmail looks an identity up by email. Normalization happens
	// here, not at call sites: the repository lowercases before querying.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, userID string) (*types.User, error)
	// CreateUser inserts a new identity. A concurrent signup for the same
	// email loses to the unique index and surfaces as types.ErrConflict.
	CreateUser(ctx context.Context, user *types.User) (*types.User, error)
	// UpdateUser persists profile/provider mutations and bumps updated_at.
	UpdateUser(ctx context.Context, user *types.User) error
}

// PGXPool is the subset of pgxpool.Pool the repository uses. pgxmock
// implements it for tests.
type PGXPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ UserRepo = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresUserRepo(pgpool PGXPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, email, display_name, business_name, category,
       avatar_kind, avatar_data, avatar_url, password_hash,
       provider, provider_id, created_at, updated_at`

func (r *PostgresUserRepo) scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	var kind string
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.BusinessName, &u.Category,
		&kind, &u.Avatar.Data, &u.Avatar.URL, &u.PasswordHash,
		&u.Provider, &u.ProviderID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("%w: query failed: %v", types.ErrStoreUnavailable, err)
	}
	u.Avatar.Kind = types.AvatarKind(kind)
	return &u, nil
}

func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	defer r.observe(ctx, "get_user_by_email", time.Now())
	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalized)
	return r.scanUser(row)
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID string) (*types.User, error) {
	defer r.observe(ctx, "get_user_by_id", time.Now())
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, types.ErrNotFound
	}
	row := r.pgpool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanUser(row)
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, user *types.User) (*types.User, error) {
	defer r.observe(ctx, "create_user", time.Now())
	normalized := strings.ToLower(strings.TrimSpace(user.Email))

	row := r.pgpool.QueryRow(ctx,
		`INSERT INTO users (email, display_name, business_name, category,
		                    avatar_kind, avatar_data, avatar_url, password_hash,
		                    provider, provider_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		normalized, user.DisplayName, user.BusinessName, user.Category,
		string(user.Avatar.Kind), user.Avatar.Data, user.Avatar.URL, user.PasswordHash,
		user.Provider, user.ProviderID)

	created := *user
	created.Email = normalized
	err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, types.ErrConflict
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		return nil, fmt.Errorf("%w: insert failed: %v", types.ErrStoreUnavailable, err)
	}
	return &created, nil
}

func (r *PostgresUserRepo) UpdateUser(ctx context.Context, user *types.User) error {
	defer r.observe(ctx, "update_user", time.Now())

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users
		 SET display_name = $1, business_name = $2, category = $3,
		     avatar_kind = $4, avatar_data = $5, avatar_url = $6,
		     password_hash = $7, provider = $8, provider_id = $9,
		     updated_at = now()
		 WHERE id = $10`,
		user.DisplayName, user.BusinessName, user.Category,
		string(user.Avatar.Kind), user.Avatar.Data, user.Avatar.URL,
		user.PasswordHash, user.Provider, user.ProviderID, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ErrConflict
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
		return fmt.Errorf("%w: update failed: %v", types.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-index violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresUserRepo) observe(ctx context.Context, query string, start time.Time) {
	metrics.Get().DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("query", query)))
}
