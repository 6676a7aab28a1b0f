package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/admin-console/internal/domain"
)

// ErrEmailTaken is returned when an admin with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

const uniqueViolation = "23505"

// AdminRepository defines persistence access for console operators.
// Lookups of unknown records return pgx.ErrNoRows.
type AdminRepository interface {
	Create(ctx context.Context, admin *domain.AdminUser) error
	Update(ctx context.Context, admin *domain.AdminUser) error
	GetByID(ctx context.Context, id string) (*domain.AdminUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
	List(ctx context.Context) ([]*domain.AdminUser, error)
}

type adminRepository struct {
	pool *pgxpool.Pool
}

// NewAdminRepository returns a Postgres-backed implementation.
func NewAdminRepository(pool *pgxpool.Pool) AdminRepository {
	return &adminRepository{pool: pool}
}

const adminColumns = `id, name, email, password_hash, role, permissions, status, created_at, updated_at`

func (r *adminRepository) Create(ctx context.Context, admin *domain.AdminUser) error {
	const query = `
        INSERT INTO admin_users (name, email, password_hash, role, permissions, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		capabilityStrings(admin.Permissions),
		admin.Status,
	).Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
	return translate(err)
}

func (r *adminRepository) Update(ctx context.Context, admin *domain.AdminUser) error {
	const query = `
        UPDATE admin_users
        SET name=$1, email=$2, password_hash=$3, role=$4, permissions=$5, status=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		capabilityStrings(admin.Permissions),
		admin.Status,
		admin.ID,
	).Scan(&admin.UpdatedAt)
	return translate(err)
}

func (r *adminRepository) GetByID(ctx context.Context, id string) (*domain.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE id=$1`
	return scanAdmin(r.pool.QueryRow(ctx, query, id))
}

func (r *adminRepository) GetByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE LOWER(email)=LOWER($1)`
	return scanAdmin(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *adminRepository) List(ctx context.Context) ([]*domain.AdminUser, error) {
	query := `SELECT ` + adminColumns + ` FROM admin_users ORDER BY created_at, email`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []*domain.AdminUser
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

func scanAdmin(row pgx.Row) (*domain.AdminUser, error) {
	var (
		admin       domain.AdminUser
		permissions []string
	)
	if err := row.Scan(
		&admin.ID,
		&admin.Name,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Role,
		&permissions,
		&admin.Status,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	); err != nil {
		return nil, err
	}
	for _, raw := range permissions {
		if tag, ok := domain.ParseCapability(raw); ok {
			admin.Permissions = append(admin.Permissions, tag)
		}
	}
	return &admin, nil
}

func capabilityStrings(tags []domain.Capability) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, string(tag))
	}
	return out
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}
