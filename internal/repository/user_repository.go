package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"evento/internal/models"

	"github.com/lib/pq"
)

const userColumns = `id, email, password_hash, name, COALESCE(cpf, ''), tipo, tenant_id,
	is_active, last_login_at, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return insertUser(ctx, r.db, user)
}

func insertUser(ctx context.Context, db DBTX, user *models.User) error {
	now := time.Now()
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, cpf, tipo, tenant_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, TRUE, $7, $7)
		RETURNING id`,
		user.Email, user.PasswordHash, user.Name, user.CPF, user.Tipo, user.TenantID, now,
	).Scan(&user.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", mapError(err))
	}
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.CPF, &u.Tipo, &u.TenantID,
		&u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mapError(err))
	}
	return u, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", mapError(err))
	}
	return u, nil
}

// ListByIDs returns the users with the given ids, ordered by id
func (r *UserRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UpdateLastLogin stamps the user's last successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetActive activates or deactivates a user
func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res)
}

// UserFilters narrows List and Count
type UserFilters struct {
	Search   string // matches name or email
	Tipo     string
	TenantID *int64
	IsActive *bool
}

func (f UserFilters) where() (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Search != "" {
		add("(name ILIKE $%[1]d OR email ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if f.Tipo != "" {
		add("tipo = $%d", f.Tipo)
	}
	if f.TenantID != nil {
		add("tenant_id = $%d", *f.TenantID)
	}
	if f.IsActive != nil {
		add("is_active = $%d", *f.IsActive)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of users matching f, newest first
func (r *UserRepository) List(ctx context.Context, f UserFilters, limit, offset int) ([]models.User, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT `+userColumns+` FROM users%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Count returns how many users match f
func (r *UserRepository) Count(ctx context.Context, f UserFilters) (int, error) {
	where, args := f.where()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountActiveAdmins returns the number of active platform administrators
func (r *UserRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE tipo = $1 AND is_active = TRUE`, models.UserTypeAdmin).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return n, nil
}

// UpdateProfile stores a user's name and CPF
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, cpf string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, cpf = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`, id, name, cpf)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", mapError(err))
	}
	return requireAffected(res)
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireAffected(res)
}
