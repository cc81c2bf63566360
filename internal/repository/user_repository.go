package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/leadcrm/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("record already exists")

// UserRecord is a user plus the credential material the API never returns.
type UserRecord struct {
	domain.User
	PasswordHash string
}

// UserRepository defines persistence access for CRM accounts.
type UserRepository interface {
	Create(ctx context.Context, user *UserRecord) error
	Update(ctx context.Context, user *UserRecord) error
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	List(ctx context.Context, role domain.Role) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, name, role, avatar, phone, department, is_active, last_login,
               created_at, updated_at, preferences, google_account, password_hash`

func (r *userRepository) Create(ctx context.Context, user *UserRecord) error {
	const query = `
        INSERT INTO users (id, email, name, role, avatar, phone, department, is_active, last_login,
                           created_at, updated_at, preferences, google_account, password_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.Name,
		user.Role,
		user.Avatar,
		user.Phone,
		user.Department,
		user.IsActive,
		user.LastLogin,
		user.CreatedAt,
		user.UpdatedAt,
		user.Preferences,
		user.GoogleAccount,
		user.PasswordHash,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *UserRecord) error {
	const query = `
        UPDATE users SET name=$1, role=$2, avatar=$3, phone=$4, department=$5, is_active=$6,
            last_login=$7, updated_at=$8, preferences=$9, google_account=$10, password_hash=$11
        WHERE id=$12`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Role,
		user.Avatar,
		user.Phone,
		user.Department,
		user.IsActive,
		user.LastLogin,
		user.UpdatedAt,
		user.Preferences,
		user.GoogleAccount,
		user.PasswordHash,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*UserRecord, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*UserRecord, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(email))
}

func (r *userRepository) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if role != "" {
		query += ` WHERE role=$1`
		args = append(args, role)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, rec.User)
	}
	return users, rows.Err()
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*UserRecord, error) {
	rec, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanUser(row pgx.Row) (*UserRecord, error) {
	var rec UserRecord
	if err := row.Scan(
		&rec.ID,
		&rec.Email,
		&rec.Name,
		&rec.Role,
		&rec.Avatar,
		&rec.Phone,
		&rec.Department,
		&rec.IsActive,
		&rec.LastLogin,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.Preferences,
		&rec.GoogleAccount,
		&rec.PasswordHash,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
