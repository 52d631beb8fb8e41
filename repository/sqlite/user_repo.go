package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/repository"
)

const userColumns = `id, name, email, password_hash, role, status, metadata, created_at, updated_at`

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email)))
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ? COLLATE NOCASE`, user.Email).Scan(&exists)
		if err == nil {
			return domain.ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		now := time.Now().UTC()
		user.CreatedAt, user.UpdatedAt = now, now
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Status,
			encodeMap(user.Metadata), formatTime(now), formatTime(now),
		)
		return err
	})
}

// Upsert keeps the stored password hash when user carries none.
func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	now := time.Now().UTC()
	created := now
	if !user.CreatedAt.IsZero() {
		created = user.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name,
			email = excluded.email,
			password_hash = COALESCE(NULLIF(excluded.password_hash, ''), users.password_hash),
			role = excluded.role,
			status = excluded.status,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Status,
		encodeMap(user.Metadata), formatTime(created), formatTime(now),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return domain.ErrEmailTaken
		}
		return err
	}
	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	user.CreatedAt, user.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user                 domain.User
		metadata             sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.Status,
		&metadata, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if metadata.Valid && metadata.String != "" {
		_ = json.Unmarshal([]byte(metadata.String), &user.Metadata)
	}
	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}
