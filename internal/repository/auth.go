package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"vdt-app/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AuthRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type authRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAuthRepository(db *sqlx.DB, logger *zap.Logger) AuthRepository {
	return &authRepository{db: db, logger: logger}
}

// CreateUser inserts the user and fills in its id. An existing username
// yields ErrDuplicateUsername; the existing row is never overwritten.
func (r *authRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?) RETURNING id`)
	err := r.db.QueryRowxContext(ctx, query, user.Username, user.PasswordHash, user.Role).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}

func (r *authRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind(`SELECT id, username, password_hash, role FROM users WHERE username = ?`)
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Hasher is the part of the password hasher the seeder needs.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

type seedFile struct {
	Users []struct {
		Username string      `yaml:"username"`
		Password string      `yaml:"password"`
		Role     models.Role `yaml:"role"`
	} `yaml:"users"`
}

// SeedUsers creates the users listed in the YAML file at path. Users
// that already exist are left alone, so seeding is safe on every start.
// It is the only way to create admin accounts.
func SeedUsers(ctx context.Context, repo AuthRepository, hasher Hasher, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("failed to decode seed file: %w", err)
	}

	for _, u := range sf.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}
		role := u.Role
		if role == "" {
			role = models.RoleUser
		}
		if !role.Valid() {
			return fmt.Errorf("seed user %q: unknown role %q", u.Username, role)
		}

		hash, err := hasher.Hash(u.Password)
		if err != nil {
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		err = repo.CreateUser(ctx, &models.User{Username: u.Username, PasswordHash: hash, Role: role})
		switch {
		case errors.Is(err, ErrDuplicateUsername):
			continue
		case err != nil:
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		logger.Info("Seeded user", zap.String("username", u.Username), zap.String("role", string(role)))
	}
	return nil
}
