package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vdt-app/internal/models"
	"vdt-app/internal/repository"

	"go.uber.org/zap"
)

var ( // Define custom errors
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AuthService interface {
	Signup(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // Returns JWT token, expiration time, and error
}

type authService struct {
	repo   repository.AuthRepository
	hasher PasswordHasher
	tokens *TokenService
	logger *zap.Logger

	// dummyDigest is verified against when the username is unknown so
	// both login failures cost the same.
	dummyDigest string
}

func NewAuthService(repo repository.AuthRepository, hasher PasswordHasher, tokens *TokenService, logger *zap.Logger) (AuthService, error) {
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy digest: %w", err)
	}
	return &authService{
		repo:        repo,
		hasher:      hasher,
		tokens:      tokens,
		logger:      logger,
		dummyDigest: dummy,
	}, nil
}

// Signup registers a new account with role user.
func (s *authService) Signup(ctx context.Context, username, password string) (*models.User, error) {
	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
	}

	err = s.repo.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered.", zap.String("username", user.Username))
	return user, nil
}

// Login checks the credentials and issues a token. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *authService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			s.logger.Info("Login failed.", zap.String("username", username))
			return "", time.Time{}, ErrInvalidCredentials
		}
		return "", time.Time{}, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Info("Login failed.", zap.String("username", username))
		return "", time.Time{}, ErrInvalidCredentials
	}

	tokenString, expiresAt, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("User logged in successfully.", zap.String("username", user.Username))
	return tokenString, expiresAt, nil
}
