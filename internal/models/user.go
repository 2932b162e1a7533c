package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the permission tier attached to a user and carried in tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         Role   `db:"role" json:"role"`
}

var (
	ErrEmptyIdentity = errors.New("token identity is empty")
	ErrUnknownRole   = errors.New("token role is unknown")
)

// Claims defines the structure of the JWT claims.
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// NewClaims builds the claim set for a token issued at issuedAt and
// living for ttl.
func NewClaims(username string, role Role, issuedAt time.Time, ttl time.Duration) (*Claims, error) {
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	if err := claims.Validate(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Validate checks the application fields of the claim set. The
// registered time claims are checked by the jwt parser.
func (c *Claims) Validate() error {
	if c.Username == "" {
		return ErrEmptyIdentity
	}
	if !c.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, c.Role)
	}
	return nil
}
