package auth

import (
	"context"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"imagevault/internal/errors"
	"imagevault/internal/model"
)

const bcryptCost = 10

// PasswordHasher provides password hashing.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// Authenticator verifies a presented password against an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, identity *model.Identity, password string) error
}

// BcryptHasher implements PasswordHasher and Authenticator with bcrypt.
type BcryptHasher struct {
	cost int
}

var (
	_ PasswordHasher = (*BcryptHasher)(nil)
	_ Authenticator  = (*BcryptHasher)(nil)
)

// NewBcryptHasher creates a bcrypt hasher. A cost of 0 selects the default.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hashed), nil
}

// Authenticate compares password with the identity's stored hash.
func (h *BcryptHasher) Authenticate(_ context.Context, identity *model.Identity, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return oops.Code(errors.CodeInvalidCredentials).
			With("email", identity.Email).
			Errorf("Bad credentials")
	}
	return nil
}
