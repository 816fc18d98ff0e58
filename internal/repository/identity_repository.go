package repository

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"imagevault/internal/errors"
	"imagevault/internal/model"
)

// IdentityRepository defines credential store operations.
type IdentityRepository interface {
	Create(ctx context.Context, identity *model.Identity) error
	Update(ctx context.Context, identity *model.Identity) error
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindByResetToken(ctx context.Context, token string) (*model.Identity, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo IdentityRepository) error) error
}

type identityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository builds a GORM-backed repository.
func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &identityRepository{db: db}
}

// Create inserts a new identity. The unique email index is the final arbiter
// when two registrations race.
func (r *identityRepository) Create(ctx context.Context, identity *model.Identity) error {
	err := r.db.WithContext(ctx).Create(identity).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.AlreadyExists("User with that email already exists")
	}
	return err
}

// Update saves every column of an existing identity.
func (r *identityRepository) Update(ctx context.Context, identity *model.Identity) error {
	return r.db.WithContext(ctx).Save(identity).Error
}

// FindByEmail returns gorm.ErrRecordNotFound when no identity has the email.
func (r *identityRepository) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Identity{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByResetToken returns gorm.ErrRecordNotFound when no identity carries the token.
func (r *identityRepository) FindByResetToken(ctx context.Context, token string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("reset_token = ?", token).First(&identity).Error; err != nil {
		return nil, err
	}
	return &identity, nil
}

// WithTransaction executes a function within a database transaction.
func (r *identityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo IdentityRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &identityRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
