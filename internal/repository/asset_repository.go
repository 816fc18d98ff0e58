package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"imagevault/internal/errors"
	"imagevault/internal/model"
)

// listColumns is every asset column except the payload, which list queries never need.
var listColumns = []string{"id", "owner_id", "filename", "mime_type", "storage_key", "size_bytes", "checksum", "created_at"}

// AssetRepository defines owner-scoped asset persistence operations.
type AssetRepository interface {
	Create(ctx context.Context, asset *model.Asset) error
	Update(ctx context.Context, asset *model.Asset) error
	FindByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*model.Asset, error)
	ExistsByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (bool, error)
	DeleteByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) error
	ExistsByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time) (bool, error)
	FindByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time, page Page, order SortOrder) ([]model.Asset, error)
	ExistsByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, order SortOrder) ([]model.Asset, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo AssetRepository) error) error
}

type assetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

// Create inserts an asset; a (owner, filename) collision surfaces as ALREADY_EXISTS.
func (r *assetRepository) Create(ctx context.Context, asset *model.Asset) error {
	return translateDuplicate(r.db.WithContext(ctx).Create(asset).Error, asset.Filename)
}

// Update rewrites an existing asset in place.
func (r *assetRepository) Update(ctx context.Context, asset *model.Asset) error {
	return translateDuplicate(r.db.WithContext(ctx).Save(asset).Error, asset.Filename)
}

func (r *assetRepository) FindByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (*model.Asset, error) {
	var asset model.Asset
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND filename = ?", ownerID, filename).
		First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) ExistsByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) (bool, error) {
	return r.exists(ctx, "owner_id = ? AND filename = ?", ownerID, filename)
}

func (r *assetRepository) DeleteByOwnerAndFilename(ctx context.Context, ownerID uuid.UUID, filename string) error {
	return r.db.WithContext(ctx).
		Where("owner_id = ? AND filename = ?", ownerID, filename).
		Delete(&model.Asset{}).Error
}

func (r *assetRepository) ExistsByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time) (bool, error) {
	return r.exists(ctx, "owner_id = ? AND created_at = ?", ownerID, createdAt)
}

// FindByOwnerAndCreatedAt returns one page of the owner's assets created at exactly createdAt.
func (r *assetRepository) FindByOwnerAndCreatedAt(ctx context.Context, ownerID uuid.UUID, createdAt time.Time, page Page, order SortOrder) ([]model.Asset, error) {
	var assets []model.Asset
	if err := r.byDateQuery(r.db.WithContext(ctx), ownerID, createdAt, page, order).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *assetRepository) ExistsByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	return r.exists(ctx, "owner_id = ?", ownerID)
}

func (r *assetRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, order SortOrder) ([]model.Asset, error) {
	var assets []model.Asset
	if err := r.byOwnerQuery(r.db.WithContext(ctx), ownerID, order).Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// WithTransaction executes a function within a database transaction.
func (r *assetRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo AssetRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &assetRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

func (r *assetRepository) byDateQuery(tx *gorm.DB, ownerID uuid.UUID, createdAt time.Time, page Page, order SortOrder) *gorm.DB {
	q := tx.Model(&model.Asset{}).
		Select(listColumns).
		Where("owner_id = ? AND created_at = ?", ownerID, createdAt)
	if c := order.clause(); c != "" {
		q = q.Order(c)
	}
	return q.Offset(page.Offset()).Limit(page.Size)
}

func (r *assetRepository) byOwnerQuery(tx *gorm.DB, ownerID uuid.UUID, order SortOrder) *gorm.DB {
	q := tx.Model(&model.Asset{}).
		Select(listColumns).
		Where("owner_id = ?", ownerID)
	if c := order.clause(); c != "" {
		q = q.Order(c)
	}
	return q
}

func (r *assetRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Asset{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func translateDuplicate(err error, filename string) error {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.AlreadyExists("Image %s already exists", filename)
	}
	return err
}
