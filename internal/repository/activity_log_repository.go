package repository

import (
	"context"

	"gorm.io/gorm"

	"imagevault/internal/model"
)

// ActivityLogRepository defines activity log persistence operations.
type ActivityLogRepository interface {
	Create(ctx context.Context, log *model.ActivityLog) error
	CreateBatch(ctx context.Context, logs []model.ActivityLog) error
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

// Create creates a new activity log entry.
func (r *activityLogRepository) Create(ctx context.Context, log *model.ActivityLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// CreateBatch creates multiple activity log entries in a single statement.
func (r *activityLogRepository) CreateBatch(ctx context.Context, logs []model.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}
