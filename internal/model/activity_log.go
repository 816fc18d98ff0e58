package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityAction names an asset mutation.
type ActivityAction string

const (
	ActivityUpload ActivityAction = "upload"
	ActivityChange ActivityAction = "change"
	ActivityDelete ActivityAction = "delete"
)

// ActivityLog represents one asset mutation for audit purposes.
type ActivityLog struct {
	ID        uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID   uuid.UUID      `json:"owner_id" gorm:"type:char(36);not null;index"`
	Action    ActivityAction `json:"action" gorm:"type:varchar(20);not null"`
	Filename  string         `json:"filename" gorm:"size:255;not null"`
	CreatedAt time.Time      `json:"created_at"`
}

// BeforeCreate sets UUID before creating the record.
func (l *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
