package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Asset represents a stored image owned by exactly one identity.
// Filename is unique per owner, not globally.
type Asset struct {
	ID         uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID    uuid.UUID `json:"owner_id" gorm:"type:char(36);not null;uniqueIndex:idx_owner_filename,priority:1;index:idx_owner_created,priority:1"`
	Filename   string    `json:"filename" gorm:"size:255;not null;uniqueIndex:idx_owner_filename,priority:2"`
	MimeType   string    `json:"mime_type" gorm:"size:127;not null"`
	Payload    []byte    `json:"-" gorm:"type:longblob"`
	StorageKey string    `json:"-" gorm:"size:255"`
	SizeBytes  int64     `json:"size" gorm:"not null"`
	Checksum   string    `json:"checksum" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;autoCreateTime:false;index:idx_owner_created,priority:2"`
}

// BeforeCreate sets UUID before creating the record.
func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
