package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the flat authorization tag attached to an identity.
type Role string

const (
	RoleUser Role = "USER"
)

// ResetTokenLength is the length of a password reset token.
const ResetTokenLength = 32

// Identity represents a registered user.
type Identity struct {
	ID           uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	FirstName    string    `json:"first_name" gorm:"size:255;not null"`
	LastName     string    `json:"last_name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         Role      `json:"role" gorm:"type:varchar(20);not null;default:'USER'"`
	ResetToken   *string   `json:"-" gorm:"size:32;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	Assets []Asset `json:"-" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Identity) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
