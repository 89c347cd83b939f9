package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account. Storage usage only ever moves through atomic deltas on
// used_storage; UsedStorage is a snapshot taken when the row was loaded.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	Tier         Tier      `gorm:"type:varchar(16);not null;default:'FREE'" json:"tier"`
	TotalStorage int64     `gorm:"not null;default:0" json:"totalStorage"`
	UsedStorage  int64     `gorm:"not null;default:0" json:"usedStorage"`
	// Placeholder accounts are created for mail recipients who have never signed in.
	IsPlaceholder bool `gorm:"not null;default:false" json:"isPlaceholder"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	GoogleID           *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleAccessToken  *string `json:"-"` // Don't expose in JSON
	GoogleRefreshToken *string `json:"-"`
	Provider           *string `json:"provider,omitempty"`

	GoogleTokenExpiresAt *time.Time `json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
