package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is one stored object handed out through a Link or a Mail. Files are
// soft-deleted only; the rows and the usage they account for are never reclaimed here.
type File struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`
	OriginalName string     `gorm:"not null" json:"originalName"`
	StorageKey   string     `gorm:"not null" json:"name"`
	Type         string     `gorm:"index" json:"type"`
	Size         int64      `gorm:"not null" json:"size"`
	Downloads    int64      `gorm:"not null;default:0" json:"downloads"`
	IsExpired    bool       `gorm:"not null;default:false" json:"isExpired"`
	IsDeleted    bool       `gorm:"not null;default:false;index" json:"isDeleted"`
	ExpiredAt    time.Time  `gorm:"index;not null" json:"expiredAt"`
	BatchIndex   int        `gorm:"not null;default:0" json:"-"`
	LinkID       *string    `gorm:"size:32;index" json:"linkId,omitempty"`
	MailID       *uuid.UUID `gorm:"type:uuid;index" json:"mailId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SharedTo []User `gorm:"many2many:file_shares;" json:"-"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// ExpiredAsOf reports whether the file is past its expiry at now, using the
// cached flag when the sweep has already set it.
func (f *File) ExpiredAsOf(now time.Time) bool {
	return f.IsExpired || !now.Before(f.ExpiredAt)
}
