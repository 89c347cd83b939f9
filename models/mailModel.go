package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mail distributes a batch of files to specific recipients.
type Mail struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"userId"`
	To        []string  `gorm:"serializer:json;type:text;not null" json:"to"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Files []File `gorm:"foreignKey:MailID" json:"files"`
}

func (m *Mail) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

func (m *Mail) FileIDs() []uuid.UUID {
	return fileIDs(m.Files)
}
