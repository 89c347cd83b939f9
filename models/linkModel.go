package models

import (
	"time"

	"github.com/google/uuid"
)

// Link is a public, unauthenticated distribution of a batch of files.
type Link struct {
	ID        string    `gorm:"size:32;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"userId"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Files []File `gorm:"foreignKey:LinkID" json:"files"`
}

func (l *Link) FileIDs() []uuid.UUID {
	return fileIDs(l.Files)
}

func fileIDs(files []File) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID)
	}
	return ids
}
