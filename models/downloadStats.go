package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadEvent is one entry of a file's download ledger. The unique index on
// (file_id, fingerprint) is what makes the conditional append atomic.
type DownloadEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_download_file_fingerprint"`
	Fingerprint  string    `gorm:"size:64;not null;uniqueIndex:idx_download_file_fingerprint"`
	DownloadedAt time.Time `gorm:"not null"`

	File File `gorm:"foreignKey:FileID"`
}

func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
