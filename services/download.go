package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/metrics"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/storage"
)

// DownloadResult is a read URL for one file. Counted is false when the request
// matched a download already on the file's ledger.
type DownloadResult struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Counted   bool      `json:"counted"`
}

// DownloadTracker issues read URLs and keeps each file's distinct-download count.
type DownloadTracker struct {
	db            *gorm.DB
	store         storage.Gateway
	fingerprinter Fingerprinter
	urlTTL        time.Duration
	now           func() time.Time
}

func NewDownloadTracker(db *gorm.DB, store storage.Gateway, fp Fingerprinter, urlTTL time.Duration) *DownloadTracker {
	if fp == nil {
		fp = DailyFingerprinter{}
	}
	return &DownloadTracker{
		db:            db,
		store:         store,
		fingerprinter: fp,
		urlTTL:        urlTTL,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RequestDownload returns a short-lived read URL for fileID. Repeat requests
// are always served; only the first request per fingerprint is counted.
// Deleted files are not found and expired files return ErrFileExpired.
func (t *DownloadTracker) RequestDownload(ctx context.Context, fileID uuid.UUID, in FingerprintInputs) (*DownloadResult, error) {
	now := t.now()
	if in.At.IsZero() {
		in.At = now
	}

	var file models.File
	if err := t.db.WithContext(ctx).First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", fileID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	if file.IsDeleted {
		return nil, fmt.Errorf("file %s: %w", fileID, apperrors.ErrNotFound)
	}
	if file.ExpiredAsOf(now) {
		return nil, apperrors.ErrFileExpired
	}

	// Sign before recording so a store outage does not count a download that
	// was never handed out.
	req, err := t.store.PresignGetObject(ctx, file.StorageKey, t.urlTTL)
	if err != nil {
		return nil, err
	}

	counted, err := t.record(ctx, file.ID, t.fingerprinter.Fingerprint(in), now)
	if err != nil {
		return nil, err
	}

	result := "repeat"
	if counted {
		result = "distinct"
	}
	metrics.DownloadRequests.WithLabelValues(result).Inc()

	return &DownloadResult{URL: req.URL, ExpiresAt: req.ExpiresAt, Counted: counted}, nil
}

// record appends fingerprint to the ledger unless already present and bumps the
// counter only when the append happened. The unique index on
// (file_id, fingerprint) arbitrates concurrent requests.
func (t *DownloadTracker) record(ctx context.Context, fileID uuid.UUID, fingerprint string, at time.Time) (bool, error) {
	var counted bool
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event := models.DownloadEvent{FileID: fileID, Fingerprint: fingerprint, DownloadedAt: at}
		res := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_id"}, {Name: "fingerprint"}},
			DoNothing: true,
		}).Create(&event)
		if res.Error != nil {
			return fmt.Errorf("append download ledger: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Model(&models.File{}).Where("id = ?", fileID).
			UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error; err != nil {
			return fmt.Errorf("increment download count: %w", err)
		}
		counted = true
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("file_id", fileID.String()).Msg("record download failed")
		return false, err
	}
	return counted, nil
}
