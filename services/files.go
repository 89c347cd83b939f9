package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/cache"
	"github.com/basit/rushupload-backend/models"
)

// FileService answers the read and delete operations on distributed files.
type FileService struct {
	db    *gorm.DB
	links cache.LinkCache
}

func NewFileService(db *gorm.DB, links cache.LinkCache) *FileService {
	if links == nil {
		links = cache.NoopLinkCache{}
	}
	return &FileService{db: db, links: links}
}

// ListOwned returns the account's live files, newest first. fileType filters
// on the stored MIME type when set.
func (s *FileService) ListOwned(ctx context.Context, accountID uuid.UUID, fileType string) ([]models.File, error) {
	q := s.db.WithContext(ctx).Preload("User").
		Where("files.user_id = ? AND files.is_deleted = ?", accountID, false)
	if fileType != "" {
		q = q.Where("files.type = ?", fileType)
	}

	var files []models.File
	if err := q.Order("files.created_at DESC").Order("files.batch_index").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list owned files: %w", err)
	}
	return files, nil
}

// ListShared returns live files other accounts have mailed to accountID.
func (s *FileService) ListShared(ctx context.Context, accountID uuid.UUID, fileType string) ([]models.File, error) {
	q := s.db.WithContext(ctx).Preload("User").
		Joins("JOIN file_shares ON file_shares.file_id = files.id").
		Where("file_shares.user_id = ? AND files.is_deleted = ?", accountID, false)
	if fileType != "" {
		q = q.Where("files.type = ?", fileType)
	}

	var files []models.File
	if err := q.Order("files.created_at DESC").Order("files.batch_index").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list shared files: %w", err)
	}
	return files, nil
}

// GetLink resolves a public link with its live files in upload order.
func (s *FileService) GetLink(ctx context.Context, linkID string) (*models.Link, error) {
	if linkID == "" {
		return nil, fmt.Errorf("%w: link id is required", apperrors.ErrValidation)
	}
	if link, ok := s.links.Get(ctx, linkID); ok {
		return link, nil
	}

	var link models.Link
	err := s.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_deleted = ?", false).Order("batch_index")
		}).
		Preload("Files.User").
		First(&link, "id = ?", linkID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("link %s: %w", linkID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load link: %w", err)
	}

	s.links.Set(ctx, &link)
	return &link, nil
}

// GetFile loads one live file owned by accountID.
func (s *FileService) GetFile(ctx context.Context, fileID, accountID uuid.UUID) (*models.File, error) {
	var file models.File
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_deleted = ?", fileID, accountID, false).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", fileID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load file: %w", err)
	}
	return &file, nil
}

// DeleteFile soft-deletes a file the account owns. The object and the usage
// it accounted for are left in place.
func (s *FileService) DeleteFile(ctx context.Context, fileID, accountID uuid.UUID) error {
	file, err := s.GetFile(ctx, fileID, accountID)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&models.File{}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", fileID, accountID, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("delete file: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("file %s: %w", fileID, apperrors.ErrNotFound)
	}

	if file.LinkID != nil {
		s.links.Invalidate(ctx, *file.LinkID)
	}
	log.Info().Str("file_id", fileID.String()).Str("owner_id", accountID.String()).Msg("file deleted")
	return nil
}
