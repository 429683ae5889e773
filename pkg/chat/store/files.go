package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// CreateFileUpload inserts the file record, its in-flight upload row,
// and one deduplicated target row per recipient, all in one transaction.
func (s *Store) CreateFileUpload(ctx context.Context, file *models.File, upload *models.FileUpload, targets []string) error {
	now := nowSeconds()
	file.CreatedAt = now
	upload.FileID = file.FileID
	upload.UploadedSize = 0
	upload.Status = "uploading"
	upload.UpdatedAt = now

	seen := make(map[string]struct{}, len(targets))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		if err := tx.Create(upload).Error; err != nil {
			return err
		}
		for _, userID := range targets {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			target := &models.FileTarget{
				FileID: file.FileID,
				UserID: userID,
			}
			if err := tx.Create(target).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFile retrieves a file record by id.
func (s *Store) GetFile(ctx context.Context, fileID string) (*models.File, error) {
	return getByField[models.File](s.db, ctx, "file_id", fileID, models.ErrFileNotFound)
}

// GetUpload retrieves the in-flight upload row for a file, or
// models.ErrUploadNotFound once the upload has been finalized or never
// existed.
func (s *Store) GetUpload(ctx context.Context, fileID string) (*models.FileUpload, error) {
	return getByField[models.FileUpload](s.db, ctx, "file_id", fileID, models.ErrUploadNotFound)
}

// IsUploading reports whether a file still has an in-flight upload row.
func (s *Store) IsUploading(ctx context.Context, fileID string) (bool, error) {
	return existsByFields[models.FileUpload](s.db, ctx, "file_id = ?", fileID)
}

// SetUploadedSize records the new uploaded byte count for an upload.
func (s *Store) SetUploadedSize(ctx context.Context, fileID string, size int64) error {
	result := s.db.WithContext(ctx).
		Model(&models.FileUpload{}).
		Where("file_id = ?", fileID).
		Updates(map[string]any{
			"uploaded_size": size,
			"updated_at":    nowSeconds(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrUploadNotFound
	}
	return nil
}

// DeleteUpload removes the in-flight upload row, marking the file as
// fully uploaded and downloadable.
func (s *Store) DeleteUpload(ctx context.Context, fileID string) error {
	return deleteByField[models.FileUpload](s.db, ctx, "file_id", fileID, models.ErrUploadNotFound)
}

// HasFileTarget reports whether a user is in a file's target set.
func (s *Store) HasFileTarget(ctx context.Context, fileID, userID string) (bool, error) {
	return existsByFields[models.FileTarget](s.db, ctx, "file_id = ? AND user_id = ?", fileID, userID)
}

// FileTargetIDs returns the user ids in a file's target set.
func (s *Store) FileTargetIDs(ctx context.Context, fileID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.FileTarget{}).
		Where("file_id = ?", fileID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchUndeliveredFiles returns up to limit finalized files whose notice
// is still pending delivery to the user, oldest first. Files with an
// in-flight upload row are excluded until finalize.
func (s *Store) FetchUndeliveredFiles(ctx context.Context, userID string, limit int) ([]*models.File, error) {
	var files []*models.File
	err := s.db.WithContext(ctx).
		Model(&models.File{}).
		Joins("JOIN file_targets ON file_targets.file_id = files.file_id").
		Joins("LEFT JOIN file_uploads ON file_uploads.file_id = files.file_id").
		Where("file_targets.user_id = ? AND file_targets.delivered_at IS NULL AND file_uploads.file_id IS NULL", userID).
		Order("files.created_at ASC").
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, err
	}
	return files, nil
}

// MarkFilesDelivered stamps the file-notice delivery rows for the given
// user and file ids with the current time, in one transaction.
func (s *Store) MarkFilesDelivered(ctx context.Context, userID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	deliveredAt := nowSeconds()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range fileIDs {
			if err := tx.Model(&models.FileTarget{}).
				Where("user_id = ? AND file_id = ?", userID, id).
				Update("delivered_at", deliveredAt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
