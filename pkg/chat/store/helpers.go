package store

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Generic GORM helpers shared by the store implementation files. They
// are unexported and operate on the raw *gorm.DB so individual files
// stay free of CRUD boilerplate.

// getByField retrieves a single record of type T by matching field=value,
// converting gorm.ErrRecordNotFound to the provided domain error.
func getByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) (*T, error) {
	var result T
	if err := db.WithContext(ctx).Where(field+" = ?", value).First(&result).Error; err != nil {
		return nil, convertNotFoundError(err, notFoundErr)
	}
	return &result, nil
}

// existsByFields reports whether any record of type T matches the query.
func existsByFields[T any](db *gorm.DB, ctx context.Context, query string, args ...any) (bool, error) {
	var count int64
	var zero T
	if err := db.WithContext(ctx).Model(&zero).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// deleteByField deletes records of type T matching field=value.
// Returns notFoundErr if no rows were affected.
func deleteByField[T any](db *gorm.DB, ctx context.Context, field string, value any, notFoundErr error) error {
	var zero T
	result := db.WithContext(ctx).Where(field+" = ?", value).Delete(&zero)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return notFoundErr
	}
	return nil
}

// newID returns a fresh 32-character lowercase hex identifier, used for
// group and file ids.
func newID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
