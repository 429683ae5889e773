package store

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// bcryptCost matches the work factor used for all stored password hashes.
const bcryptCost = 12

// RegisterUser creates a new account with a bcrypt password hash.
// Returns models.ErrDuplicateUser when the user id is already taken.
func (s *Store) RegisterUser(ctx context.Context, userID, nickname, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		UserID:       userID,
		Nickname:     nickname,
		PasswordHash: string(hash),
		CreatedAt:    nowSeconds(),
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, models.ErrDuplicateUser
		}
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return getByField[models.User](s.db, ctx, "user_id", userID, models.ErrUserNotFound)
}

// UserExists reports whether a user id is registered.
func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	return existsByFields[models.User](s.db, ctx, "user_id = ?", userID)
}

// ListUsers returns all registered users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := s.db.WithContext(ctx).Order("user_id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ValidateCredentials checks a user id and password pair.
// An unknown user id and a wrong password both return
// models.ErrInvalidCredentials so callers cannot distinguish them.
func (s *Store) ValidateCredentials(ctx context.Context, userID, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}
