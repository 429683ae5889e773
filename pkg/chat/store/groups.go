package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// CreateGroup creates a group and its owner membership row in one
// transaction. The group id is generated server-side.
func (s *Store) CreateGroup(ctx context.Context, name, ownerID string) (*models.Group, error) {
	group := &models.Group{
		GroupID:   newID(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: nowSeconds(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		member := &models.GroupMember{
			GroupID:  group.GroupID,
			UserID:   ownerID,
			Role:     models.RoleOwner,
			JoinedAt: group.CreatedAt,
		}
		return tx.Create(member).Error
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetGroup retrieves a group by id.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getByField[models.Group](s.db, ctx, "group_id", groupID, models.ErrGroupNotFound)
}

// GroupExists reports whether a group id exists.
func (s *Store) GroupExists(ctx context.Context, groupID string) (bool, error) {
	return existsByFields[models.Group](s.db, ctx, "group_id = ?", groupID)
}

// GetMemberRole returns the role of a user inside a group, or
// models.ErrNotGroupMember when the user is not a member.
func (s *Store) GetMemberRole(ctx context.Context, groupID, userID string) (models.GroupRole, error) {
	var member models.GroupMember
	err := s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		First(&member).Error
	if err != nil {
		return "", convertNotFoundError(err, models.ErrNotGroupMember)
	}
	return member.Role, nil
}

// GroupMemberIDs returns the user ids of all members of a group.
func (s *Store) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// JoinGroup adds a user to a group with the member role.
func (s *Store) JoinGroup(ctx context.Context, groupID, userID string) error {
	exists, err := s.GroupExists(ctx, groupID)
	if err != nil {
		return err
	}
	if !exists {
		return models.ErrGroupNotFound
	}

	member := &models.GroupMember{
		GroupID:  groupID,
		UserID:   userID,
		Role:     models.RoleMember,
		JoinedAt: nowSeconds(),
	}
	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrAlreadyMember
		}
		return err
	}
	return nil
}

// LeaveGroup removes a user from a group. Owners cannot leave; they
// must dissolve the group instead.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID string) error {
	role, err := s.GetMemberRole(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if role == models.RoleOwner {
		return models.ErrOwnerCannotLeave
	}

	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}).Error
}

// RenameGroup changes a group's name. Requires the owner or admin role.
func (s *Store) RenameGroup(ctx context.Context, groupID, actorID, newName string) error {
	role, err := s.GetMemberRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoleOwner && role != models.RoleAdmin {
		return models.ErrPermissionDenied
	}

	result := s.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("group_id = ?", groupID).
		Update("name", newName)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrGroupNotFound
	}
	return nil
}

// KickMember removes another member from a group. The actor must be the
// owner or an admin; owners cannot be kicked and admins cannot kick
// other admins.
func (s *Store) KickMember(ctx context.Context, groupID, actorID, targetID string) error {
	actorRole, err := s.GetMemberRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actorRole != models.RoleOwner && actorRole != models.RoleAdmin {
		return models.ErrPermissionDenied
	}

	targetRole, err := s.GetMemberRole(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if targetRole == models.RoleOwner {
		return models.ErrCannotKickOwner
	}
	if actorRole == models.RoleAdmin && targetRole == models.RoleAdmin {
		return models.ErrAdminKickAdmin
	}

	return s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, targetID).
		Delete(&models.GroupMember{}).Error
}

// DissolveGroup deletes a group and everything hanging off it: the
// delivery rows of its messages, the messages, the memberships, and
// the group row, all in one transaction. Owner only.
func (s *Store) DissolveGroup(ctx context.Context, groupID, actorID string) error {
	role, err := s.GetMemberRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if role != models.RoleOwner {
		return models.ErrNotGroupOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("message_id IN (?)", tx.Model(&models.Message{}).
				Select("message_id").
				Where("conversation_type = ? AND conversation_id = ?", models.ConversationGroup, groupID)).
			Delete(&models.MessageTarget{}).Error; err != nil {
			return err
		}
		if err := tx.
			Where("conversation_type = ? AND conversation_id = ?", models.ConversationGroup, groupID).
			Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Where("group_id = ?", groupID).Delete(&models.Group{}).Error
	})
}

// SetAdmin promotes a member to admin or demotes an admin back to
// member. Owner only; the owner's own role is immutable.
func (s *Store) SetAdmin(ctx context.Context, groupID, actorID, targetID string, admin bool) error {
	actorRole, err := s.GetMemberRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actorRole != models.RoleOwner {
		return models.ErrNotGroupOwner
	}

	targetRole, err := s.GetMemberRole(ctx, groupID, targetID)
	if err != nil {
		return err
	}
	if targetRole == models.RoleOwner {
		return models.ErrCannotChangeOwner
	}

	newRole := models.RoleMember
	if admin {
		newRole = models.RoleAdmin
	}
	return s.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, targetID).
		Update("role", newRole).Error
}
