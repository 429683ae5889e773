package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// StoreMessage persists a message together with one delivery row per
// recipient in a single transaction. Recipients are deduplicated; the
// delivery rows start undelivered.
func (s *Store) StoreMessage(ctx context.Context, msg *models.Message, recipients []string) (*models.Message, error) {
	msg.CreatedAt = nowSeconds()

	seen := make(map[string]struct{}, len(recipients))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		for _, userID := range recipients {
			if _, dup := seen[userID]; dup {
				continue
			}
			seen[userID] = struct{}{}
			target := &models.MessageTarget{
				MessageID: msg.MessageID,
				UserID:    userID,
			}
			if err := tx.Create(target).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// FetchUndeliveredMessages returns up to limit messages still pending
// delivery to the user, oldest first.
func (s *Store) FetchUndeliveredMessages(ctx context.Context, userID string, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN message_targets ON message_targets.message_id = messages.message_id").
		Where("message_targets.user_id = ? AND message_targets.delivered_at IS NULL", userID).
		Order("messages.message_id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkMessagesDelivered stamps the delivery rows for the given user and
// message ids with the current time, in one transaction.
func (s *Store) MarkMessagesDelivered(ctx context.Context, userID string, messageIDs []int64) error {
	if len(messageIDs) == 0 {
		return nil
	}
	deliveredAt := nowSeconds()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range messageIDs {
			if err := tx.Model(&models.MessageTarget{}).
				Where("user_id = ? AND message_id = ?", userID, id).
				Update("delivered_at", deliveredAt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FetchPrivateHistory pages the two-way private conversation between
// userID and peerID backward from before (exclusive). Private messages
// are keyed by recipient, so the thread spans both directions; scoping
// by sender keeps other conversations with the same recipient out.
// Paging semantics match FetchHistory.
func (s *Store) FetchPrivateHistory(ctx context.Context, userID, peerID string, before int64, limit int) ([]*models.Message, int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_type = ?", models.ConversationPrivate).
		Where("(conversation_id = ? AND sender_id = ?) OR (conversation_id = ? AND sender_id = ?)",
			peerID, userID, userID, peerID)
	if before > 0 {
		q = q.Where("message_id < ?", before)
	}

	var messages []*models.Message
	if err := q.Order("message_id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	var nextBefore int64
	if len(messages) == limit && limit > 0 {
		nextBefore = messages[0].MessageID
	}
	return messages, nextBefore, nil
}

// FetchHistory pages a conversation backward from before (exclusive).
// A before of 0 means "from the newest message". The returned slice is
// in ascending message id order; nextBefore is the smallest id returned,
// or 0 when the page was not full and older history is exhausted.
func (s *Store) FetchHistory(ctx context.Context, conversationType, conversationID string, before int64, limit int) ([]*models.Message, int64, error) {
	q := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_type = ? AND conversation_id = ?", conversationType, conversationID)
	if before > 0 {
		q = q.Where("message_id < ?", before)
	}

	var messages []*models.Message
	if err := q.Order("message_id DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	// Reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	var nextBefore int64
	if len(messages) == limit && limit > 0 {
		nextBefore = messages[0].MessageID
	}
	return messages, nextBefore, nil
}
