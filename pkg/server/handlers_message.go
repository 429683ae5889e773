package server

import (
	"context"
	"encoding/json"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

func (c *Connection) handleMessageSend(ctx context.Context, r *request) {
	var meta struct {
		ConversationType string `json:"conversation_type"`
		ConversationID   string `json:"conversation_id"`
		Content          string `json:"content"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.ConversationType, "conversation_type", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}
	if err := validateField(meta.ConversationID, "conversation_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}
	if err := validateField(meta.Content, "content", maxContentLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}

	recipients, ok := c.resolveMessageRecipients(ctx, r, meta.ConversationType, meta.ConversationID)
	if !ok {
		return
	}

	msg := &models.Message{
		ConversationType: meta.ConversationType,
		ConversationID:   meta.ConversationID,
		SenderID:         c.userID,
		SenderNickname:   c.nickname,
		Content:          meta.Content,
	}
	stored, err := c.server.store.StoreMessage(ctx, msg, recipients)
	if err != nil {
		r.fail(r.pkt.Type, "STORE_FAILED", err.Error())
		return
	}

	r.ok(r.pkt.Type, extra{"message_id": stored.MessageID, "created_at": stored.CreatedAt})
	c.server.fanoutMessage(ctx, stored, recipients)
}

// resolveMessageRecipients maps a conversation to its delivery set. For
// private messages the single recipient is the target user; for group
// messages it is every member except the sender. Sends the error
// response itself and reports false when resolution fails.
func (c *Connection) resolveMessageRecipients(ctx context.Context, r *request, convType, convID string) ([]string, bool) {
	switch convType {
	case models.ConversationPrivate:
		exists, err := c.server.store.UserExists(ctx, convID)
		if err != nil {
			r.fail(r.pkt.Type, "USER_LOOKUP_FAILED", err.Error())
			return nil, false
		}
		if !exists {
			r.fail(r.pkt.Type, "TARGET_NOT_FOUND", "target user not found")
			return nil, false
		}
		return []string{convID}, true

	case models.ConversationGroup:
		if _, err := c.server.store.GetMemberRole(ctx, convID, c.userID); err != nil {
			r.fail(r.pkt.Type, errorCode(err, "NOT_IN_GROUP"), err.Error())
			return nil, false
		}
		members, err := c.server.store.GroupMemberIDs(ctx, convID)
		if err != nil {
			r.fail(r.pkt.Type, "GROUP_MEMBERS_FAILED", err.Error())
			return nil, false
		}
		recipients := make([]string, 0, len(members))
		for _, member := range members {
			if member != c.userID {
				recipients = append(recipients, member)
			}
		}
		if len(recipients) == 0 {
			r.fail(r.pkt.Type, "NO_RECIPIENTS", "no recipients available")
			return nil, false
		}
		return recipients, true

	default:
		r.fail(r.pkt.Type, "INVALID_CONVERSATION_TYPE", "use private or group")
		return nil, false
	}
}

// fanoutMessage delivers a stored message to every recipient with a
// live session and marks those copies delivered. Offline recipients
// keep their undelivered rows and drain them at next login.
func (s *Server) fanoutMessage(ctx context.Context, msg *models.Message, recipients []string) {
	meta, err := json.Marshal(msg)
	if err != nil {
		logger.WarnCtx(ctx, "encode message delivery", "message_id", msg.MessageID, "error", err)
		return
	}

	for _, userID := range recipients {
		rc := s.sessions.lookup(userID)
		if rc == nil {
			continue
		}
		// A frame that never made it onto the queue stays in the spool.
		if !rc.send(&protocol.Packet{Type: protocol.TypeMessageDeliver, Meta: meta}) {
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordDelivery("message_live")
		}
		if err := s.store.MarkMessagesDelivered(ctx, userID, []int64{msg.MessageID}); err != nil {
			logger.WarnCtx(ctx, "mark message delivered failed", "message_id", msg.MessageID, "user_id", userID, "error", err)
		}
	}
}
