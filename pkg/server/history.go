package server

import (
	"context"
	"encoding/json"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

// handleHistoryFetch pages a conversation backward from a cursor.
// Group history requires membership; private history is scoped to the
// two participants, so the requester only ever sees their own threads.
func (c *Connection) handleHistoryFetch(ctx context.Context, r *request) {
	var meta struct {
		ConversationType string `json:"conversation_type"`
		ConversationID   string `json:"conversation_id"`
		BeforeMessageID  int64  `json:"before_message_id"`
		Limit            int    `json:"limit"`
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

	limit := meta.Limit
	if limit <= 0 || limit > c.server.config.HistoryPageSize {
		limit = c.server.config.HistoryPageSize
	}

	var (
		messages []*models.Message
		next     int64
		err      error
	)
	switch meta.ConversationType {
	case models.ConversationPrivate:
		messages, next, err = c.server.store.FetchPrivateHistory(ctx, c.userID, meta.ConversationID, meta.BeforeMessageID, limit)
	case models.ConversationGroup:
		if _, roleErr := c.server.store.GetMemberRole(ctx, meta.ConversationID, c.userID); roleErr != nil {
			r.fail(r.pkt.Type, errorCode(roleErr, "NOT_IN_GROUP"), roleErr.Error())
			return
		}
		messages, next, err = c.server.store.FetchHistory(ctx, meta.ConversationType, meta.ConversationID, meta.BeforeMessageID, limit)
	default:
		r.fail(r.pkt.Type, "INVALID_CONVERSATION_TYPE", "use private or group")
		return
	}
	if err != nil {
		r.fail(r.pkt.Type, "HISTORY_FAILED", err.Error())
		return
	}

	if messages == nil {
		messages = []*models.Message{}
	}
	r.ok(protocol.TypeHistoryResponse, extra{
		"messages":               messages,
		"next_before_message_id": next,
	})
}
