package server

import (
	"context"
	"encoding/json"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

func (c *Connection) handleRegister(ctx context.Context, r *request) {
	var meta struct {
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.UserID, "user_id", maxFieldLength); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_USER_ID", err.Error())
		return
	}
	if err := validateField(meta.Nickname, "nickname", maxFieldLength); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_NICKNAME", err.Error())
		return
	}
	if err := validateField(meta.Password, "password", maxFieldLength); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_PASSWORD", err.Error())
		return
	}

	user, err := c.server.store.RegisterUser(ctx, meta.UserID, meta.Nickname, meta.Password)
	if err != nil {
		r.fail(protocol.TypeAuthError, errorCode(err, "REGISTER_FAILED"), err.Error())
		return
	}

	logger.InfoCtx(ctx, "register ok", "user_id", user.UserID)
	r.ok(protocol.TypeAuthOk, extra{"registered": true, "logged_in": false})
}

func (c *Connection) handleLogin(ctx context.Context, r *request) {
	var meta struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.UserID, "user_id", maxFieldLength); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_USER_ID", err.Error())
		return
	}
	if err := validateField(meta.Password, "password", maxFieldLength); err != nil {
		r.fail(protocol.TypeAuthError, "INVALID_PASSWORD", err.Error())
		return
	}

	user, err := c.server.store.ValidateCredentials(ctx, meta.UserID, meta.Password)
	if err != nil {
		r.fail(protocol.TypeAuthError, "LOGIN_FAILED", err.Error())
		return
	}
	if err := c.server.sessions.login(c, user.UserID, user.Nickname); err != nil {
		r.fail(protocol.TypeAuthError, "LOGIN_FAILED", err.Error())
		return
	}
	c.userID = user.UserID
	c.nickname = user.Nickname
	c.logCtx = c.logCtx.WithUser(user.UserID)

	logger.InfoCtx(ctx, "login ok", "user_id", user.UserID)
	r.ok(protocol.TypeAuthOk, extra{
		"user_id":      user.UserID,
		"nickname":     user.Nickname,
		"registered":   false,
		"logged_in":    true,
		"online_users": c.server.sessions.onlineUsers(),
	})

	c.server.broadcastUserList()
	c.server.observeGauges()
	c.deliverOfflineMessages(ctx)
	c.deliverOfflineFiles(ctx)
}

// deliverOfflineMessages drains the message spool to a freshly
// logged-in connection in history_page_size batches, marking each
// batch delivered before fetching the next. A store failure or a dead
// connection aborts the drain; whatever was not marked surfaces again
// at the next login.
func (c *Connection) deliverOfflineMessages(ctx context.Context) {
	batch := c.server.config.HistoryPageSize
	if batch < 1 {
		batch = 1
	}
	for {
		messages, err := c.server.store.FetchUndeliveredMessages(ctx, c.userID, batch)
		if err != nil {
			logger.WarnCtx(ctx, "fetch offline messages failed", "error", err)
			return
		}
		if len(messages) == 0 {
			return
		}

		ids := make([]int64, 0, len(messages))
		stalled := false
		for _, msg := range messages {
			meta, err := json.Marshal(msg)
			if err != nil {
				logger.WarnCtx(ctx, "encode offline message", "message_id", msg.MessageID, "error", err)
				continue
			}
			if !c.send(&protocol.Packet{Type: protocol.TypeMessageDeliver, Meta: meta}) {
				// The connection is going away; whatever was not
				// queued stays in the spool.
				stalled = true
				break
			}
			ids = append(ids, msg.MessageID)
			if c.server.metrics != nil {
				c.server.metrics.RecordDelivery("message_spool")
			}
		}
		if len(ids) > 0 {
			if err := c.server.store.MarkMessagesDelivered(ctx, c.userID, ids); err != nil {
				logger.WarnCtx(ctx, "mark offline messages delivered failed", "error", err)
				return
			}
		}
		if stalled {
			return
		}
	}
}

// deliverOfflineFiles drains pending file notices the same way.
func (c *Connection) deliverOfflineFiles(ctx context.Context) {
	batch := c.server.config.HistoryPageSize
	if batch < 1 {
		batch = 1
	}
	for {
		files, err := c.server.store.FetchUndeliveredFiles(ctx, c.userID, batch)
		if err != nil {
			logger.WarnCtx(ctx, "fetch offline files failed", "error", err)
			return
		}
		if len(files) == 0 {
			return
		}

		ids := make([]string, 0, len(files))
		stalled := false
		for _, file := range files {
			meta, err := json.Marshal(file)
			if err != nil {
				logger.WarnCtx(ctx, "encode offline file notice", "file_id", file.FileID, "error", err)
				continue
			}
			if !c.send(&protocol.Packet{Type: protocol.TypeFileDone, Meta: meta}) {
				stalled = true
				break
			}
			ids = append(ids, file.FileID)
			if c.server.metrics != nil {
				c.server.metrics.RecordDelivery("file_notice_spool")
			}
		}
		if len(ids) > 0 {
			if err := c.server.store.MarkFilesDelivered(ctx, c.userID, ids); err != nil {
				logger.WarnCtx(ctx, "mark offline files delivered failed", "error", err)
				return
			}
		}
		if stalled {
			return
		}
	}
}
