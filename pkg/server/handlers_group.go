package server

import (
	"context"
	"encoding/json"

	"github.com/onlinetalk/onlinetalk/internal/logger"
)

// groupMeta covers all four group operations; unused fields stay empty.
type groupMeta struct {
	GroupID  string `json:"group_id"`
	Name     string `json:"name"`
	Action   string `json:"action"`
	TargetID string `json:"target_user_id"`
}

func (c *Connection) handleGroupCreate(ctx context.Context, r *request) {
	var meta groupMeta
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}
	if err := validateField(meta.Name, "name", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_NAME", err.Error())
		return
	}

	group, err := c.server.store.CreateGroup(ctx, meta.Name, c.userID)
	if err != nil {
		r.fail(r.pkt.Type, errorCode(err, "CREATE_FAILED"), err.Error())
		return
	}

	logger.InfoCtx(ctx, "group created", "group_id", group.GroupID, "name", group.Name)
	r.ok(r.pkt.Type, extra{"group_id": group.GroupID, "name": group.Name})
}

func (c *Connection) handleGroupJoin(ctx context.Context, r *request) {
	var meta groupMeta
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}
	if err := validateField(meta.GroupID, "group_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_GROUP_ID", err.Error())
		return
	}

	if err := c.server.store.JoinGroup(ctx, meta.GroupID, c.userID); err != nil {
		r.fail(r.pkt.Type, errorCode(err, "JOIN_FAILED"), err.Error())
		return
	}
	r.ok(r.pkt.Type, nil)
}

func (c *Connection) handleGroupLeave(ctx context.Context, r *request) {
	var meta groupMeta
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}
	if err := validateField(meta.GroupID, "group_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_GROUP_ID", err.Error())
		return
	}

	if err := c.server.store.LeaveGroup(ctx, meta.GroupID, c.userID); err != nil {
		r.fail(r.pkt.Type, errorCode(err, "LEAVE_FAILED"), err.Error())
		return
	}
	r.ok(r.pkt.Type, nil)
}

func (c *Connection) handleGroupAdmin(ctx context.Context, r *request) {
	var meta groupMeta
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}
	if err := validateField(meta.Action, "action", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}
	if err := validateField(meta.GroupID, "group_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}

	switch meta.Action {
	case "rename":
		if err := validateField(meta.Name, "name", maxFieldLength); err != nil {
			r.fail(r.pkt.Type, "INVALID_NAME", err.Error())
			return
		}
		if err := c.server.store.RenameGroup(ctx, meta.GroupID, c.userID, meta.Name); err != nil {
			r.fail(r.pkt.Type, errorCode(err, "RENAME_FAILED"), err.Error())
			return
		}
		r.ok(r.pkt.Type, nil)

	case "kick":
		if err := validateField(meta.TargetID, "target_user_id", maxFieldLength); err != nil {
			r.fail(r.pkt.Type, "INVALID_TARGET", err.Error())
			return
		}
		if err := c.server.store.KickMember(ctx, meta.GroupID, c.userID, meta.TargetID); err != nil {
			r.fail(r.pkt.Type, errorCode(err, "KICK_FAILED"), err.Error())
			return
		}
		r.ok(r.pkt.Type, nil)

	case "dissolve":
		if err := c.server.store.DissolveGroup(ctx, meta.GroupID, c.userID); err != nil {
			r.fail(r.pkt.Type, errorCode(err, "DISSOLVE_FAILED"), err.Error())
			return
		}
		logger.InfoCtx(ctx, "group dissolved", "group_id", meta.GroupID)
		r.ok(r.pkt.Type, nil)

	case "promote", "demote":
		if err := validateField(meta.TargetID, "target_user_id", maxFieldLength); err != nil {
			r.fail(r.pkt.Type, "INVALID_TARGET", err.Error())
			return
		}
		promote := meta.Action == "promote"
		if err := c.server.store.SetAdmin(ctx, meta.GroupID, c.userID, meta.TargetID, promote); err != nil {
			r.fail(r.pkt.Type, errorCode(err, "ADMIN_FAILED"), err.Error())
			return
		}
		r.ok(r.pkt.Type, nil)

	default:
		r.fail(r.pkt.Type, "UNKNOWN_ACTION", "unsupported action")
	}
}
