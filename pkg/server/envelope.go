package server

import (
	"encoding/json"
	"errors"

	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
)

// extra is the free-form part of a response envelope, merged into the
// metadata object alongside status/code/message.
type extra map[string]any

// envelope builds the JSON metadata for a response frame. Empty
// status/code/message fields are omitted; extra keys are merged at the
// top level of the same object.
func envelope(status, code, message string, ex extra) []byte {
	meta := make(map[string]any, 3+len(ex))
	if status != "" {
		meta["status"] = status
	}
	if code != "" {
		meta["code"] = code
	}
	if message != "" {
		meta["message"] = message
	}
	for k, v := range ex {
		meta[k] = v
	}
	b, err := json.Marshal(meta)
	if err != nil {
		// Only reachable with a non-marshalable value in extra, which
		// would be a programming error.
		return []byte(`{"status":"error","code":"INTERNAL","message":"encode response"}`)
	}
	return b
}

func okEnvelope(ex extra) []byte {
	return envelope("ok", "", "", ex)
}

func errorEnvelope(code, message string, ex extra) []byte {
	return envelope("error", code, message, ex)
}

// errorCode maps a domain error to a semantic wire code, falling back
// to the operation-level code for anything unrecognized (store failures,
// IO errors).
func errorCode(err error, fallback string) string {
	switch {
	case errors.Is(err, models.ErrPermissionDenied),
		errors.Is(err, models.ErrNotGroupOwner),
		errors.Is(err, models.ErrOwnerCannotLeave),
		errors.Is(err, models.ErrCannotKickOwner),
		errors.Is(err, models.ErrAdminKickAdmin),
		errors.Is(err, models.ErrCannotChangeOwner):
		return "PERMISSION_DENIED"
	case errors.Is(err, models.ErrNotGroupMember):
		return "NOT_IN_GROUP"
	case errors.Is(err, models.ErrGroupNotFound):
		return "GROUP_NOT_FOUND"
	case errors.Is(err, models.ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, models.ErrDuplicateUser):
		return "USER_ALREADY_EXISTS"
	default:
		return fallback
	}
}
