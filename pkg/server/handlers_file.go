package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/chat/models"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
	"github.com/onlinetalk/onlinetalk/pkg/transfer"
)

func (c *Connection) handleFileOffer(ctx context.Context, r *request) {
	var meta struct {
		ConversationType string `json:"conversation_type"`
		ConversationID   string `json:"conversation_id"`
		FileName         string `json:"file_name"`
		FileSize         int64  `json:"file_size"`
		Sha256           string `json:"sha256"`
		FileID           string `json:"file_id"`
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
	if err := validateField(meta.FileName, "file_name", maxFileNameLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_REQUEST", err.Error())
		return
	}
	// Exact-length check so over-long digests also report INVALID_SHA256
	// rather than tripping the generic field cap.
	if len(meta.Sha256) != sha256HexLength {
		r.fail(r.pkt.Type, "INVALID_SHA256", "sha256 length invalid")
		return
	}
	if meta.FileSize <= 0 {
		r.fail(r.pkt.Type, "INVALID_SIZE", "file_size must be positive")
		return
	}

	recipients, ok := c.resolveFileTargets(ctx, r, meta.ConversationType, meta.ConversationID)
	if !ok {
		return
	}

	var (
		state *transfer.UploadState
		err   error
	)
	if meta.FileID != "" {
		state, err = c.server.transfers.ResumeUpload(ctx, meta.FileID, c.userID)
		if err != nil {
			r.fail(r.pkt.Type, "RESUME_FAILED", err.Error())
			return
		}
	} else {
		state, err = c.server.transfers.CreateUpload(ctx, &transfer.Offer{
			UploaderID:       c.userID,
			UploaderNickname: c.nickname,
			ConversationType: meta.ConversationType,
			ConversationID:   meta.ConversationID,
			FileName:         meta.FileName,
			FileSize:         meta.FileSize,
			Sha256:           meta.Sha256,
			Recipients:       recipients,
		})
		if err != nil {
			r.fail(r.pkt.Type, "OFFER_FAILED", err.Error())
			return
		}
		logger.InfoCtx(ctx, "upload created", "file_id", state.File.FileID, "file_size", meta.FileSize)
	}

	r.ok(protocol.TypeFileAccept, extra{
		"file_id":     state.File.FileID,
		"next_offset": state.UploadedSize,
		"chunk_size":  c.server.transfers.ChunkSize(),
	})
}

// resolveFileTargets maps a conversation to its file target set. Unlike
// message recipients, group file targets include the uploader, so the
// uploader keeps download access to their own file.
func (c *Connection) resolveFileTargets(ctx context.Context, r *request, convType, convID string) ([]string, bool) {
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
		return members, true

	default:
		r.fail(r.pkt.Type, "INVALID_CONVERSATION_TYPE", "use private or group")
		return nil, false
	}
}

func (c *Connection) handleFileUploadChunk(ctx context.Context, r *request) {
	var meta struct {
		FileID string `json:"file_id"`
		Offset int64  `json:"offset"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.FileID, "file_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_FILE_ID", err.Error())
		return
	}
	if len(r.pkt.Binary) == 0 {
		r.fail(r.pkt.Type, "EMPTY_CHUNK", "chunk is empty")
		return
	}
	if len(r.pkt.Binary) > c.server.transfers.ChunkSize() {
		r.fail(r.pkt.Type, "CHUNK_TOO_LARGE", "chunk too large")
		return
	}

	state, err := c.server.transfers.AppendChunk(ctx, meta.FileID, c.userID, meta.Offset, r.pkt.Binary)
	if err != nil {
		// On an offset mismatch tell the uploader where to resume from.
		if errors.Is(err, models.ErrOffsetMismatch) {
			if resumed, rerr := c.server.transfers.ResumeUpload(ctx, meta.FileID, c.userID); rerr == nil {
				r.failExtra(r.pkt.Type, "UPLOAD_FAILED", err.Error(), extra{"expected_offset": resumed.UploadedSize})
				return
			}
		}
		r.fail(r.pkt.Type, "UPLOAD_FAILED", err.Error())
		return
	}

	if c.server.metrics != nil {
		c.server.metrics.RecordUploadBytes(uint64(len(r.pkt.Binary)))
	}
	r.ok(r.pkt.Type, extra{"next_offset": state.UploadedSize})
}

func (c *Connection) handleFileUploadDone(ctx context.Context, r *request) {
	var meta struct {
		FileID string `json:"file_id"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.FileID, "file_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_FILE_ID", err.Error())
		return
	}

	file, err := c.server.transfers.FinalizeUpload(ctx, meta.FileID, c.userID)
	if err != nil {
		r.fail(r.pkt.Type, "FINALIZE_FAILED", err.Error())
		return
	}

	logger.InfoCtx(ctx, "upload finalized", "file_id", file.FileID, "file_name", file.FileName)
	r.ok(protocol.TypeFileDone, extra{
		"file_id":           file.FileID,
		"conversation_type": file.ConversationType,
		"conversation_id":   file.ConversationID,
		"file_name":         file.FileName,
		"file_size":         file.FileSize,
		"sha256":            file.Sha256,
		"uploader_id":       file.UploaderID,
		"uploader_nickname": file.UploaderNickname,
		"created_at":        file.CreatedAt,
	})

	c.server.fanoutFileNotice(ctx, file)
}

// fanoutFileNotice pushes the finalized-file notice to every target
// with a live session. The uploader's own target row (group uploads
// include it) is marked delivered without a send; the uploader already
// has the ack.
func (s *Server) fanoutFileNotice(ctx context.Context, file *models.File) {
	targets, err := s.store.FileTargetIDs(ctx, file.FileID)
	if err != nil {
		logger.WarnCtx(ctx, "list file targets failed", "file_id", file.FileID, "error", err)
		return
	}

	meta, err := json.Marshal(file)
	if err != nil {
		logger.WarnCtx(ctx, "encode file notice", "file_id", file.FileID, "error", err)
		return
	}

	for _, userID := range targets {
		if userID == file.UploaderID {
			if err := s.store.MarkFilesDelivered(ctx, userID, []string{file.FileID}); err != nil {
				logger.WarnCtx(ctx, "mark file delivered failed", "file_id", file.FileID, "user_id", userID, "error", err)
			}
			continue
		}
		rc := s.sessions.lookup(userID)
		if rc == nil {
			continue
		}
		if !rc.send(&protocol.Packet{Type: protocol.TypeFileDone, Meta: meta}) {
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordDelivery("file_notice_live")
		}
		if err := s.store.MarkFilesDelivered(ctx, userID, []string{file.FileID}); err != nil {
			logger.WarnCtx(ctx, "mark file delivered failed", "file_id", file.FileID, "user_id", userID, "error", err)
		}
	}
}

func (c *Connection) handleFileDownloadRequest(ctx context.Context, r *request) {
	var meta struct {
		FileID string `json:"file_id"`
		Offset int64  `json:"offset"`
	}
	if err := json.Unmarshal(r.pkt.Meta, &meta); err != nil {
		r.fail(r.pkt.Type, "INVALID_JSON", err.Error())
		return
	}

	if err := validateField(meta.FileID, "file_id", maxFieldLength); err != nil {
		r.fail(r.pkt.Type, "INVALID_FILE_ID", err.Error())
		return
	}

	data, file, err := c.server.transfers.ReadChunk(ctx, meta.FileID, c.userID, meta.Offset)
	if err != nil {
		r.fail(r.pkt.Type, "DOWNLOAD_FAILED", err.Error())
		return
	}

	done := meta.Offset+int64(len(data)) >= file.FileSize
	respMeta, err := json.Marshal(map[string]any{
		"file_id":   file.FileID,
		"offset":    meta.Offset,
		"file_size": file.FileSize,
		"file_name": file.FileName,
		"sha256":    file.Sha256,
		"done":      done,
	})
	if err != nil {
		r.fail(r.pkt.Type, "DOWNLOAD_FAILED", err.Error())
		return
	}

	if c.server.metrics != nil {
		c.server.metrics.RecordDownloadBytes(uint64(len(data)))
	}
	c.send(&protocol.Packet{
		Type:      protocol.TypeFileDownloadChunk,
		RequestID: r.pkt.RequestID,
		Meta:      respMeta,
		Binary:    data,
	})
}
