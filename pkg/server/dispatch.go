package server

import (
	"context"
	"fmt"
	"time"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

// Field limits enforced before any service call.
const (
	maxFieldLength    = 64
	maxContentLength  = 4096
	maxFileNameLength = 255
	sha256HexLength   = 64
)

// validateField checks a required string field against its length cap.
func validateField(value, name string, max int) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	if len(value) > max {
		return fmt.Errorf("%s too long", name)
	}
	return nil
}

// request tracks one inbound frame through its handler. The last error
// code sent is recorded for the packet metrics.
type request struct {
	c    *Connection
	pkt  *protocol.Packet
	code string
}

// ok sends a success envelope with the given response type.
func (r *request) ok(t protocol.PacketType, ex extra) {
	r.code = ""
	r.c.reply(r.pkt.RequestID, t, okEnvelope(ex))
}

// fail sends an error envelope with the given response type.
func (r *request) fail(t protocol.PacketType, code, message string) {
	r.failExtra(t, code, message, nil)
}

func (r *request) failExtra(t protocol.PacketType, code, message string, ex extra) {
	r.code = code
	r.c.reply(r.pkt.RequestID, t, errorEnvelope(code, message, ex))
}

// dispatch routes one decoded frame to its handler. Runs on the reader
// goroutine; handlers complete before the next frame is looked at,
// which is what keeps per-connection processing in arrival order.
func (c *Connection) dispatch(ctx context.Context, pkt *protocol.Packet) {
	lc := c.logCtx.WithUser(c.userID).WithPacket(pkt.Type.String(), pkt.RequestID)
	lc.StartTime = time.Now()
	ctx = logger.WithContext(ctx, lc)

	r := &request{c: c, pkt: pkt}

	switch pkt.Type {
	case protocol.TypeAuthRegister:
		c.handleRegister(ctx, r)
	case protocol.TypeAuthLogin:
		c.handleLogin(ctx, r)
	case protocol.TypeGroupCreate,
		protocol.TypeGroupJoin,
		protocol.TypeGroupLeave,
		protocol.TypeGroupAdmin,
		protocol.TypeMessageSend,
		protocol.TypeHistoryFetch,
		protocol.TypeFileOffer,
		protocol.TypeFileUploadChunk,
		protocol.TypeFileUploadDone,
		protocol.TypeFileDownloadRequest:
		if c.userID == "" {
			r.fail(pkt.Type, "NOT_LOGGED_IN", "login required")
			break
		}
		c.dispatchAuthed(ctx, r)
	default:
		logger.WarnCtx(ctx, "unhandled packet type", "type", uint16(pkt.Type))
		return
	}

	if m := c.server.metrics; m != nil {
		m.RecordPacket(pkt.Type.String(), time.Since(lc.StartTime), r.code)
	}
	logger.DebugCtx(ctx, "packet handled", "code", r.code)
}

func (c *Connection) dispatchAuthed(ctx context.Context, r *request) {
	switch r.pkt.Type {
	case protocol.TypeGroupCreate:
		c.handleGroupCreate(ctx, r)
	case protocol.TypeGroupJoin:
		c.handleGroupJoin(ctx, r)
	case protocol.TypeGroupLeave:
		c.handleGroupLeave(ctx, r)
	case protocol.TypeGroupAdmin:
		c.handleGroupAdmin(ctx, r)
	case protocol.TypeMessageSend:
		c.handleMessageSend(ctx, r)
	case protocol.TypeHistoryFetch:
		c.handleHistoryFetch(ctx, r)
	case protocol.TypeFileOffer:
		c.handleFileOffer(ctx, r)
	case protocol.TypeFileUploadChunk:
		c.handleFileUploadChunk(ctx, r)
	case protocol.TypeFileUploadDone:
		c.handleFileUploadDone(ctx, r)
	case protocol.TypeFileDownloadRequest:
		c.handleFileDownloadRequest(ctx, r)
	}
}
