package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/protocol"
)

// readBufferSize is the scratch read size per syscall. Frames larger
// than this accumulate across reads in the protocol buffer.
const readBufferSize = 32 * 1024

// Connection is one accepted client socket. A reader goroutine decodes
// frames and runs handlers to completion in arrival order; a writer
// goroutine drains the write queue. Everything other goroutines may
// touch (the queue, the socket close) is safe for concurrent use;
// userID and nickname belong to the reader goroutine alone.
type Connection struct {
	server     *Server
	conn       net.Conn
	remoteAddr string
	queue      *writeQueue
	logCtx     *logger.LogContext

	// Set by handleLogin, read only on the reader goroutine.
	userID   string
	nickname string

	closeOnce sync.Once
}

func newConnection(s *Server, conn net.Conn) *Connection {
	addr := conn.RemoteAddr().String()
	return &Connection{
		server:     s,
		conn:       conn,
		remoteAddr: addr,
		queue:      newWriteQueue(int64(s.config.WriteQueueMax)),
		logCtx:     logger.NewLogContext(addr),
	}
}

// serve runs the connection to completion: spawns the writer, then
// reads and dispatches frames until EOF, a protocol error, or shutdown.
func (c *Connection) serve(ctx context.Context) {
	defer c.teardown()

	go c.writeLoop()

	ctx = logger.WithContext(ctx, c.logCtx)
	logger.DebugCtx(ctx, "client connected")

	var buf protocol.Buffer
	scratch := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(scratch)
		if n > 0 {
			buf.Write(scratch[:n])
			for {
				pkt, perr := buf.Next()
				if perr != nil {
					logger.WarnCtx(ctx, "protocol error", "error", perr)
					return
				}
				if pkt == nil {
					break
				}
				c.dispatch(ctx, pkt)
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.DebugCtx(ctx, "client disconnected")
			case c.server.shuttingDown():
				logger.DebugCtx(ctx, "closing connection for shutdown")
			default:
				logger.WarnCtx(ctx, "read error", "error", err)
			}
			return
		}
	}
}

// teardown runs once when the reader goroutine exits. Ordering matters:
// the session must be gone before the roster broadcast, and the queue
// must be closed before the socket so the writer stops cleanly.
func (c *Connection) teardown() {
	wasLoggedIn := c.server.sessions.remove(c)
	c.close()
	c.server.releaseConnection(c)
	if wasLoggedIn {
		c.server.broadcastUserList()
	}
	c.server.observeGauges()
}

// close shuts the socket and the write queue. Safe from any goroutine;
// closing the socket also unblocks the reader.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.queue.close()
		c.conn.Close()
	})
}

// writeLoop drains the queue to the socket until the queue closes or a
// write fails.
func (c *Connection) writeLoop() {
	for {
		frames, closed := c.queue.take()
		for _, frame := range frames {
			if _, err := c.conn.Write(frame); err != nil {
				c.close()
				return
			}
		}
		if len(frames) == 0 {
			if closed {
				return
			}
			<-c.queue.signal
		}
	}
}

// send encodes and queues one outbound frame, reporting whether the
// frame made it onto the queue. Overflow of the write queue drops the
// connection; callers must not mark a delivery as done unless send
// returns true, so undelivered messages surface again at the next
// login.
func (c *Connection) send(pkt *protocol.Packet) bool {
	frame, err := protocol.Encode(pkt)
	if err != nil {
		logger.Warn("encode outbound frame", "remote_addr", c.remoteAddr, "type", pkt.Type.String(), "error", err)
		return false
	}
	switch err := c.queue.push(frame); {
	case err == nil:
		return true
	case errors.Is(err, errQueueOverflow):
		logger.Warn("write queue overflow, dropping connection",
			"remote_addr", c.remoteAddr, "cap_bytes", int64(c.server.config.WriteQueueMax))
		if c.server.metrics != nil {
			c.server.metrics.RecordWriteQueueOverflow()
		}
		c.close()
	default:
		// Queue closed: the connection is already going away.
	}
	return false
}

// reply sends a response frame echoing the request id.
func (c *Connection) reply(requestID uint64, t protocol.PacketType, meta []byte) {
	c.send(&protocol.Packet{Type: t, RequestID: requestID, Meta: meta})
}

// interruptRead forces a pending blocking read to return so the reader
// goroutine can observe shutdown.
func (c *Connection) interruptRead() {
	c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
}
