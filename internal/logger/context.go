package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds connection-scoped logging context. A connection gains
// a UserID after a successful login; Packet and RequestID are set per
// dispatched frame.
type LogContext struct {
	RemoteAddr string    // Client address as reported by the socket
	UserID     string    // Authenticated user, empty before login
	Packet     string    // Packet type name (AuthLogin, MessageSend, ...)
	RequestID  uint64    // Client-chosen request correlation id
	StartTime  time.Time // For duration calculation
}

// WithContext returns a new context carrying the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection
func NewLogContext(remoteAddr string) *LogContext {
	return &LogContext{
		RemoteAddr: remoteAddr,
		StartTime:  time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	cp := *lc
	return &cp
}

// WithUser returns a copy with the authenticated user set
func (lc *LogContext) WithUser(userID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UserID = userID
	}
	return clone
}

// WithPacket returns a copy with the packet type and request id set
func (lc *LogContext) WithPacket(packet string, requestID uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Packet = packet
		clone.RequestID = requestID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
