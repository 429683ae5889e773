package metrics

import (
	"time"
)

// ChatMetrics provides observability for the chat server.
//
// This interface is optional - pass nil to disable metrics collection
// with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	m := prometheus.NewChatMetrics()
//	srv := server.New(cfg, st, tm, m)
//
//	// Without metrics (pass nil for zero overhead)
//	srv := server.New(cfg, st, tm, nil)
type ChatMetrics interface {
	// RecordPacket records a completed inbound packet with its type name,
	// handling duration, and the error code sent back ("" on success).
	RecordPacket(packetType string, duration time.Duration, errorCode string)

	// RecordDelivery records an outbound server-initiated delivery.
	// kind is "message_live", "message_spool", "file_notice_live" or
	// "file_notice_spool".
	RecordDelivery(kind string)

	// RecordUploadBytes records chunk bytes received from uploaders.
	RecordUploadBytes(bytes uint64)

	// RecordDownloadBytes records chunk bytes served to downloaders.
	RecordDownloadBytes(bytes uint64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// SetOnlineUsers updates the current logged-in user count.
	SetOnlineUsers(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed increments the force-closed connections
	// counter. Called when connections are forcibly closed after the
	// shutdown timeout.
	RecordConnectionForceClosed()

	// RecordWriteQueueOverflow increments the counter of connections
	// dropped for exceeding their write queue cap.
	RecordWriteQueueOverflow()
}
