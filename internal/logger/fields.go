package logger

// Standard field keys for structured logging. Use these consistently so
// logs stay queryable across the server, store, and transfer layers.
const (
	// Connection & dispatch
	KeyRemoteAddr = "remote_addr" // Client address (host:port)
	KeyUserID     = "user_id"     // Authenticated user id
	KeyNickname   = "nickname"    // Display name
	KeyPacket     = "packet"      // Packet type name
	KeyRequestID  = "request_id"  // Request correlation id
	KeyCode       = "code"        // Machine-readable error code

	// Conversations
	KeyGroupID          = "group_id"
	KeyConversationType = "conversation_type" // private or group
	KeyConversationID   = "conversation_id"
	KeyMessageID        = "message_id"
	KeyRecipients       = "recipients" // Fanout recipient count

	// File transfer
	KeyFileID   = "file_id"
	KeyFileName = "file_name"
	KeyOffset   = "offset"
	KeySize     = "size"
	KeySha256   = "sha256"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)
