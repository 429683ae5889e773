package models

// Conversation type discriminators used by messages and files.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Message is one stored chat message. For private conversations
// ConversationID is the recipient's user id; for groups it is the
// group id. The sender's nickname is denormalized at send time so
// deliveries do not depend on later nickname changes.
type Message struct {
	MessageID        int64  `gorm:"primaryKey;autoIncrement" json:"message_id"`
	ConversationType string `gorm:"not null;size:16;index:idx_messages_conversation" json:"conversation_type"`
	ConversationID   string `gorm:"not null;size:64;index:idx_messages_conversation" json:"conversation_id"`
	SenderID         string `gorm:"not null;size:64" json:"sender_id"`
	SenderNickname   string `gorm:"not null;size:64" json:"sender_nickname"`
	Content          string `gorm:"not null;size:4096" json:"content"`
	CreatedAt        int64  `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// MessageTarget is the per-recipient delivery row for a message.
// DeliveredAt stays NULL until the recipient has been handed the
// message over a live connection; undelivered rows form the offline
// spool drained at login.
type MessageTarget struct {
	MessageID   int64  `gorm:"primaryKey" json:"message_id"`
	UserID      string `gorm:"primaryKey;size:64;index:idx_message_targets_pending" json:"user_id"`
	DeliveredAt *int64 `gorm:"index:idx_message_targets_pending" json:"delivered_at,omitempty"`
}

// TableName returns the table name for MessageTarget.
func (MessageTarget) TableName() string {
	return "message_targets"
}
