// Package models defines the GORM entities and domain errors shared by
// the chat store and server layers. All timestamps are Unix seconds from
// the server clock; clients never supply times.
package models

// User is a registered account. UserID is the client-chosen identifier
// used on the wire; Nickname is the display name carried in deliveries.
type User struct {
	UserID       string `gorm:"primaryKey;size:64" json:"user_id"`
	Nickname     string `gorm:"not null;size:64" json:"nickname"`
	PasswordHash string `gorm:"not null" json:"-"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}
