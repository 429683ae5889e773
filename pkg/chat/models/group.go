package models

// GroupRole is a member's role inside a group.
type GroupRole string

const (
	// RoleOwner is the group creator. Exactly one per group; owners
	// cannot leave or be kicked.
	RoleOwner GroupRole = "owner"
	// RoleAdmin can rename the group and kick regular members.
	RoleAdmin GroupRole = "admin"
	// RoleMember is a regular participant.
	RoleMember GroupRole = "member"
)

// IsValid checks if the role is a known GroupRole.
func (r GroupRole) IsValid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Group is a named conversation owned by its creator.
type Group struct {
	GroupID   string `gorm:"primaryKey;size:64" json:"group_id"`
	Name      string `gorm:"not null;size:64" json:"name"`
	OwnerID   string `gorm:"not null;size:64" json:"owner_id"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for Group.
func (Group) TableName() string {
	return "groups"
}

// GroupMember is one user's membership row in a group.
type GroupMember struct {
	GroupID  string    `gorm:"primaryKey;size:64" json:"group_id"`
	UserID   string    `gorm:"primaryKey;size:64;index" json:"user_id"`
	Role     GroupRole `gorm:"not null;size:16" json:"role"`
	JoinedAt int64     `gorm:"not null" json:"joined_at"`
}

// TableName returns the table name for GroupMember.
func (GroupMember) TableName() string {
	return "group_members"
}
