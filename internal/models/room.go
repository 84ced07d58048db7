package models

import "time"

// RoomRole is a member's role inside a room.
type RoomRole string

const (
	RoleOwner     RoomRole = "owner"
	RoleModerator RoomRole = "moderator"
	RoleMember    RoomRole = "member"
)

func (r RoomRole) Valid() bool {
	switch r {
	case RoleOwner, RoleModerator, RoleMember:
		return true
	}
	return false
}

// Room 聊天室
type Room struct {
	ID int64 `gorm:"column:room_id;primaryKey" json:"room_id"`

	Name        string  `gorm:"column:name;type:varchar(50);not null" json:"name"`
	IsPrivate   bool    `gorm:"column:is_private;not null" json:"is_private"`
	Description *string `gorm:"column:description;type:varchar(150)" json:"description,omitempty"`
	AvatarURL   *string `gorm:"column:avatar_url;type:varchar(255)" json:"avatar_url,omitempty"`
	Username    *string `gorm:"column:username;type:varchar(50);uniqueIndex" json:"username,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

func (r *Room) ApplyDefaults() {
	r.IsPrivate = true
}

func (Room) PatchableFields() []string {
	return []string{"name", "is_private", "description", "avatar_url", "username"}
}

// RoomMember links one user to one room with a role. LinkID records the
// join link used, if any.
type RoomMember struct {
	ID int64 `gorm:"column:member_id;primaryKey" json:"member_id"`

	UserID   int64     `gorm:"column:user_id;not null;index" json:"user_id"`
	RoomID   int64     `gorm:"column:room_id;not null;index" json:"room_id"`
	Role     RoomRole  `gorm:"column:role;type:varchar(16);not null" json:"role"`
	JoinedAt time.Time `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LinkID   *int64    `gorm:"column:link_id;index" json:"link_id,omitempty"`

	User *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Room *Room     `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	Link *JoinLink `gorm:"foreignKey:LinkID;constraint:OnDelete:SET NULL" json:"-"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

func (m *RoomMember) ApplyDefaults() {
	m.Role = RoleMember
}

func (RoomMember) PatchableFields() []string {
	return []string{"role", "link_id"}
}

// JoinLink 邀请链接
type JoinLink struct {
	ID int64 `gorm:"column:link_id;primaryKey" json:"link_id"`

	Code   string `gorm:"column:code;type:varchar(32);uniqueIndex;not null" json:"code"`
	RoomID int64  `gorm:"column:room_id;not null;index" json:"room_id"`
	UserID int64  `gorm:"column:user_id;not null;index" json:"user_id"`

	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`
	ExpiredAt *time.Time `gorm:"column:expired_at" json:"expired_at,omitempty"`

	Room    *Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	Creator *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (JoinLink) TableName() string {
	return "join_links"
}

func (JoinLink) PatchableFields() []string {
	return []string{"code", "expired_at"}
}

// Expired reports whether the link has an expiry at or before now.
func (l *JoinLink) Expired(now time.Time) bool {
	return l.ExpiredAt != nil && !l.ExpiredAt.After(now)
}
