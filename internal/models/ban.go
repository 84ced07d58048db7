package models

import "time"

// Ban 封禁记录。RoomID 为空表示全平台封禁。
type Ban struct {
	ID int64 `gorm:"column:ban_id;primaryKey" json:"ban_id"`

	BannedUserID   int64      `gorm:"column:banned_user_id;not null;index" json:"banned_user_id"`
	BannedByUserID int64      `gorm:"column:banned_by_user_id;not null;index" json:"banned_by_user_id"`
	RoomID         *int64     `gorm:"column:room_id;index" json:"room_id,omitempty"`
	Reason         *string    `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	CreatedAt      time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiresAt      *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	IsActive       bool       `gorm:"column:is_active;not null" json:"is_active"`

	BannedUser *User `gorm:"foreignKey:BannedUserID;constraint:OnDelete:CASCADE" json:"-"`
	BannedBy   *User `gorm:"foreignKey:BannedByUserID;constraint:OnDelete:CASCADE" json:"-"`
	Room       *Room `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Ban) TableName() string {
	return "bans"
}

func (b *Ban) ApplyDefaults() {
	b.IsActive = true
}

func (Ban) PatchableFields() []string {
	return []string{"reason", "expires_at", "is_active"}
}

// InEffect reports whether the ban is active and not expired at now.
func (b *Ban) InEffect(now time.Time) bool {
	return b.IsActive && (b.ExpiresAt == nil || b.ExpiresAt.After(now))
}
