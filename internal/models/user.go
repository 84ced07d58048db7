package models

import "time"

// User 用户模型
type User struct {
	ID int64 `gorm:"column:user_id;primaryKey" json:"user_id"`

	Username       string  `gorm:"column:username;type:varchar(50);uniqueIndex;not null" json:"username"`
	FirstName      string  `gorm:"column:first_name;type:varchar(50);not null" json:"first_name"`
	FamilyName     *string `gorm:"column:family_name;type:varchar(50)" json:"family_name,omitempty"`
	Email          *string `gorm:"column:email;type:varchar(100);uniqueIndex" json:"email,omitempty"`
	TelegramID     *int64  `gorm:"column:telegram_id;uniqueIndex" json:"telegram_id,omitempty"`
	AvatarURL      *string `gorm:"column:avatar_url;type:varchar(255)" json:"avatar_url,omitempty"`
	HashedPassword string  `gorm:"column:hashed_password;type:varchar(255);not null" json:"-"`
	IsAdmin        bool    `gorm:"column:is_admin;not null" json:"is_admin"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (User) PatchableFields() []string {
	return []string{"username", "first_name", "family_name", "email", "telegram_id", "avatar_url", "hashed_password", "is_admin"}
}

// UserSession 登录会话，随用户删除
type UserSession struct {
	ID int64 `gorm:"column:session_id;primaryKey" json:"session_id"`

	UserID       int64      `gorm:"column:user_id;not null;index" json:"user_id"`
	RefreshToken string     `gorm:"column:refresh_token;type:varchar(255);uniqueIndex;not null" json:"-"`
	UserAgent    *string    `gorm:"column:user_agent;type:varchar(255)" json:"user_agent,omitempty"`
	IPAddress    *string    `gorm:"column:ip_address;type:varchar(45)" json:"ip_address,omitempty"`
	IsActive     bool       `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	ExpiredAt    *time.Time `gorm:"column:expired_at" json:"expired_at,omitempty"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (s *UserSession) ApplyDefaults() {
	s.IsActive = true
}

func (UserSession) PatchableFields() []string {
	return []string{"refresh_token", "user_agent", "ip_address", "is_active", "expired_at"}
}
