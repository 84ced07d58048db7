package models

import "time"

// Message 消息。ReplyTo 指向被回复的消息，回复列表通过查询得到。
type Message struct {
	ID int64 `gorm:"column:message_id;primaryKey" json:"message_id"`

	UserID    int64   `gorm:"column:user_id;not null;index" json:"user_id"`
	RoomID    int64   `gorm:"column:room_id;not null;index" json:"room_id"`
	ReplyTo   *int64  `gorm:"column:reply_to;index" json:"reply_to,omitempty"`
	Body      *string `gorm:"column:message;type:varchar(4096)" json:"message,omitempty"`
	IsDeleted bool    `gorm:"column:is_deleted;not null" json:"is_deleted"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	User   *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Room   *Room    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
	Parent *Message `gorm:"foreignKey:ReplyTo;constraint:OnDelete:SET NULL" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (Message) PatchableFields() []string {
	return []string{"message", "is_deleted"}
}

type Attachment struct {
	ID int64 `gorm:"column:attachment_id;primaryKey" json:"attachment_id"`

	MessageID int64   `gorm:"column:message_id;not null;index" json:"message_id"`
	URL       string  `gorm:"column:url;type:varchar(255);not null" json:"url"`
	FileName  *string `gorm:"column:file_name;type:varchar(255)" json:"file_name,omitempty"`
	FileSize  *int64  `gorm:"column:file_size" json:"file_size,omitempty"`
	MimeType  *string `gorm:"column:mime_type;type:varchar(100)" json:"mime_type,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	Message *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (Attachment) PatchableFields() []string {
	return []string{"url", "file_name", "file_size", "mime_type"}
}

// PinnedMessage pins a message within a room. Pins are immutable.
type PinnedMessage struct {
	ID int64 `gorm:"column:pin_id;primaryKey" json:"pin_id"`

	MessageID int64     `gorm:"column:message_id;not null;index" json:"message_id"`
	RoomID    int64     `gorm:"column:room_id;not null;index" json:"room_id"`
	PinnedAt  time.Time `gorm:"column:pinned_at;autoCreateTime" json:"pinned_at"`

	Message *Message `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE" json:"-"`
	Room    *Room    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}

func (PinnedMessage) TableName() string {
	return "pinned_messages"
}

func (PinnedMessage) PatchableFields() []string {
	return []string{}
}
