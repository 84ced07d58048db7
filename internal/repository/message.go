package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type MessageRepository struct {
	*Repository[models.Message]
}

func NewMessageRepository(db *gorm.DB, opts ...Option) (*MessageRepository, error) {
	base, err := New[models.Message](db, opts...)
	if err != nil {
		return nil, err
	}
	return &MessageRepository{Repository: base}, nil
}

// ListByRoom pages through a room's messages, newest first. Soft-deleted
// messages are included; callers decide how to render them.
func (r *MessageRepository) ListByRoom(ctx context.Context, roomID int64, page Page) ([]models.Message, error) {
	return r.List(ctx, Fields{"room_id": roomID}, ListOptions{Page: page, OrderBy: "created_at", Desc: true})
}

// GetReplies returns the direct replies to a message, oldest first.
func (r *MessageRepository) GetReplies(ctx context.Context, messageID int64) ([]models.Message, error) {
	return r.List(ctx, Fields{"reply_to": messageID}, ListOptions{OrderBy: "created_at"})
}

// SoftDelete flags the message as deleted and keeps the row.
func (r *MessageRepository) SoftDelete(ctx context.Context, id int64) (*models.Message, error) {
	return r.Update(ctx, id, Fields{"is_deleted": true})
}
