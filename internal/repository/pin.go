package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type PinnedMessageRepository struct {
	*Repository[models.PinnedMessage]
}

func NewPinnedMessageRepository(db *gorm.DB, opts ...Option) (*PinnedMessageRepository, error) {
	base, err := New[models.PinnedMessage](db, opts...)
	if err != nil {
		return nil, err
	}
	return &PinnedMessageRepository{Repository: base}, nil
}

// ListByRoom returns the room's pins, most recently pinned first.
func (r *PinnedMessageRepository) ListByRoom(ctx context.Context, roomID int64) ([]models.PinnedMessage, error) {
	return r.List(ctx, Fields{"room_id": roomID}, ListOptions{OrderBy: "pinned_at", Desc: true})
}

func (r *PinnedMessageRepository) GetPin(ctx context.Context, roomID, messageID int64) (*models.PinnedMessage, error) {
	pins, err := r.List(ctx, Fields{"room_id": roomID, "message_id": messageID}, ListOptions{Page: Page{Limit: 1}})
	if err != nil || len(pins) == 0 {
		return nil, err
	}
	return &pins[0], nil
}
