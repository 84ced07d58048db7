package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type RoomRepository struct {
	*Repository[models.Room]
}

func NewRoomRepository(db *gorm.DB, opts ...Option) (*RoomRepository, error) {
	base, err := New[models.Room](db, opts...)
	if err != nil {
		return nil, err
	}
	return &RoomRepository{Repository: base}, nil
}

// GetByUsername looks a room up by its public handle.
func (r *RoomRepository) GetByUsername(ctx context.Context, username string) (*models.Room, error) {
	return r.GetByField(ctx, "username", username)
}
