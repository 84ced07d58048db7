package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
	"github.com/Gopher0727/AltMur/pkg/utils"
)

type JoinLinkRepository struct {
	*Repository[models.JoinLink]
	newCode func() (string, error)
}

func NewJoinLinkRepository(db *gorm.DB, opts ...Option) (*JoinLinkRepository, error) {
	base, err := New[models.JoinLink](db, opts...)
	if err != nil {
		return nil, err
	}
	return &JoinLinkRepository{Repository: base, newCode: utils.GenerateJoinCode}, nil
}

func (r *JoinLinkRepository) GetByCode(ctx context.Context, code string) (*models.JoinLink, error) {
	return r.GetByField(ctx, "code", code)
}

func (r *JoinLinkRepository) ListByRoom(ctx context.Context, roomID int64) ([]models.JoinLink, error) {
	return r.List(ctx, Fields{"room_id": roomID}, ListOptions{})
}

// Issue creates a join link for the room with a fresh code. A ttl of zero
// issues a link that never expires.
func (r *JoinLinkRepository) Issue(ctx context.Context, roomID, creatorID int64, ttl time.Duration) (*models.JoinLink, error) {
	code, err := r.newCode()
	if err != nil {
		return nil, err
	}
	fields := Fields{"code": code, "room_id": roomID, "user_id": creatorID}
	if ttl > 0 {
		fields["expired_at"] = time.Now().Add(ttl)
	}
	return r.Create(ctx, fields)
}
