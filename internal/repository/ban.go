package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type BanRepository struct {
	*Repository[models.Ban]
	now func() time.Time
}

func NewBanRepository(db *gorm.DB, opts ...Option) (*BanRepository, error) {
	base, err := New[models.Ban](db, opts...)
	if err != nil {
		return nil, err
	}
	return &BanRepository{Repository: base, now: time.Now}, nil
}

// ListActiveForUser returns the bans in effect for the user, room bans and
// platform bans alike.
func (r *BanRepository) ListActiveForUser(ctx context.Context, userID int64) ([]models.Ban, error) {
	bans, err := r.List(ctx, Fields{"banned_user_id": userID, "is_active": true}, ListOptions{})
	if err != nil {
		return nil, err
	}
	return r.inEffect(bans), nil
}

// GetActiveRoomBan returns the ban in effect keeping the user out of the
// room, or nil. Platform bans are not considered.
func (r *BanRepository) GetActiveRoomBan(ctx context.Context, userID, roomID int64) (*models.Ban, error) {
	bans, err := r.List(ctx, Fields{"banned_user_id": userID, "room_id": roomID, "is_active": true}, ListOptions{})
	if err != nil {
		return nil, err
	}
	return firstOf(r.inEffect(bans)), nil
}

// GetActivePlatformBan returns the platform-wide ban in effect for the user,
// or nil.
func (r *BanRepository) GetActivePlatformBan(ctx context.Context, userID int64) (*models.Ban, error) {
	bans, err := r.List(ctx, Fields{"banned_user_id": userID, "room_id": nil, "is_active": true}, ListOptions{})
	if err != nil {
		return nil, err
	}
	return firstOf(r.inEffect(bans)), nil
}

// Lift deactivates the ban. It returns nil when no ban has that id.
func (r *BanRepository) Lift(ctx context.Context, id int64) (*models.Ban, error) {
	return r.Update(ctx, id, Fields{"is_active": false})
}

func (r *BanRepository) inEffect(bans []models.Ban) []models.Ban {
	now := r.now()
	active := bans[:0]
	for _, b := range bans {
		if b.InEffect(now) {
			active = append(active, b)
		}
	}
	return active
}

func firstOf[T any](rows []T) *T {
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}
