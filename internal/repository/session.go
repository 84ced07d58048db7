package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

// UserSessionRepository manages login sessions. Deactivation is a soft
// delete: the row stays with is_active = false.
type UserSessionRepository struct {
	*Repository[models.UserSession]
}

func NewUserSessionRepository(db *gorm.DB, opts ...Option) (*UserSessionRepository, error) {
	base, err := New[models.UserSession](db, opts...)
	if err != nil {
		return nil, err
	}
	return &UserSessionRepository{Repository: base}, nil
}

func (r *UserSessionRepository) GetByRefreshToken(ctx context.Context, token string) (*models.UserSession, error) {
	return r.GetByField(ctx, "refresh_token", token)
}

// GetByUserID returns every session of the user, active or not.
func (r *UserSessionRepository) GetByUserID(ctx context.Context, userID int64) ([]models.UserSession, error) {
	return r.GetByFields(ctx, Fields{"user_id": userID})
}

func (r *UserSessionRepository) GetActiveByUserID(ctx context.Context, userID int64) ([]models.UserSession, error) {
	return r.List(ctx, Fields{"user_id": userID, "is_active": true}, ListOptions{})
}

// Deactivate marks the session inactive. It returns nil when no session has
// that id.
func (r *UserSessionRepository) Deactivate(ctx context.Context, id int64) (*models.UserSession, error) {
	return r.Update(ctx, id, Fields{"is_active": false})
}
