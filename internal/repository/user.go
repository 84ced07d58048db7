package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type UserRepository struct {
	*Repository[models.User]
}

func NewUserRepository(db *gorm.DB, opts ...Option) (*UserRepository, error) {
	base, err := New[models.User](db, opts...)
	if err != nil {
		return nil, err
	}
	return &UserRepository{Repository: base}, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.GetByField(ctx, "email", email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.GetByField(ctx, "username", username)
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.GetByField(ctx, "telegram_id", telegramID)
}
