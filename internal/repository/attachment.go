package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type AttachmentRepository struct {
	*Repository[models.Attachment]
}

func NewAttachmentRepository(db *gorm.DB, opts ...Option) (*AttachmentRepository, error) {
	base, err := New[models.Attachment](db, opts...)
	if err != nil {
		return nil, err
	}
	return &AttachmentRepository{Repository: base}, nil
}

func (r *AttachmentRepository) ListByMessage(ctx context.Context, messageID int64) ([]models.Attachment, error) {
	return r.List(ctx, Fields{"message_id": messageID}, ListOptions{})
}
