package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/internal/models"
)

type RoomMemberRepository struct {
	*Repository[models.RoomMember]
}

func NewRoomMemberRepository(db *gorm.DB, opts ...Option) (*RoomMemberRepository, error) {
	base, err := New[models.RoomMember](db, opts...)
	if err != nil {
		return nil, err
	}
	return &RoomMemberRepository{Repository: base}, nil
}

// GetMembership returns the user's membership in the room, the oldest one
// if duplicates exist.
func (r *RoomMemberRepository) GetMembership(ctx context.Context, userID, roomID int64) (*models.RoomMember, error) {
	members, err := r.List(ctx, Fields{"user_id": userID, "room_id": roomID}, ListOptions{Page: Page{Limit: 1}})
	if err != nil || len(members) == 0 {
		return nil, err
	}
	return &members[0], nil
}

func (r *RoomMemberRepository) ListByRoom(ctx context.Context, roomID int64) ([]models.RoomMember, error) {
	return r.List(ctx, Fields{"room_id": roomID}, ListOptions{OrderBy: "joined_at"})
}

func (r *RoomMemberRepository) ListByUser(ctx context.Context, userID int64) ([]models.RoomMember, error) {
	return r.List(ctx, Fields{"user_id": userID}, ListOptions{OrderBy: "joined_at"})
}

// Join adds the user to the room. linkID is the join link used, or nil.
// Whether a second membership of the same pair is rejected depends on the
// unique membership index.
func (r *RoomMemberRepository) Join(ctx context.Context, userID, roomID int64, role models.RoomRole, linkID *int64) (*models.RoomMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, &SchemaError{Entity: r.desc.Entity, Field: "role", Reason: "invalid role " + string(role)}
	}
	return r.Create(ctx, Fields{
		"user_id": userID,
		"room_id": roomID,
		"role":    role,
		"link_id": linkID,
	})
}
