package repository

import (
	"gorm.io/gorm"
)

// Set bundles the entity repositories bound to one session.
type Set struct {
	Users       *UserRepository
	Sessions    *UserSessionRepository
	Rooms       *RoomRepository
	Members     *RoomMemberRepository
	JoinLinks   *JoinLinkRepository
	Messages    *MessageRepository
	Attachments *AttachmentRepository
	Pins        *PinnedMessageRepository
	Bans        *BanRepository
}

// NewSet binds every entity repository to db with the same options.
// WithPrimaryKey names a column of one entity and is rejected here.
func NewSet(db *gorm.DB, opts ...Option) (*Set, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.pk != "" {
		return nil, &SchemaError{Entity: "Set", Field: o.pk, Reason: "primary key override applies to a single repository"}
	}

	var (
		s   Set
		err error
	)
	if s.Users, err = NewUserRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Sessions, err = NewUserSessionRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Rooms, err = NewRoomRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Members, err = NewRoomMemberRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.JoinLinks, err = NewJoinLinkRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Messages, err = NewMessageRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Attachments, err = NewAttachmentRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Pins, err = NewPinnedMessageRepository(db, opts...); err != nil {
		return nil, err
	}
	if s.Bans, err = NewBanRepository(db, opts...); err != nil {
		return nil, err
	}
	return &s, nil
}
