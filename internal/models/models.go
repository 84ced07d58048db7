// Package models declares the persisted entities.
package models

// All returns one zero value of every entity, parents before children, in
// the order schema bootstrap creates their tables.
func All() []any {
	return []any{
		&User{},
		&Room{},
		&JoinLink{},
		&RoomMember{},
		&UserSession{},
		&Message{},
		&Attachment{},
		&PinnedMessage{},
		&Ban{},
	}
}

// Defaulter is implemented by entities whose zero value is not their
// default state.
type Defaulter interface {
	ApplyDefaults()
}

// Patchable is implemented by entities that restrict which columns an update
// may touch.
type Patchable interface {
	PatchableFields() []string
}
