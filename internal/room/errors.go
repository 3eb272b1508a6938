package room

import "errors"

var (
	ErrPasswordMismatch = errors.New("password_mismatch")
	ErrRoomFull         = errors.New("room_full")
	ErrNotMember        = errors.New("not a member of this room")
	ErrPermissionDenied = errors.New("permission_denied")
	ErrRoomClosed       = errors.New("room closed")
	ErrNoMedia          = errors.New("no media selected")
)
