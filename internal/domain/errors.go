package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrQuotaExceeded   = errors.New("song quota exceeded")
	ErrRoomNotFound    = errors.New("room not found")
	ErrSongNotFound    = errors.New("song not found")
	ErrInvalidState    = errors.New("invalid playback state")

	ErrInvalidSecret    = fmt.Errorf("%w: invalid room secret", ErrNotAuthorized)
	ErrNotJoined        = fmt.Errorf("%w: join the room first", ErrNotAuthorized)
	ErrUnsupportedMedia = errors.New("unsupported media type")

	ErrUsernameTooLong    = errors.New("display name too long")
	ErrUsernameEmpty      = errors.New("display name empty")
	ErrRoomNameInvalid    = errors.New("room name must be 1-50 characters")
	ErrSecretTooShort     = errors.New("room secret too short")
	ErrInvalidLimit       = errors.New("song limits must be positive")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique room code")
)

// IsValidation reports whether err is caused by bad client input.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrUsernameTooLong, ErrUsernameEmpty, ErrRoomNameInvalid,
		ErrSecretTooShort, ErrInvalidLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ErrCodeTaken is returned by stores when a room code is already in use.
var ErrCodeTaken = errors.New("room code taken")
