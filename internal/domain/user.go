// Package domain contains entities and validation rules, no transport or storage logic
package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 30
)

type UserID string

// Participant is a user as seen by the other people in a room.
// Membership itself is never stored; see core.RoomService.Participants.
type Participant struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	IsAdmin     bool   `json:"is_admin"`
	SongCount   int    `json:"song_count"`
}

// Profile is a user's standing in one room: admitted once they joined with the
// secret, and the display name they chose there. DisplayName may be empty.
type Profile struct {
	RoomID      RoomID `json:"room_id"`
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
}

// NormalizeDisplayName trims the name and checks its length in characters.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrUsernameEmpty
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrUsernameTooLong
	}
	return name, nil
}

func (p *Profile) SetDisplayName(name string) error {
	n, err := NormalizeDisplayName(name)
	if err != nil {
		return err
	}
	p.DisplayName = n
	return nil
}

// ValidUserID reports whether id is usable as an actor identity.
func ValidUserID(id UserID) bool {
	return id != "" && len(id) <= MaxUserIDLen
}
