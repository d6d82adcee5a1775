package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxRoomNameLen         = 50
	MinSecretLen           = 4
	RoomCodeLen            = 6
	RoomCodeAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	DefaultMaxSongsPerUser = 10
	DefaultSongsPerRound   = 1
)

type (
	RoomName string
	RoomID   string
	RoomCode string
)

// NormalizeCode upper-cases a user-typed join code.
func NormalizeCode(code string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Room is immutable once created.
type Room struct {
	ID              RoomID    `json:"id"`
	Name            RoomName  `json:"name"`
	AdminID         UserID    `json:"admin_id"`
	SecretHash      []byte    `json:"-"`
	MaxSongsPerUser int       `json:"max_songs_per_user"`
	SongsPerRound   int       `json:"songs_per_round"`
	Code            RoomCode  `json:"code"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r *Room) IsAdmin(id UserID) bool {
	return id != "" && r.AdminID == id
}

// RoomSpec is the caller-supplied part of a new room.
type RoomSpec struct {
	Name            string
	Secret          string
	MaxSongsPerUser int
	SongsPerRound   int
}

// Validate fills in defaults for zero limits and rejects the rest.
func (s *RoomSpec) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" || utf8.RuneCountInString(s.Name) > MaxRoomNameLen {
		return ErrRoomNameInvalid
	}
	if utf8.RuneCountInString(s.Secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	if s.MaxSongsPerUser == 0 {
		s.MaxSongsPerUser = DefaultMaxSongsPerUser
	}
	if s.SongsPerRound == 0 {
		s.SongsPerRound = DefaultSongsPerRound
	}
	if s.MaxSongsPerUser < 0 || s.SongsPerRound < 0 {
		return ErrInvalidLimit
	}
	return nil
}
