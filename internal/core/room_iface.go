package core

import (
	"context"

	"github.com/dkeye/songroom/internal/domain"
)

// RecordStore is the durable write-through target of a room.
// A failed call makes the room roll back the mutation it belongs to.
type RecordStore interface {
	InsertSong(ctx context.Context, s domain.Song) error
	DeleteSong(ctx context.Context, id domain.SongID) error
	UpsertProfile(ctx context.Context, p domain.Profile) error
}

// Snapshot is an immutable point-in-time view of a room. Do not modify it.
type Snapshot struct {
	Room         domain.Room          `json:"room"`
	Songs        []domain.Song        `json:"songs"`
	Playback     domain.Playback      `json:"playback"`
	Participants []domain.Participant `json:"participants"`
	Version      uint64               `json:"version"`
	// Epoch changes whenever the session is rebuilt, e.g. after a restart.
	// Versions are only comparable within one epoch.
	Epoch string `json:"epoch"`
}

// NewSong is what an uploader supplies once the bytes are stored.
type NewSong struct {
	ID          domain.SongID
	Locator     domain.Locator
	URL         string
	FileName    string
	DisplayName string
}

// RoomService is the core-facing API of one room session.
// Every mutation is serialized per room; reads never block on writers.
type RoomService interface {
	Room() *domain.Room
	Snapshot() *Snapshot
	Participants() []domain.Participant
	CanAccept(u domain.UserID) bool
	Admitted(u domain.UserID) bool

	AddSong(ctx context.Context, actor domain.UserID, s NewSong) (domain.Song, error)
	RemoveSong(ctx context.Context, actor domain.UserID, id domain.SongID) (domain.Song, error)
	Rename(ctx context.Context, actor domain.UserID, name string) error
	Admit(ctx context.Context, actor domain.UserID, name string) error

	Play(actor domain.UserID, id domain.SongID) error
	Pause(actor domain.UserID) error
	Resume(actor domain.UserID) error
	Advance(actor domain.UserID) error
	Seek(actor domain.UserID, elapsed float64) error
	Complete(actor domain.UserID, id domain.SongID) error

	// Load seeds the session from durable records. Call before serving.
	Load(songs []domain.Song, profiles []domain.Profile)
}

type RoomInfo struct {
	ID           domain.RoomID   `json:"id"`
	Name         domain.RoomName `json:"name"`
	Code         domain.RoomCode `json:"code"`
	SongCount    int             `json:"song_count"`
	Participants int             `json:"participant_count"`
}
