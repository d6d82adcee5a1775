package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/songroom/internal/domain"
)

var ErrUnknownCommand = errors.New("unknown playback command")

type PlaybackCommand struct {
	Kind    string        `json:"type"`
	SongID  domain.SongID `json:"song_id,omitempty"`
	Elapsed float64       `json:"elapsed,omitempty"`
}

// Playback runs a player command against the room.
func (o *Orchestrator) Playback(actor domain.UserID, id domain.RoomID, cmd PlaybackCommand) error {
	room, err := o.room(actor, id)
	if err != nil {
		return err
	}
	switch cmd.Kind {
	case "play":
		return room.Play(actor, cmd.SongID)
	case "pause":
		return room.Pause(actor)
	case "resume":
		return room.Resume(actor)
	case "advance":
		return room.Advance(actor)
	case "seek":
		return room.Seek(actor, cmd.Elapsed)
	case "complete":
		return room.Complete(actor, cmd.SongID)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
}
