package core

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/domain"
)

type EventKind string

const (
	EventSongAdded          EventKind = "song_added"
	EventSongRemoved        EventKind = "song_removed"
	EventPlaybackChanged    EventKind = "playback_changed"
	EventParticipantUpdated EventKind = "participant_updated"
)

// Event tells subscribers that a room changed. Version is the room version
// right after this change; a gap means the receiver missed something.
// Epoch is the session incarnation that produced it.
type Event struct {
	RoomID  domain.RoomID   `json:"room_id"`
	Kind    EventKind       `json:"kind"`
	Version uint64          `json:"version"`
	Epoch   string          `json:"epoch"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SongAddedPayload struct {
	Song domain.Song `json:"song"`
}

type SongRemovedPayload struct {
	SongID    domain.SongID `json:"song_id"`
	RemovedBy domain.UserID `json:"removed_by"`
}

type ParticipantPayload struct {
	Participant domain.Participant `json:"participant"`
	Member      bool               `json:"member"`
}

func NewEvent(room domain.RoomID, kind EventKind, version uint64, at time.Time, payload any) Event {
	e := Event{RoomID: room, Kind: kind, Version: version, At: at}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("module", "core.events").Str("kind", string(kind)).Msg("marshal payload")
		}
		e.Payload = b
	}
	return e
}

// Publisher delivers events best-effort. Publish must not block.
type Publisher interface {
	Publish(e Event)
}

type PublisherFunc func(e Event)

func (f PublisherFunc) Publish(e Event) { f(e) }
