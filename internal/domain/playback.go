package domain

import "time"

type PlaybackStatus string

const (
	StatusIdle    PlaybackStatus = "idle"
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
)

// Playback is the room-wide playback state. Elapsed is client-reported.
type Playback struct {
	Status    PlaybackStatus `json:"status"`
	SongID    SongID         `json:"song_id,omitempty"`
	Index     int            `json:"index"`
	Elapsed   float64        `json:"elapsed"`
	UpdatedAt time.Time      `json:"updated_at"`
}
