package domain

import "time"

type (
	SongID  string
	Locator string
)

// Song is one queued audio file. Position orders the queue and is never reused.
type Song struct {
	ID          SongID    `json:"id"`
	RoomID      RoomID    `json:"room_id"`
	UserID      UserID    `json:"user_id"`
	Locator     Locator   `json:"-"`
	URL         string    `json:"url"`
	FileName    string    `json:"file_name"`
	DisplayName string    `json:"display_name,omitempty"`
	Position    int64     `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

// Title is what listeners see: the override if set, the file name otherwise.
func (s Song) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.FileName
}
