package notify

import "github.com/dkeye/songroom/internal/core"

const (
	FrameEvent    = "event"
	FrameSnapshot = "snapshot"
	FrameError    = "error"
	FramePong     = "pong"
)

// Frame is one server-to-client message on a room WebSocket.
type Frame struct {
	Type     string         `json:"type"`
	Event    *core.Event    `json:"event,omitempty"`
	Snapshot *core.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
	Cmd      string         `json:"cmd,omitempty"`
}
