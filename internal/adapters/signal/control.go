package signal

import "github.com/dkeye/songroom/internal/notify"

func (ctl *SignalWSController) handlePing(s *wsSession) {
	ctl.sendJSON(s.conn, notify.Frame{Type: notify.FramePong})
}

// handleSnapshot answers an explicit pull with the current state.
func (ctl *SignalWSController) handleSnapshot(s *wsSession) {
	snap, err := ctl.Orch.Snapshot(s.actor, s.room)
	if err != nil {
		ctl.replyErr(s, "snapshot", err)
		return
	}
	ctl.sendSnapshot(s, snap)
}
