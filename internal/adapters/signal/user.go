package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/domain"
)

func (ctl *SignalWSController) handleRename(s *wsSession, data []byte) {
	var p struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad rename payload")
		ctl.sendError(s, "rename", "bad_payload")
		return
	}
	if err := ctl.Orch.Rename(context.Background(), s.actor, s.room, p.Name); err != nil {
		ctl.replyErr(s, "rename", err)
		return
	}
	ctl.handleWhoAmI(s)
}

func (ctl *SignalWSController) handleWhoAmI(s *wsSession) {
	resp := struct {
		Type        string          `json:"type"`
		UserID      domain.UserID   `json:"user_id"`
		DisplayName string          `json:"display_name,omitempty"`
		Room        domain.RoomID   `json:"room"`
		RoomName    domain.RoomName `json:"room_name,omitempty"`
		IsAdmin     bool            `json:"is_admin"`
	}{
		Type:   "whoami",
		UserID: s.actor,
		Room:   s.room,
	}
	if snap, err := ctl.Orch.Snapshot(s.actor, s.room); err == nil {
		resp.RoomName = snap.Room.Name
		resp.IsAdmin = snap.Room.IsAdmin(s.actor)
		for _, p := range snap.Participants {
			if p.ID == s.actor {
				resp.DisplayName = p.DisplayName
			}
		}
	}
	ctl.sendJSON(s.conn, resp)
}
