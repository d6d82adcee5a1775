package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/domain"
)

func (ctl *SignalWSController) handlePlayback(s *wsSession, data []byte) {
	var cmd orch.PlaybackCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad playback payload")
		ctl.sendError(s, "", "bad_payload")
		return
	}
	if err := ctl.Orch.Playback(s.actor, s.room, cmd); err != nil {
		ctl.replyErr(s, cmd.Kind, err)
	}
}

func (ctl *SignalWSController) handleDelete(s *wsSession, data []byte) {
	var p struct {
		SongID domain.SongID `json:"song_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.SongID == "" {
		ctl.sendError(s, "delete", "bad_payload")
		return
	}
	if err := ctl.Orch.DeleteSong(context.Background(), s.actor, s.room, p.SongID); err != nil {
		ctl.replyErr(s, "delete", err)
	}
}
