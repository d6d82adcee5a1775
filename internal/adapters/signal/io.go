package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/adapters"
	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/notify"
)

func (ctl *SignalWSController) writePump(ctx context.Context, s *wsSession) {
	ping := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ping.Stop()
		s.cancel()
	}()
	c := s.conn
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("user_id", string(s.actor)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteTimeout)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("ping failed")
				return
			}
		}
	}
}

// eventPump forwards room events and pushes a full snapshot every
// reconcile interval so a client that missed events converges anyway.
func (ctl *SignalWSController) eventPump(ctx context.Context, s *wsSession) {
	reconcile := time.NewTicker(ctl.opts.ReconcileInterval)
	defer func() {
		reconcile.Stop()
		s.cancel()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-s.sub.C:
			if !ok {
				log.Info().Str("module", "signal").Str("user_id", string(s.actor)).Str("room_id", string(s.room)).Msg("subscription dropped")
				return
			}
			ctl.sendJSON(s.conn, notify.Frame{Type: notify.FrameEvent, Event: &e})
		case <-reconcile.C:
			snap, err := ctl.Orch.Snapshot(s.actor, s.room)
			if err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("room_id", string(s.room)).Msg("reconcile snapshot")
				continue
			}
			ctl.sendSnapshot(s, snap)
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, s *wsSession) {
	defer func() {
		log.Info().Str("module", "signal").Str("user_id", string(s.actor)).Str("room_id", string(s.room)).Msg("readPump closing")
		s.cancel()
		s.sub.Close()
		s.conn.Close()
	}()

	c := s.conn.conn
	pongWait := ctl.opts.PingPeriod * 10 / 9
	_ = c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("user_id", string(s.actor)).Msg("readPump read error")
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleSignal(s, data)
	}
}

func (ctl *SignalWSController) handleSignal(s *wsSession, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(s, "", "bad_payload")
		return
	}
	if env.Type != "ping" && ctl.Limiter != nil && !ctl.Limiter.Allow(s.room, s.actor) {
		ctl.sendError(s, env.Type, "rate_limited")
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(s)
	case "snapshot":
		ctl.handleSnapshot(s)
	case "whoami":
		ctl.handleWhoAmI(s)
	case "rename":
		ctl.handleRename(s, data)
	case "play", "pause", "resume", "advance", "seek", "complete":
		ctl.handlePlayback(s, data)
	case "delete":
		ctl.handleDelete(s, data)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(s, env.Type, "unknown_command")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("frame dropped")
	}
}

func (ctl *SignalWSController) sendSnapshot(s *wsSession, snap *core.Snapshot) {
	ctl.sendJSON(s.conn, notify.Frame{Type: notify.FrameSnapshot, Snapshot: snap})
}

func (ctl *SignalWSController) sendError(s *wsSession, cmd, code string) {
	ctl.sendJSON(s.conn, notify.Frame{Type: notify.FrameError, Cmd: cmd, Error: code})
}

func (ctl *SignalWSController) replyErr(s *wsSession, cmd string, err error) {
	_, code := adapters.Classify(err)
	log.Info().Err(err).Str("module", "signal").Str("user_id", string(s.actor)).Str("cmd", cmd).Msg("command refused")
	ctl.sendError(s, cmd, code)
}
