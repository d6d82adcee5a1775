package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/app"
	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

// CreateRoom makes actor the admin of a new room and records their display name.
func (o *Orchestrator) CreateRoom(ctx context.Context, actor domain.UserID, spec domain.RoomSpec, displayName string) (*core.Snapshot, error) {
	if displayName != "" {
		if _, err := domain.NormalizeDisplayName(displayName); err != nil {
			return nil, err
		}
	}
	room, err := o.Rooms.Create(ctx, actor, spec)
	if err != nil {
		return nil, err
	}
	if displayName != "" {
		if err := room.Rename(ctx, actor, displayName); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("room_id", string(room.Room().ID)).Msg("set admin name")
		}
	}
	return room.Snapshot(), nil
}

// JoinRoom resolves a room by its code and admits actor once the secret
// checks out. Every other room operation requires that admission.
func (o *Orchestrator) JoinRoom(ctx context.Context, actor domain.UserID, code, secret, displayName string) (*core.Snapshot, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	room, err := o.Rooms.GetByCode(domain.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if err := app.CheckSecret(room.Room(), secret); err != nil {
		log.Info().Str("module", "orch").Str("user_id", string(actor)).Str("code", code).Msg("join refused")
		return nil, err
	}
	if err := room.Admit(ctx, actor, displayName); err != nil {
		return nil, err
	}
	log.Info().Str("module", "orch").Str("user_id", string(actor)).Str("room_id", string(room.Room().ID)).Msg("join")
	return room.Snapshot(), nil
}

func (o *Orchestrator) Rename(ctx context.Context, actor domain.UserID, id domain.RoomID, name string) error {
	room, err := o.room(actor, id)
	if err != nil {
		return err
	}
	return room.Rename(ctx, actor, name)
}
