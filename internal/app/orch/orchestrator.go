// Package orch is the entry point for participant actions. It resolves the
// caller and the room, then hands off to the room session.
package orch

import (
	"context"
	"io"

	"github.com/dkeye/songroom/internal/app"
	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/notify"
)

// BlobStore keeps the audio bytes; the core only ever sees locators.
type BlobStore interface {
	Store(ctx context.Context, r io.Reader, fileName, contentType string) (domain.Locator, error)
	PublicURL(loc domain.Locator) string
	Delete(ctx context.Context, loc domain.Locator) error
}

type Orchestrator struct {
	Rooms *app.RoomRegistry
	Blobs BlobStore
	Hub   *notify.Hub
}

// room resolves id for actor. Only the admin and users who joined with the
// secret get through.
func (o *Orchestrator) room(actor domain.UserID, id domain.RoomID) (core.RoomService, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	room, err := o.Rooms.Get(id)
	if err != nil {
		return nil, err
	}
	if !room.Admitted(actor) {
		return nil, domain.ErrNotJoined
	}
	return room, nil
}

// ListRooms lists the rooms actor has joined.
func (o *Orchestrator) ListRooms(actor domain.UserID) ([]core.RoomInfo, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	return o.Rooms.List(actor), nil
}

func (o *Orchestrator) Snapshot(actor domain.UserID, id domain.RoomID) (*core.Snapshot, error) {
	room, err := o.room(actor, id)
	if err != nil {
		return nil, err
	}
	return room.Snapshot(), nil
}

// Subscribe registers for change events and returns the state to start from.
// The subscription is taken first so no change falls between the two.
func (o *Orchestrator) Subscribe(actor domain.UserID, id domain.RoomID) (*notify.Subscription, *core.Snapshot, error) {
	room, err := o.room(actor, id)
	if err != nil {
		return nil, nil, err
	}
	sub := o.Hub.Subscribe(id)
	return sub, room.Snapshot(), nil
}
