package orch

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

type Upload struct {
	Body        io.Reader
	FileName    string
	ContentType string
	DisplayName string
}

// Upload stores the bytes, then queues the song. The quota is checked before
// the bytes are written and again when queuing; a late rejection deletes the object.
func (o *Orchestrator) Upload(ctx context.Context, actor domain.UserID, id domain.RoomID, up Upload) (domain.Song, error) {
	room, err := o.room(actor, id)
	if err != nil {
		return domain.Song{}, err
	}
	if !room.CanAccept(actor) {
		return domain.Song{}, domain.ErrQuotaExceeded
	}

	loc, err := o.Blobs.Store(ctx, up.Body, up.FileName, up.ContentType)
	if err != nil {
		return domain.Song{}, err
	}
	song, err := room.AddSong(ctx, actor, core.NewSong{
		Locator:     loc,
		URL:         o.Blobs.PublicURL(loc),
		FileName:    up.FileName,
		DisplayName: strings.TrimSpace(up.DisplayName),
	})
	if err != nil {
		o.dropObject(loc)
		return domain.Song{}, err
	}
	return song, nil
}

func (o *Orchestrator) DeleteSong(ctx context.Context, actor domain.UserID, id domain.RoomID, songID domain.SongID) error {
	room, err := o.room(actor, id)
	if err != nil {
		return err
	}
	song, err := room.RemoveSong(ctx, actor, songID)
	if err != nil {
		return err
	}
	o.dropObject(song.Locator)
	return nil
}

func (o *Orchestrator) dropObject(loc domain.Locator) {
	if err := o.Blobs.Delete(context.Background(), loc); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("locator", string(loc)).Msg("object not deleted")
	}
}
