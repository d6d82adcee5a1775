package core

import (
	"time"

	"github.com/dkeye/songroom/internal/domain"
)

// PlaybackController is the room's single-writer playback state machine.
// Only the admin it was built with may issue commands.
// Like the queue, it relies on the owning room for serialization.
type PlaybackController struct {
	admin   domain.UserID
	status  domain.PlaybackStatus
	songID  domain.SongID
	elapsed float64
	updated time.Time
	now     func() time.Time
}

func NewPlaybackController(admin domain.UserID, now func() time.Time) *PlaybackController {
	if now == nil {
		now = time.Now
	}
	return &PlaybackController{admin: admin, status: domain.StatusIdle, now: now}
}

type playbackMark struct {
	status  domain.PlaybackStatus
	songID  domain.SongID
	elapsed float64
	updated time.Time
}

func (p *PlaybackController) mark() playbackMark {
	return playbackMark{p.status, p.songID, p.elapsed, p.updated}
}

func (p *PlaybackController) reset(m playbackMark) {
	p.status, p.songID, p.elapsed, p.updated = m.status, m.songID, m.elapsed, m.updated
}

func (p *PlaybackController) authorize(actor domain.UserID) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}
	if actor != p.admin {
		return domain.ErrNotAuthorized
	}
	return nil
}

func (p *PlaybackController) set(status domain.PlaybackStatus, id domain.SongID) {
	p.status = status
	p.songID = id
	p.elapsed = 0
	p.updated = p.now()
}

func (p *PlaybackController) Current() (domain.PlaybackStatus, domain.SongID) {
	return p.status, p.songID
}

// State renders the controller against q. Index is recomputed from live order.
func (p *PlaybackController) State(q *SongQueue) domain.Playback {
	idx := -1
	if p.songID != "" {
		idx = q.IndexOf(p.songID)
	}
	return domain.Playback{
		Status:    p.status,
		SongID:    p.songID,
		Index:     idx,
		Elapsed:   p.elapsed,
		UpdatedAt: p.updated,
	}
}

// Play starts id from any state.
func (p *PlaybackController) Play(actor domain.UserID, q *SongQueue, id domain.SongID) error {
	if err := p.authorize(actor); err != nil {
		return err
	}
	if _, ok := q.Get(id); !ok {
		return domain.ErrSongNotFound
	}
	p.set(domain.StatusPlaying, id)
	return nil
}

func (p *PlaybackController) Pause(actor domain.UserID) error {
	if err := p.authorize(actor); err != nil {
		return err
	}
	if p.status != domain.StatusPlaying {
		return domain.ErrInvalidState
	}
	p.status = domain.StatusPaused
	p.updated = p.now()
	return nil
}

func (p *PlaybackController) Resume(actor domain.UserID) error {
	if err := p.authorize(actor); err != nil {
		return err
	}
	if p.status != domain.StatusPaused {
		return domain.ErrInvalidState
	}
	p.status = domain.StatusPlaying
	p.updated = p.now()
	return nil
}

// Seek records the position the admin's player reports.
func (p *PlaybackController) Seek(actor domain.UserID, elapsed float64) error {
	if err := p.authorize(actor); err != nil {
		return err
	}
	if p.status == domain.StatusIdle || elapsed < 0 {
		return domain.ErrInvalidState
	}
	p.elapsed = elapsed
	p.updated = p.now()
	return nil
}

// Advance moves to the successor of the current song and plays it.
// From idle it starts the first song. It reports whether anything changed.
func (p *PlaybackController) Advance(actor domain.UserID, q *SongQueue) (bool, error) {
	if err := p.authorize(actor); err != nil {
		return false, err
	}
	return p.advance(q), nil
}

func (p *PlaybackController) advance(q *SongQueue) bool {
	next, ok := q.Successor(p.songID)
	if !ok {
		next, ok = q.First()
	}
	if !ok {
		if p.status == domain.StatusIdle {
			return false
		}
		p.set(domain.StatusIdle, "")
		return true
	}
	p.set(domain.StatusPlaying, next.ID)
	return true
}

// Complete handles a player reporting that id finished.
// Reports for anything but the song currently playing are stale and ignored.
func (p *PlaybackController) Complete(q *SongQueue, id domain.SongID) bool {
	if p.status != domain.StatusPlaying || p.songID != id {
		return false
	}
	return p.advance(q)
}

// SongDeleted reacts to id leaving the queue. before is the order prior to removal.
func (p *PlaybackController) SongDeleted(id domain.SongID, before []domain.Song) bool {
	if p.songID != id {
		return false
	}
	next, ok := successorIn(before, id)
	if !ok || next.ID == id {
		p.set(domain.StatusIdle, "")
		return true
	}
	status := p.status
	if status == domain.StatusIdle {
		status = domain.StatusPlaying
	}
	p.set(status, next.ID)
	return true
}

func (p *PlaybackController) RoomEmptied() bool {
	if p.status == domain.StatusIdle {
		return false
	}
	p.set(domain.StatusIdle, "")
	return true
}
