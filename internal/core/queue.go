package core

import (
	"slices"

	"github.com/samber/lo"

	"github.com/dkeye/songroom/internal/domain"
)

// SongQueue keeps songs in ascending position order.
// Positions come from a counter that only grows, so deletions leave gaps.
type SongQueue struct {
	songs   []domain.Song
	nextPos int64
}

func NewSongQueue() *SongQueue {
	return &SongQueue{}
}

// Append assigns the next position to s and stores it at the tail.
func (q *SongQueue) Append(s domain.Song) domain.Song {
	s.Position = q.nextPos
	q.nextPos++
	q.songs = append(q.songs, s)
	return s
}

// Load puts back a song that already has a position, e.g. from the store.
func (q *SongQueue) Load(s domain.Song) {
	q.Restore(s)
	if s.Position >= q.nextPos {
		q.nextPos = s.Position + 1
	}
}

// Restore re-inserts a removed song at its old position.
func (q *SongQueue) Restore(s domain.Song) {
	i, _ := slices.BinarySearchFunc(q.songs, s.Position, func(e domain.Song, pos int64) int {
		switch {
		case e.Position < pos:
			return -1
		case e.Position > pos:
			return 1
		}
		return 0
	})
	q.songs = slices.Insert(q.songs, i, s)
}

func (q *SongQueue) Remove(id domain.SongID) (domain.Song, bool) {
	i := q.indexOf(id)
	if i < 0 {
		return domain.Song{}, false
	}
	s := q.songs[i]
	q.songs = slices.Delete(q.songs, i, i+1)
	return s, true
}

// Unappend drops the tail song and releases its position. Only valid right after Append.
func (q *SongQueue) Unappend(id domain.SongID) {
	n := len(q.songs)
	if n == 0 || q.songs[n-1].ID != id {
		return
	}
	q.songs = q.songs[:n-1]
	q.nextPos--
}

func (q *SongQueue) Get(id domain.SongID) (domain.Song, bool) {
	i := q.indexOf(id)
	if i < 0 {
		return domain.Song{}, false
	}
	return q.songs[i], true
}

func (q *SongQueue) IndexOf(id domain.SongID) int { return q.indexOf(id) }

func (q *SongQueue) Len() int { return len(q.songs) }

func (q *SongQueue) First() (domain.Song, bool) {
	if len(q.songs) == 0 {
		return domain.Song{}, false
	}
	return q.songs[0], true
}

// List returns a copy in play order.
func (q *SongQueue) List() []domain.Song {
	return slices.Clone(q.songs)
}

// Successor is the song after id in play order, wrapping to the first.
// An id that is not queued has no successor.
func (q *SongQueue) Successor(id domain.SongID) (domain.Song, bool) {
	return successorIn(q.songs, id)
}

// Owners lists distinct uploaders in play order.
func (q *SongQueue) Owners() []domain.UserID {
	return lo.Uniq(lo.Map(q.songs, func(s domain.Song, _ int) domain.UserID { return s.UserID }))
}

func (q *SongQueue) indexOf(id domain.SongID) int {
	_, i, ok := lo.FindIndexOf(q.songs, func(s domain.Song) bool { return s.ID == id })
	if !ok {
		return -1
	}
	return i
}

func successorIn(songs []domain.Song, id domain.SongID) (domain.Song, bool) {
	_, i, ok := lo.FindIndexOf(songs, func(s domain.Song) bool { return s.ID == id })
	if !ok {
		return domain.Song{}, false
	}
	return songs[(i+1)%len(songs)], true
}
