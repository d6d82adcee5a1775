// Package replica is the participant side of room state: a local mirror fed by
// change events and repaired by periodic full snapshots.
package replica

import (
	"cmp"
	"encoding/json"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

// View holds the latest known state of one room.
type View struct {
	mu    sync.RWMutex
	snap  *core.Snapshot
	stale bool

	staleC chan struct{}
}

func NewView() *View {
	return &View{staleC: make(chan struct{}, 1)}
}

// Current returns the mirrored state, nil before the first snapshot.
func (v *View) Current() *core.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snap
}

func (v *View) Stale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stale
}

// StaleC fires when an event gap is detected.
func (v *View) StaleC() <-chan struct{} { return v.staleC }

// ApplySnapshot replaces the view unless s is older within the same epoch.
// A snapshot from another epoch always wins: the server was rebuilt and its
// versions started over. Applying the same snapshot twice leaves the view unchanged.
func (v *View) ApplySnapshot(s *core.Snapshot) bool {
	if s == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snap != nil && s.Epoch == v.snap.Epoch && s.Version < v.snap.Version {
		return false
	}
	v.snap = s
	v.stale = false
	return true
}

// ApplyEvent applies e if it is the next version of the same epoch.
// Duplicates are ignored; a gap or an epoch change marks the view stale
// until the next snapshot.
func (v *View) ApplyEvent(e core.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.snap == nil || e.Epoch != v.snap.Epoch {
		v.markStaleLocked()
		return false
	}
	if e.Version <= v.snap.Version {
		return false
	}
	if e.Version != v.snap.Version+1 {
		v.markStaleLocked()
		return false
	}
	next, err := applyDelta(v.snap, e)
	if err != nil {
		log.Warn().Err(err).Str("module", "replica").Str("kind", string(e.Kind)).Msg("bad event payload")
		v.markStaleLocked()
		return false
	}
	v.snap = next
	return true
}

func (v *View) markStaleLocked() {
	v.stale = true
	select {
	case v.staleC <- struct{}{}:
	default:
	}
}

func applyDelta(cur *core.Snapshot, e core.Event) (*core.Snapshot, error) {
	next := *cur
	next.Version = e.Version
	switch e.Kind {
	case core.EventSongAdded:
		var p core.SongAddedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		next.Songs = append(slices.Clone(cur.Songs), p.Song)
		slices.SortStableFunc(next.Songs, func(a, b domain.Song) int { return cmp.Compare(a.Position, b.Position) })
	case core.EventSongRemoved:
		var p core.SongRemovedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		next.Songs = slices.DeleteFunc(slices.Clone(cur.Songs), func(s domain.Song) bool { return s.ID == p.SongID })
	case core.EventPlaybackChanged:
		if err := json.Unmarshal(e.Payload, &next.Playback); err != nil {
			return nil, err
		}
	case core.EventParticipantUpdated:
		var p core.ParticipantPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, err
		}
		next.Participants = slices.DeleteFunc(slices.Clone(cur.Participants), func(x domain.Participant) bool {
			return x.ID == p.Participant.ID
		})
		if p.Member {
			i := slices.IndexFunc(cur.Participants, func(x domain.Participant) bool { return x.ID == p.Participant.ID })
			if i < 0 || i > len(next.Participants) {
				i = len(next.Participants)
			}
			next.Participants = slices.Insert(next.Participants, i, p.Participant)
		}
	}
	counts := make(map[domain.UserID]int, len(next.Participants))
	for _, s := range next.Songs {
		counts[s.UserID]++
	}
	next.Participants = slices.Clone(next.Participants)
	for i := range next.Participants {
		next.Participants[i].SongCount = counts[next.Participants[i].ID]
	}
	next.Playback.Index = slices.IndexFunc(next.Songs, func(s domain.Song) bool {
		return next.Playback.SongID != "" && s.ID == next.Playback.SongID
	})
	return &next, nil
}
