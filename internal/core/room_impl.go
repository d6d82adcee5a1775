package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/songroom/internal/domain"
)

// RoomDeps are the collaborators of a room session. Nil Store means
// memory-only, nil Publisher means nobody is told about changes.
type RoomDeps struct {
	Store     RecordStore
	Publisher Publisher
	Now       func() time.Time
	// Epoch names this incarnation of the session; versions restart with it.
	// Defaults to a fresh uuid.
	Epoch string
}

type change struct {
	kind    EventKind
	payload any
}

// roomImpl is a threadsafe room session.
// mu serializes mutations; readers use the last published snapshot.
// pubMu is taken before mu is released so events leave in version order.
type roomImpl struct {
	room  *domain.Room
	store RecordStore
	pub   Publisher
	now   func() time.Time
	epoch string

	mu       sync.Mutex
	quota    *QuotaLedger
	queue    *SongQueue
	playback *PlaybackController
	names    map[domain.UserID]string
	admitted map[domain.UserID]struct{}
	version  uint64

	pubMu sync.Mutex

	snap atomic.Pointer[Snapshot]
}

func NewRoomService(room *domain.Room, deps RoomDeps) RoomService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	epoch := deps.Epoch
	if epoch == "" {
		epoch = uuid.NewString()
	}
	r := &roomImpl{
		room:     room,
		store:    deps.Store,
		pub:      deps.Publisher,
		now:      now,
		epoch:    epoch,
		quota:    NewQuotaLedger(room.MaxSongsPerUser),
		queue:    NewSongQueue(),
		playback: NewPlaybackController(room.AdminID, now),
		names:    make(map[domain.UserID]string),
		admitted: make(map[domain.UserID]struct{}),
	}
	r.snap.Store(r.buildSnapshotLocked())
	return r
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Snapshot() *Snapshot { return r.snap.Load() }

func (r *roomImpl) Participants() []domain.Participant {
	return r.snap.Load().Participants
}

// CanAccept is advisory; AddSong checks again under the lock.
func (r *roomImpl) CanAccept(u domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quota.CanAccept(u)
}

// Admitted reports whether u may act in the room: the admin, anyone who
// joined with the secret, and anyone who still owns a song.
func (r *roomImpl) Admitted(u domain.UserID) bool {
	if u == "" {
		return false
	}
	if r.room.IsAdmin(u) {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.admitted[u]
	return ok || r.quota.Count(u) > 0
}

func (r *roomImpl) Load(songs []domain.Song, profiles []domain.Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range songs {
		r.queue.Load(s)
		r.quota.RecordInsert(s.UserID)
	}
	for _, p := range profiles {
		r.admitted[p.ID] = struct{}{}
		if p.DisplayName != "" {
			r.names[p.ID] = p.DisplayName
		}
	}
	r.snap.Store(r.buildSnapshotLocked())
}

func (r *roomImpl) AddSong(ctx context.Context, actor domain.UserID, in NewSong) (domain.Song, error) {
	if actor == "" {
		return domain.Song{}, domain.ErrUnauthenticated
	}
	r.mu.Lock()
	if !r.quota.CanAccept(actor) {
		r.mu.Unlock()
		return domain.Song{}, domain.ErrQuotaExceeded
	}
	if in.ID == "" {
		in.ID = domain.SongID(uuid.NewString())
	}
	wasMember := r.isMemberLocked(actor)
	song := r.queue.Append(domain.Song{
		ID:          in.ID,
		RoomID:      r.room.ID,
		UserID:      actor,
		Locator:     in.Locator,
		URL:         in.URL,
		FileName:    in.FileName,
		DisplayName: in.DisplayName,
		CreatedAt:   r.now(),
	})
	r.quota.RecordInsert(actor)

	if r.store != nil {
		if err := r.store.InsertSong(ctx, song); err != nil {
			r.queue.Unappend(song.ID)
			r.quota.RecordRemove(actor)
			r.mu.Unlock()
			return domain.Song{}, fmt.Errorf("persist song: %w", err)
		}
	}

	changes := []change{{EventSongAdded, SongAddedPayload{Song: song}}}
	if !wasMember {
		changes = append(changes, r.participantChangeLocked(actor))
	}
	r.unlockAndPublish(r.commitLocked(changes))
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("user_id", string(actor)).
		Str("song_id", string(song.ID)).Int64("position", song.Position).Msg("song added")
	return song, nil
}

// RemoveSong deletes a song. Its owner and the admin may do this.
func (r *roomImpl) RemoveSong(ctx context.Context, actor domain.UserID, id domain.SongID) (domain.Song, error) {
	if actor == "" {
		return domain.Song{}, domain.ErrUnauthenticated
	}
	r.mu.Lock()
	song, ok := r.queue.Get(id)
	if !ok {
		r.mu.Unlock()
		return domain.Song{}, domain.ErrSongNotFound
	}
	if song.UserID != actor && !r.room.IsAdmin(actor) {
		r.mu.Unlock()
		return domain.Song{}, domain.ErrNotAuthorized
	}

	before := r.queue.List()
	mark := r.playback.mark()
	r.queue.Remove(id)
	r.quota.RecordRemove(song.UserID)
	playbackChanged := r.playback.SongDeleted(id, before)
	if r.queue.Len() == 0 && r.playback.RoomEmptied() {
		playbackChanged = true
	}

	if r.store != nil {
		if err := r.store.DeleteSong(ctx, id); err != nil {
			r.queue.Restore(song)
			r.quota.RecordInsert(song.UserID)
			r.playback.reset(mark)
			r.mu.Unlock()
			return domain.Song{}, fmt.Errorf("delete song: %w", err)
		}
	}

	changes := []change{{EventSongRemoved, SongRemovedPayload{SongID: id, RemovedBy: actor}}}
	if playbackChanged {
		changes = append(changes, change{EventPlaybackChanged, r.playback.State(r.queue)})
	}
	if !r.isMemberLocked(song.UserID) {
		changes = append(changes, r.participantChangeLocked(song.UserID))
	}
	r.unlockAndPublish(r.commitLocked(changes))
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("user_id", string(actor)).
		Str("song_id", string(id)).Bool("playback_changed", playbackChanged).Msg("song removed")
	return song, nil
}

// Rename upserts the actor's display name in this room. Setting the same name
// is a no-op.
func (r *roomImpl) Rename(ctx context.Context, actor domain.UserID, name string) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}
	name, err := domain.NormalizeDisplayName(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	changed, err := r.upsertProfileLocked(ctx, actor, name)
	if err != nil || !changed {
		r.mu.Unlock()
		return err
	}
	r.unlockAndPublish(r.commitLocked([]change{r.participantChangeLocked(actor)}))
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("user_id", string(actor)).
		Str("name", name).Msg("display name set")
	return nil
}

// Admit records that actor presented the room secret, with an optional
// display name. Admission alone is not visible to other participants.
func (r *roomImpl) Admit(ctx context.Context, actor domain.UserID, name string) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}
	if name != "" {
		n, err := domain.NormalizeDisplayName(name)
		if err != nil {
			return err
		}
		name = n
	}
	r.mu.Lock()
	changed, err := r.upsertProfileLocked(ctx, actor, name)
	if err != nil || !changed {
		r.mu.Unlock()
		return err
	}
	r.unlockAndPublish(r.commitLocked([]change{r.participantChangeLocked(actor)}))
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("user_id", string(actor)).
		Str("name", name).Msg("display name set on join")
	return nil
}

// upsertProfileLocked admits u and sets its name when name is not empty. It
// writes through only when something changed and restores both on failure.
func (r *roomImpl) upsertProfileLocked(ctx context.Context, u domain.UserID, name string) (bool, error) {
	_, wasAdmitted := r.admitted[u]
	prev, hadName := r.names[u]
	nameChanged := name != "" && (!hadName || prev != name)
	if wasAdmitted && !nameChanged {
		return false, nil
	}

	r.admitted[u] = struct{}{}
	if nameChanged {
		r.names[u] = name
	}
	if r.store != nil {
		if err := r.store.UpsertProfile(ctx, domain.Profile{RoomID: r.room.ID, ID: u, DisplayName: name}); err != nil {
			if !wasAdmitted {
				delete(r.admitted, u)
			}
			if hadName {
				r.names[u] = prev
			} else {
				delete(r.names, u)
			}
			return false, fmt.Errorf("persist profile: %w", err)
		}
	}
	return nameChanged, nil
}

func (r *roomImpl) Play(actor domain.UserID, id domain.SongID) error {
	return r.playbackCommand("play", func() (bool, error) {
		return true, r.playback.Play(actor, r.queue, id)
	})
}

func (r *roomImpl) Pause(actor domain.UserID) error {
	return r.playbackCommand("pause", func() (bool, error) {
		return true, r.playback.Pause(actor)
	})
}

func (r *roomImpl) Resume(actor domain.UserID) error {
	return r.playbackCommand("resume", func() (bool, error) {
		return true, r.playback.Resume(actor)
	})
}

func (r *roomImpl) Advance(actor domain.UserID) error {
	return r.playbackCommand("advance", func() (bool, error) {
		return r.playback.Advance(actor, r.queue)
	})
}

func (r *roomImpl) Seek(actor domain.UserID, elapsed float64) error {
	return r.playbackCommand("seek", func() (bool, error) {
		return true, r.playback.Seek(actor, elapsed)
	})
}

// Complete may come from any participant's player; stale reports are dropped.
func (r *roomImpl) Complete(actor domain.UserID, id domain.SongID) error {
	if actor == "" {
		return domain.ErrUnauthenticated
	}
	return r.playbackCommand("complete", func() (bool, error) {
		return r.playback.Complete(r.queue, id), nil
	})
}

func (r *roomImpl) playbackCommand(name string, fn func() (bool, error)) error {
	r.mu.Lock()
	changed, err := fn()
	if err != nil || !changed {
		r.mu.Unlock()
		return err
	}
	state := r.playback.State(r.queue)
	r.unlockAndPublish(r.commitLocked([]change{{EventPlaybackChanged, state}}))
	log.Info().Str("module", "core.room").Str("room_id", string(r.room.ID)).Str("cmd", name).
		Str("status", string(state.Status)).Str("song_id", string(state.SongID)).Msg("playback changed")
	return nil
}

// commitLocked bumps the version once per change and republishes the snapshot.
func (r *roomImpl) commitLocked(changes []change) []Event {
	at := r.now()
	evs := make([]Event, 0, len(changes))
	for _, c := range changes {
		r.version++
		e := NewEvent(r.room.ID, c.kind, r.version, at, c.payload)
		e.Epoch = r.epoch
		evs = append(evs, e)
	}
	r.snap.Store(r.buildSnapshotLocked())
	return evs
}

// unlockAndPublish releases mu and hands evs to the publisher. Holding pubMu
// across the hand-over keeps fan-out in commit order.
func (r *roomImpl) unlockAndPublish(evs []Event) {
	r.pubMu.Lock()
	r.mu.Unlock()
	defer r.pubMu.Unlock()
	if r.pub == nil {
		return
	}
	for _, e := range evs {
		r.pub.Publish(e)
	}
}

func (r *roomImpl) isMemberLocked(u domain.UserID) bool {
	return r.room.IsAdmin(u) || r.quota.Count(u) > 0
}

func (r *roomImpl) participantChangeLocked(u domain.UserID) change {
	return change{EventParticipantUpdated, ParticipantPayload{
		Participant: r.participantLocked(u),
		Member:      r.isMemberLocked(u),
	}}
}

func (r *roomImpl) participantLocked(u domain.UserID) domain.Participant {
	return domain.Participant{
		ID:          u,
		DisplayName: r.displayNameLocked(u),
		IsAdmin:     r.room.IsAdmin(u),
		SongCount:   r.quota.Count(u),
	}
}

func (r *roomImpl) displayNameLocked(u domain.UserID) string {
	if n, ok := r.names[u]; ok {
		return n
	}
	id := string(u)
	return "guest-" + id[:min(len(id), 8)]
}

// buildSnapshotLocked derives membership as the admin plus every uploader.
func (r *roomImpl) buildSnapshotLocked() *Snapshot {
	ids := lo.Uniq(append([]domain.UserID{r.room.AdminID}, r.queue.Owners()...))
	return &Snapshot{
		Room:         *r.room,
		Songs:        r.queue.List(),
		Playback:     r.playback.State(r.queue),
		Participants: lo.Map(ids, func(u domain.UserID, _ int) domain.Participant { return r.participantLocked(u) }),
		Version:      r.version,
		Epoch:        r.epoch,
	}
}
