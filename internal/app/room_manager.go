// Package app wires room sessions together: the registry that owns them and the
// orchestrator in app/orch that fronts them.
package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

const maxCodeAttempts = 16

// RoomStore is the durable side of the registry.
type RoomStore interface {
	core.RecordStore
	SaveRoom(ctx context.Context, r *domain.Room) error
	LoadRooms(ctx context.Context) ([]domain.Room, error)
	LoadSongs(ctx context.Context, id domain.RoomID) ([]domain.Song, error)
	LoadProfiles(ctx context.Context, room domain.RoomID) ([]domain.Profile, error)
}

type RegistryDeps struct {
	Store     RoomStore
	Publisher core.Publisher
	// GenerateCode defaults to GenerateRoomCode.
	GenerateCode func() (domain.RoomCode, error)
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
	// Epoch is stamped on every session this registry builds. Defaults to a
	// fresh uuid, so a restarted process never reuses version numbers.
	Epoch string
}

// RoomRegistry owns every live room session. mu guards only the maps;
// work inside a room never holds it.
type RoomRegistry struct {
	deps RegistryDeps

	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
	codes map[domain.RoomCode]domain.RoomID
}

func NewRoomRegistry(deps RegistryDeps) *RoomRegistry {
	if deps.GenerateCode == nil {
		deps.GenerateCode = GenerateRoomCode
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = bcrypt.DefaultCost
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Epoch == "" {
		deps.Epoch = uuid.NewString()
	}
	return &RoomRegistry{
		deps:  deps,
		rooms: make(map[domain.RoomID]core.RoomService),
		codes: make(map[domain.RoomCode]domain.RoomID),
	}
}

// GenerateRoomCode draws RoomCodeLen characters from RoomCodeAlphabet.
func GenerateRoomCode() (domain.RoomCode, error) {
	n := big.NewInt(int64(len(domain.RoomCodeAlphabet)))
	b := make([]byte, domain.RoomCodeLen)
	for i := range b {
		k, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", err
		}
		b[i] = domain.RoomCodeAlphabet[k.Int64()]
	}
	return domain.RoomCode(b), nil
}

// Create registers a new room administered by actor.
func (r *RoomRegistry) Create(ctx context.Context, actor domain.UserID, spec domain.RoomSpec) (core.RoomService, error) {
	if actor == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(spec.Secret), r.deps.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash secret: %w", err)
	}

	room := &domain.Room{
		ID:              domain.RoomID(uuid.NewString()),
		Name:            domain.RoomName(spec.Name),
		AdminID:         actor,
		SecretHash:      hash,
		MaxSongsPerUser: spec.MaxSongsPerUser,
		SongsPerRound:   spec.SongsPerRound,
		CreatedAt:       r.deps.Now().UTC(),
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := r.deps.GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		if !r.reserveCode(code, room.ID) {
			log.Debug().Str("module", "app.rooms").Str("code", string(code)).Int("attempt", attempt).Msg("room code collision")
			continue
		}
		room.Code = code

		if r.deps.Store != nil {
			if err := r.deps.Store.SaveRoom(ctx, room); err != nil {
				r.releaseCode(code)
				if errors.Is(err, domain.ErrCodeTaken) {
					continue
				}
				return nil, fmt.Errorf("persist room: %w", err)
			}
		}

		svc := r.newSession(room)
		r.mu.Lock()
		r.rooms[room.ID] = svc
		r.mu.Unlock()
		log.Info().Str("module", "app.rooms").Str("room_id", string(room.ID)).Str("code", string(code)).
			Str("admin", string(actor)).Msg("room created")
		return svc, nil
	}
	return nil, domain.ErrCodeSpaceExhausted
}

func (r *RoomRegistry) Get(id domain.RoomID) (core.RoomService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return svc, nil
}

func (r *RoomRegistry) GetByCode(code domain.RoomCode) (core.RoomService, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.codes[code]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	svc, ok := r.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return svc, nil
}

// Epoch is the incarnation stamped on this registry's sessions.
func (r *RoomRegistry) Epoch() string { return r.deps.Epoch }

// List returns the rooms actor has been admitted to.
func (r *RoomRegistry) List(actor domain.UserID) []core.RoomInfo {
	r.mu.RLock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for id, svc := range r.rooms {
		if !svc.Admitted(actor) {
			continue
		}
		snap := svc.Snapshot()
		out = append(out, core.RoomInfo{
			ID:           id,
			Name:         snap.Room.Name,
			Code:         snap.Room.Code,
			SongCount:    len(snap.Songs),
			Participants: len(snap.Participants),
		})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rehydrate rebuilds every stored room. Playback always starts idle.
func (r *RoomRegistry) Rehydrate(ctx context.Context) (int, error) {
	if r.deps.Store == nil {
		return 0, nil
	}
	rooms, err := r.deps.Store.LoadRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("load rooms: %w", err)
	}
	for i := range rooms {
		room := &rooms[i]
		songs, err := r.deps.Store.LoadSongs(ctx, room.ID)
		if err != nil {
			return 0, fmt.Errorf("load songs for %s: %w", room.ID, err)
		}
		profiles, err := r.deps.Store.LoadProfiles(ctx, room.ID)
		if err != nil {
			return 0, fmt.Errorf("load profiles for %s: %w", room.ID, err)
		}
		svc := r.newSession(room)
		svc.Load(songs, profiles)

		r.mu.Lock()
		r.rooms[room.ID] = svc
		r.codes[room.Code] = room.ID
		r.mu.Unlock()
	}
	log.Info().Str("module", "app.rooms").Int("rooms", len(rooms)).Msg("rooms rehydrated")
	return len(rooms), nil
}

// CheckSecret compares a join secret with the room's stored hash.
func CheckSecret(room *domain.Room, secret string) error {
	if err := bcrypt.CompareHashAndPassword(room.SecretHash, []byte(secret)); err != nil {
		return domain.ErrInvalidSecret
	}
	return nil
}

func (r *RoomRegistry) newSession(room *domain.Room) core.RoomService {
	return core.NewRoomService(room, core.RoomDeps{
		Store:     r.deps.Store,
		Publisher: r.deps.Publisher,
		Now:       r.deps.Now,
		Epoch:     r.deps.Epoch,
	})
}

func (r *RoomRegistry) reserveCode(code domain.RoomCode, id domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.codes[code]; taken {
		return false
	}
	r.codes[code] = id
	return true
}

func (r *RoomRegistry) releaseCode(code domain.RoomCode) {
	r.mu.Lock()
	delete(r.codes, code)
	r.mu.Unlock()
}
