// Package notify fans room change events out to subscribers.
// Delivery is best-effort: a subscriber that cannot keep up loses events
// and relies on periodic snapshots to catch up.
package notify

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

const DefaultBuffer = 32

type Subscription struct {
	C <-chan core.Event

	ch      chan core.Event
	room    domain.RoomID
	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
}

func (s *Subscription) Room() domain.RoomID { return s.room }

// Dropped counts events this subscriber missed because its buffer was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.hub.remove(s) })
}

type Hub struct {
	buffer int
	policy Policy

	mu    sync.RWMutex
	rooms map[domain.RoomID]map[*Subscription]struct{}
}

func NewHub(buffer int, policy Policy) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Hub{
		buffer: buffer,
		policy: policy,
		rooms:  make(map[domain.RoomID]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(room domain.RoomID) *Subscription {
	ch := make(chan core.Event, h.buffer)
	s := &Subscription{C: ch, ch: ch, room: room, hub: h}
	h.mu.Lock()
	subs, ok := h.rooms[room]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.rooms[room] = subs
	}
	subs[s] = struct{}{}
	h.mu.Unlock()
	log.Debug().Str("module", "notify").Str("room_id", string(room)).Msg("subscribed")
	return s
}

// Publish never blocks. It implements core.Publisher.
func (h *Hub) Publish(e core.Event) {
	var kick []*Subscription
	sent := 0
	h.mu.RLock()
	for s := range h.rooms[e.RoomID] {
		select {
		case s.ch <- e:
			sent++
		default:
			s.dropped.Add(1)
			if h.policy.OnBackPressure(e.RoomID, s) == Disconnect {
				kick = append(kick, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range kick {
		log.Warn().Str("module", "notify").Str("room_id", string(e.RoomID)).Int64("dropped", s.Dropped()).Msg("slow subscriber disconnected")
		s.Close()
	}
	log.Debug().Str("module", "notify").Str("room_id", string(e.RoomID)).Str("kind", string(e.Kind)).
		Uint64("version", e.Version).Int("sent_to", sent).Int("kicked", len(kick)).Msg("publish result")
}

// Subscribers reports how many subscriptions a room has.
func (h *Hub) Subscribers(room domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[s.room]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, s.room)
		}
	}
	close(s.ch)
}
