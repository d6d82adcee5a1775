package signal

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/dkeye/songroom/internal/domain"
)

// sweepEvery bounds how often idle histories are dropped.
const sweepEvery = 1024

type limiterKey struct {
	room domain.RoomID
	user domain.UserID
}

// RoomRateLimiter allows at most limit commands per user per room within
// any sliding window of the given interval.
type RoomRateLimiter struct {
	mu       sync.Mutex
	history  map[limiterKey][]time.Time
	limit    int
	interval time.Duration
	calls    int
	now      func() time.Time
}

func NewRoomRateLimiter(limit int, interval time.Duration) *RoomRateLimiter {
	return &RoomRateLimiter{
		history:  make(map[limiterKey][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *RoomRateLimiter) Allow(room domain.RoomID, uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.calls++
	if rl.calls%sweepEvery == 0 {
		rl.sweepLocked(windowStart)
	}

	k := limiterKey{room: room, user: uid}
	fresh := lo.Filter(rl.history[k], func(t time.Time, _ int) bool { return t.After(windowStart) })
	if len(fresh) >= rl.limit {
		rl.history[k] = fresh
		return false
	}
	rl.history[k] = append(fresh, now)
	return true
}

// Tracked is the number of (room, user) pairs with history.
func (rl *RoomRateLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}

func (rl *RoomRateLimiter) sweepLocked(windowStart time.Time) {
	for k, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, k)
		}
	}
}
