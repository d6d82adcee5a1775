package replica

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

type captured struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *captured) Publish(e core.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func newRoom() (core.RoomService, *captured) {
	pub := &captured{}
	room := &domain.Room{ID: "r1", Name: "party", AdminID: "admin", MaxSongsPerUser: 3, SongsPerRound: 1, Code: "ABC123"}
	return core.NewRoomService(room, core.RoomDeps{Publisher: pub}), pub
}

func sameState(t *testing.T, got, want *core.Snapshot) {
	t.Helper()
	if got.Version != want.Version {
		t.Fatalf("version = %d, want %d", got.Version, want.Version)
	}
	if len(got.Songs) != len(want.Songs) {
		t.Fatalf("songs = %d, want %d", len(got.Songs), len(want.Songs))
	}
	for i := range want.Songs {
		if got.Songs[i].ID != want.Songs[i].ID {
			t.Fatalf("song %d = %s, want %s", i, got.Songs[i].ID, want.Songs[i].ID)
		}
	}
	if got.Playback.Status != want.Playback.Status || got.Playback.SongID != want.Playback.SongID || got.Playback.Index != want.Playback.Index {
		t.Fatalf("playback = %+v, want %+v", got.Playback, want.Playback)
	}
	if len(got.Participants) != len(want.Participants) {
		t.Fatalf("participants = %+v, want %+v", got.Participants, want.Participants)
	}
	for i := range want.Participants {
		if got.Participants[i] != want.Participants[i] {
			t.Fatalf("participant %d = %+v, want %+v", i, got.Participants[i], want.Participants[i])
		}
	}
}

func TestEventsConvergeWithServer(t *testing.T) {
	room, pub := newRoom()
	v := NewView()
	v.ApplySnapshot(room.Snapshot())

	ctx := context.Background()
	_, _ = room.AddSong(ctx, "u1", core.NewSong{ID: "a"})
	_, _ = room.AddSong(ctx, "u2", core.NewSong{ID: "b"})
	_, _ = room.AddSong(ctx, "u1", core.NewSong{ID: "c"})
	_ = room.Rename(ctx, "u2", "Bea")
	_ = room.Play("admin", "b")
	_ = room.Complete("u1", "b")
	_, _ = room.RemoveSong(ctx, "u1", "c")
	_, _ = room.RemoveSong(ctx, "u2", "b")

	for _, e := range pub.events {
		if !v.ApplyEvent(e) {
			t.Fatalf("event v%d %s not applied", e.Version, e.Kind)
		}
	}
	if v.Stale() {
		t.Fatalf("view stale after contiguous events")
	}
	sameState(t, v.Current(), room.Snapshot())
}

func TestApplyIsIdempotent(t *testing.T) {
	room, pub := newRoom()
	v := NewView()
	v.ApplySnapshot(room.Snapshot())
	_, _ = room.AddSong(context.Background(), "u1", core.NewSong{ID: "a"})

	for _, e := range pub.events {
		v.ApplyEvent(e)
		if v.ApplyEvent(e) {
			t.Fatalf("duplicate event applied")
		}
	}
	snap := room.Snapshot()
	v.ApplySnapshot(snap)
	v.ApplySnapshot(snap)
	sameState(t, v.Current(), snap)

	old := *snap
	old.Version = 0
	if v.ApplySnapshot(&old) {
		t.Fatalf("older snapshot replaced newer view")
	}
}

func TestGapMarksStale(t *testing.T) {
	room, pub := newRoom()
	v := NewView()
	v.ApplySnapshot(room.Snapshot())
	_, _ = room.AddSong(context.Background(), "u1", core.NewSong{ID: "a"})
	_, _ = room.AddSong(context.Background(), "u1", core.NewSong{ID: "b"})

	last := pub.events[len(pub.events)-1]
	if v.ApplyEvent(last) {
		t.Fatalf("event after a gap applied")
	}
	if !v.Stale() {
		t.Fatalf("gap not detected")
	}
	select {
	case <-v.StaleC():
	default:
		t.Fatalf("stale signal not sent")
	}

	v.ApplySnapshot(room.Snapshot())
	if v.Stale() {
		t.Fatalf("snapshot did not clear stale flag")
	}
	sameState(t, v.Current(), room.Snapshot())
}

func TestRestartedServerReplacesView(t *testing.T) {
	ctx := context.Background()
	before, _ := newRoom()
	v := NewView()
	v.ApplySnapshot(before.Snapshot())
	_, _ = before.AddSong(ctx, "u1", core.NewSong{ID: "a"})
	_, _ = before.AddSong(ctx, "u2", core.NewSong{ID: "b"})
	_, _ = before.AddSong(ctx, "u3", core.NewSong{ID: "c"})
	_ = before.Play("admin", "a")
	v.ApplySnapshot(before.Snapshot())

	after, pub := newRoom()
	_, _ = after.AddSong(ctx, "u1", core.NewSong{ID: "a"})
	restarted := after.Snapshot()
	if restarted.Version >= v.Current().Version || restarted.Epoch == v.Current().Epoch {
		t.Fatalf("setup: restarted v%d %q, view v%d %q", restarted.Version, restarted.Epoch, v.Current().Version, v.Current().Epoch)
	}
	if !v.ApplySnapshot(restarted) {
		t.Fatalf("snapshot from a new epoch rejected")
	}
	sameState(t, v.Current(), restarted)

	_, _ = after.AddSong(ctx, "u2", core.NewSong{ID: "b"})
	if !v.ApplyEvent(pub.events[len(pub.events)-1]) {
		t.Fatalf("event after restart not applied")
	}
	sameState(t, v.Current(), after.Snapshot())
}

func TestForeignEpochEventMarksStale(t *testing.T) {
	room, pub := newRoom()
	v := NewView()
	v.ApplySnapshot(room.Snapshot())
	_, _ = room.AddSong(context.Background(), "u1", core.NewSong{ID: "a"})

	e := pub.events[len(pub.events)-1]
	e.Epoch = "elsewhere"
	if v.ApplyEvent(e) {
		t.Fatalf("event from another epoch applied")
	}
	if !v.Stale() {
		t.Fatalf("epoch change not detected")
	}
	if len(v.Current().Songs) != 0 {
		t.Fatalf("view changed: %+v", v.Current().Songs)
	}
}

type roomFetcher struct {
	room  core.RoomService
	mu    sync.Mutex
	calls int
}

func (f *roomFetcher) Fetch(context.Context, domain.RoomID) (*core.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.room.Snapshot(), nil
}

func TestPollerReconciles(t *testing.T) {
	room, _ := newRoom()
	v := NewView()
	changed := make(chan *core.Snapshot, 16)
	p := &Poller{
		Room:     "r1",
		Fetcher:  &roomFetcher{room: room},
		View:     v,
		Interval: 10 * time.Millisecond,
		OnChange: func(s *core.Snapshot) {
			select {
			case changed <- s:
			default:
			}
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Notifications are lost on purpose; polling alone must converge.
	_, _ = room.AddSong(context.Background(), "u1", core.NewSong{ID: "a"})
	want := room.Snapshot().Version

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-changed:
			if s.Version == want {
				cancel()
				if err := <-done; err != nil {
					t.Fatalf("run: %v", err)
				}
				sameState(t, v.Current(), room.Snapshot())
				return
			}
		case <-deadline:
			t.Fatalf("view never caught up")
		}
	}
}
