package core

import (
	"errors"
	"testing"

	"github.com/dkeye/songroom/internal/domain"
)

const admin = domain.UserID("admin")

func newQueue(ids ...string) *SongQueue {
	q := NewSongQueue()
	for _, id := range ids {
		q.Append(song(id, "u"))
	}
	return q
}

func expectState(t *testing.T, p *PlaybackController, status domain.PlaybackStatus, id domain.SongID) {
	t.Helper()
	gotStatus, gotID := p.Current()
	if gotStatus != status || gotID != id {
		t.Fatalf("state = %s(%s), want %s(%s)", gotStatus, gotID, status, id)
	}
}

func TestPlaybackTransitions(t *testing.T) {
	q := newQueue("a", "b")
	p := NewPlaybackController(admin, nil)
	expectState(t, p, domain.StatusIdle, "")

	if err := p.Pause(admin); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("pause from idle: %v", err)
	}
	if err := p.Play(admin, q, "a"); err != nil {
		t.Fatalf("play: %v", err)
	}
	expectState(t, p, domain.StatusPlaying, "a")

	if err := p.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	expectState(t, p, domain.StatusPaused, "a")

	if err := p.Resume(admin); err != nil {
		t.Fatalf("resume: %v", err)
	}
	expectState(t, p, domain.StatusPlaying, "a")

	if changed, err := p.Advance(admin, q); err != nil || !changed {
		t.Fatalf("advance: %v %v", changed, err)
	}
	expectState(t, p, domain.StatusPlaying, "b")

	if err := p.Play(admin, q, "zzz"); !errors.Is(err, domain.ErrSongNotFound) {
		t.Fatalf("play unknown: %v", err)
	}
}

func TestPlaybackAdminOnly(t *testing.T) {
	q := newQueue("a")
	p := NewPlaybackController(admin, nil)

	if err := p.Play("someone", q, "a"); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("non-admin play: %v", err)
	}
	if err := p.Play("", q, "a"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous play: %v", err)
	}
	if _, err := p.Advance("someone", q); !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("non-admin advance: %v", err)
	}
	expectState(t, p, domain.StatusIdle, "")
}

func TestPlaybackAdvanceWrapsAround(t *testing.T) {
	q := newQueue("a", "b", "c")
	p := NewPlaybackController(admin, nil)
	_ = p.Play(admin, q, "c")
	_, _ = p.Advance(admin, q)
	expectState(t, p, domain.StatusPlaying, "a")
}

func TestPlaybackAdvanceFromIdle(t *testing.T) {
	p := NewPlaybackController(admin, nil)
	if changed, _ := p.Advance(admin, NewSongQueue()); changed {
		t.Fatalf("advance on empty queue changed state")
	}
	_, _ = p.Advance(admin, newQueue("a", "b"))
	expectState(t, p, domain.StatusPlaying, "a")
}

func TestPlaybackStaleCompletionIgnored(t *testing.T) {
	q := newQueue("a", "b")
	p := NewPlaybackController(admin, nil)
	_ = p.Play(admin, q, "b")

	if p.Complete(q, "a") {
		t.Fatalf("completion of a non-current song advanced playback")
	}
	expectState(t, p, domain.StatusPlaying, "b")

	if !p.Complete(q, "b") {
		t.Fatalf("completion of current song ignored")
	}
	expectState(t, p, domain.StatusPlaying, "a")

	_ = p.Pause(admin)
	if p.Complete(q, "a") {
		t.Fatalf("completion while paused advanced playback")
	}
}

func TestPlaybackSongDeleted(t *testing.T) {
	t.Run("current song moves to successor", func(t *testing.T) {
		q := newQueue("a", "b", "c")
		p := NewPlaybackController(admin, nil)
		_ = p.Play(admin, q, "b")
		before := q.List()
		q.Remove("b")
		if !p.SongDeleted("b", before) {
			t.Fatalf("no change reported")
		}
		expectState(t, p, domain.StatusPlaying, "c")
	})

	t.Run("last song wraps to first", func(t *testing.T) {
		q := newQueue("a", "b")
		p := NewPlaybackController(admin, nil)
		_ = p.Play(admin, q, "b")
		before := q.List()
		q.Remove("b")
		p.SongDeleted("b", before)
		expectState(t, p, domain.StatusPlaying, "a")
	})

	t.Run("paused stays paused", func(t *testing.T) {
		q := newQueue("a", "b")
		p := NewPlaybackController(admin, nil)
		_ = p.Play(admin, q, "a")
		_ = p.Pause(admin)
		before := q.List()
		q.Remove("a")
		p.SongDeleted("a", before)
		expectState(t, p, domain.StatusPaused, "b")
	})

	t.Run("only song goes idle", func(t *testing.T) {
		q := newQueue("a")
		p := NewPlaybackController(admin, nil)
		_ = p.Play(admin, q, "a")
		before := q.List()
		q.Remove("a")
		p.SongDeleted("a", before)
		expectState(t, p, domain.StatusIdle, "")
	})

	t.Run("other song leaves state alone", func(t *testing.T) {
		q := newQueue("a", "b")
		p := NewPlaybackController(admin, nil)
		_ = p.Play(admin, q, "a")
		before := q.List()
		q.Remove("b")
		if p.SongDeleted("b", before) {
			t.Fatalf("change reported for non-current song")
		}
		expectState(t, p, domain.StatusPlaying, "a")
	})
}

func TestPlaybackStateIndex(t *testing.T) {
	q := newQueue("a", "b", "c")
	p := NewPlaybackController(admin, nil)
	if got := p.State(q).Index; got != -1 {
		t.Fatalf("idle index = %d", got)
	}
	_ = p.Play(admin, q, "c")
	q.Remove("a")
	if got := p.State(q).Index; got != 1 {
		t.Fatalf("index after removal = %d, want 1", got)
	}
}
