package core

import (
	"testing"

	"github.com/dkeye/songroom/internal/domain"
)

func song(id string, user string) domain.Song {
	return domain.Song{ID: domain.SongID(id), UserID: domain.UserID(user)}
}

func ids(songs []domain.Song) []domain.SongID {
	out := make([]domain.SongID, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func TestSongQueuePositionsAreMonotonic(t *testing.T) {
	q := NewSongQueue()
	a := q.Append(song("a", "u1"))
	b := q.Append(song("b", "u1"))
	if a.Position != 0 || b.Position != 1 {
		t.Fatalf("positions = %d,%d; want 0,1", a.Position, b.Position)
	}

	q.Remove("a")
	c := q.Append(song("c", "u2"))
	if c.Position != 2 {
		t.Fatalf("position after delete = %d, want 2", c.Position)
	}
	if got := ids(q.List()); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("order = %v", got)
	}
	if b2, _ := q.Get("b"); b2.Position != 1 {
		t.Fatalf("b was renumbered to %d", b2.Position)
	}
}

func TestSongQueueSuccessorWraps(t *testing.T) {
	q := NewSongQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Append(song(id, "u"))
	}

	cases := []struct {
		id   domain.SongID
		want domain.SongID
	}{
		{"a", "b"},
		{"b", "c"},
		{"c", "a"},
	}
	for _, tc := range cases {
		t.Run(string(tc.id), func(t *testing.T) {
			next, ok := q.Successor(tc.id)
			if !ok || next.ID != tc.want {
				t.Fatalf("successor(%s) = %s,%v; want %s", tc.id, next.ID, ok, tc.want)
			}
		})
	}

	if _, ok := q.Successor("missing"); ok {
		t.Fatalf("unknown id has a successor")
	}
}

func TestSongQueueSuccessorIsIdentityBased(t *testing.T) {
	q := NewSongQueue()
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Append(song(id, "u"))
	}
	q.Remove("a")
	q.Remove("b")

	next, ok := q.Successor("c")
	if !ok || next.ID != "d" {
		t.Fatalf("successor(c) = %s, want d", next.ID)
	}
}

func TestSongQueueRestoreKeepsOrder(t *testing.T) {
	q := NewSongQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Append(song(id, "u"))
	}
	b, _ := q.Remove("b")
	q.Restore(b)
	if got := ids(q.List()); got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("order after restore = %v", got)
	}
}

func TestSongQueueUnappendReleasesPosition(t *testing.T) {
	q := NewSongQueue()
	q.Append(song("a", "u"))
	b := q.Append(song("b", "u"))
	q.Unappend(b.ID)
	c := q.Append(song("c", "u"))
	if c.Position != 1 {
		t.Fatalf("position after unappend = %d, want 1", c.Position)
	}
}

func TestSongQueueLoadAdvancesCounter(t *testing.T) {
	q := NewSongQueue()
	q.Load(domain.Song{ID: "x", Position: 7})
	q.Load(domain.Song{ID: "w", Position: 3})
	if got := ids(q.List()); got[0] != "w" || got[1] != "x" {
		t.Fatalf("load order = %v", got)
	}
	if s := q.Append(song("y", "u")); s.Position != 8 {
		t.Fatalf("next position = %d, want 8", s.Position)
	}
}

func TestSongQueueOwners(t *testing.T) {
	q := NewSongQueue()
	q.Append(song("a", "u2"))
	q.Append(song("b", "u1"))
	q.Append(song("c", "u2"))
	got := q.Owners()
	if len(got) != 2 || got[0] != "u2" || got[1] != "u1" {
		t.Fatalf("owners = %v", got)
	}
}
