package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkeye/songroom/internal/domain"
)

func codes(seq ...domain.RoomCode) func() (domain.RoomCode, error) {
	i := 0
	return func() (domain.RoomCode, error) {
		c := seq[min(i, len(seq)-1)]
		i++
		return c, nil
	}
}

func newRegistry(gen func() (domain.RoomCode, error)) *RoomRegistry {
	return NewRoomRegistry(RegistryDeps{GenerateCode: gen, BcryptCost: bcrypt.MinCost})
}

func spec(name string) domain.RoomSpec {
	return domain.RoomSpec{Name: name, Secret: "hunter2"}
}

func TestRegistryCreateAndGet(t *testing.T) {
	reg := newRegistry(nil)
	ctx := context.Background()

	svc, err := reg.Create(ctx, "alice", spec("Friday"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	room := svc.Room()
	if room.AdminID != "alice" || room.MaxSongsPerUser != domain.DefaultMaxSongsPerUser || room.SongsPerRound != 1 {
		t.Fatalf("room = %+v", room)
	}
	if len(room.Code) != domain.RoomCodeLen || strings.Trim(string(room.Code), domain.RoomCodeAlphabet) != "" {
		t.Fatalf("bad code %q", room.Code)
	}

	got, err := reg.Get(room.ID)
	if err != nil || got != svc {
		t.Fatalf("get: %v", err)
	}
	if got, err := reg.GetByCode(room.Code); err != nil || got != svc {
		t.Fatalf("get by code: %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("get unknown: %v", err)
	}
	if list := reg.List("alice"); len(list) != 1 || list[0].Participants != 1 {
		t.Fatalf("list = %+v", list)
	}
	if list := reg.List("mallory"); len(list) != 0 {
		t.Fatalf("stranger sees rooms: %+v", list)
	}
	if err := svc.Admit(ctx, "mallory", ""); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if list := reg.List("mallory"); len(list) != 1 {
		t.Fatalf("joined user does not see the room: %+v", list)
	}
}

func TestRegistryRetriesCodeCollision(t *testing.T) {
	reg := newRegistry(codes("AAAAAA", "AAAAAA", "BBBBBB"))
	ctx := context.Background()

	first, err := reg.Create(ctx, "alice", spec("one"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := reg.Create(ctx, "bob", spec("two"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Room().Code != "AAAAAA" || second.Room().Code != "BBBBBB" {
		t.Fatalf("codes = %s, %s", first.Room().Code, second.Room().Code)
	}
}

func TestRegistryCodeSpaceExhausted(t *testing.T) {
	reg := newRegistry(codes("AAAAAA"))
	ctx := context.Background()
	if _, err := reg.Create(ctx, "alice", spec("one")); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := reg.Create(ctx, "bob", spec("two")); !errors.Is(err, domain.ErrCodeSpaceExhausted) {
		t.Fatalf("second: %v", err)
	}
}

func TestRegistryCreateValidation(t *testing.T) {
	reg := newRegistry(nil)
	ctx := context.Background()
	cases := []struct {
		name  string
		actor domain.UserID
		spec  domain.RoomSpec
		want  error
	}{
		{"anonymous", "", spec("x"), domain.ErrUnauthenticated},
		{"empty name", "a", domain.RoomSpec{Secret: "abcd"}, domain.ErrRoomNameInvalid},
		{"long name", "a", domain.RoomSpec{Name: strings.Repeat("n", 51), Secret: "abcd"}, domain.ErrRoomNameInvalid},
		{"short secret", "a", domain.RoomSpec{Name: "x", Secret: "abc"}, domain.ErrSecretTooShort},
		{"negative limit", "a", domain.RoomSpec{Name: "x", Secret: "abcd", MaxSongsPerUser: -1}, domain.ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := reg.Create(ctx, tc.actor, tc.spec); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCheckSecret(t *testing.T) {
	reg := newRegistry(nil)
	svc, err := reg.Create(context.Background(), "alice", spec("room"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := CheckSecret(svc.Room(), "hunter2"); err != nil {
		t.Fatalf("right secret: %v", err)
	}
	err = CheckSecret(svc.Room(), "wrong")
	if !errors.Is(err, domain.ErrInvalidSecret) || !errors.Is(err, domain.ErrNotAuthorized) {
		t.Fatalf("wrong secret: %v", err)
	}
}
