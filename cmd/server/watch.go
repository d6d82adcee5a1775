package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/replica"
)

// watchCmd follows a room like a participant would: events over the
// WebSocket plus state pulls on a fixed interval.
func watchCmd() *cobra.Command {
	var (
		server   string
		token    string
		room     string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a room's queue and playback from the command line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			view := replica.NewView()
			poller := &replica.Poller{
				Room:     domain.RoomID(room),
				Fetcher:  &replica.HTTPFetcher{BaseURL: server, Token: token},
				View:     view,
				Interval: interval,
				OnChange: logState,
			}
			wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(server, "/"), "http") + "/api/rooms/" + room + "/ws"
			go followLoop(ctx, wsURL, token, view)
			return poller.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "server base URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token")
	cmd.Flags().StringVar(&room, "room", "", "room id")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "reconciliation interval")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func followLoop(ctx context.Context, wsURL, token string, view *replica.View) {
	for ctx.Err() == nil {
		if err := replica.Follow(ctx, wsURL, token, view); err != nil {
			log.Warn().Err(err).Str("module", "watch").Msg("event stream lost, retrying")
		}
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}

func logState(s *core.Snapshot) {
	ev := log.Info().Str("room", string(s.Room.Name)).Uint64("version", s.Version).
		Int("songs", len(s.Songs)).Str("status", string(s.Playback.Status))
	if s.Playback.Index >= 0 && s.Playback.Index < len(s.Songs) {
		ev = ev.Str("now_playing", s.Songs[s.Playback.Index].Title())
	}
	ev.Msg("room state")
}
