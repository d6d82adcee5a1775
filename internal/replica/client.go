package replica

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/notify"
)

// Fetcher pulls a full snapshot of a room.
type Fetcher interface {
	Fetch(ctx context.Context, room domain.RoomID) (*core.Snapshot, error)
}

// HTTPFetcher calls GET /api/rooms/:id/state.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, room domain.RoomID) (*core.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(f.BaseURL, "/")+"/api/rooms/"+url.PathEscape(string(room))+"/state", nil)
	if err != nil {
		return nil, err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch state: %s", resp.Status)
	}
	var snap core.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &snap, nil
}

// Poller keeps a View fresh by pulling on a fixed interval and right away
// whenever the view reports a gap.
type Poller struct {
	Room     domain.RoomID
	Fetcher  Fetcher
	View     *View
	Interval time.Duration
	// OnChange, if set, sees every snapshot that replaced the view.
	OnChange func(*core.Snapshot)
}

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pull(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pull(ctx)
		case <-p.View.StaleC():
			p.pull(ctx)
		}
	}
}

func (p *Poller) pull(ctx context.Context) {
	snap, err := p.Fetcher.Fetch(ctx, p.Room)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn().Err(err).Str("module", "replica").Str("room_id", string(p.Room)).Msg("state pull failed")
		}
		return
	}
	if p.View.ApplySnapshot(snap) && p.OnChange != nil {
		p.OnChange(snap)
	}
}

// Follow reads the room WebSocket into v until ctx is done or the socket drops.
func Follow(ctx context.Context, wsURL, token string, v *View) error {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f notify.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		switch f.Type {
		case notify.FrameEvent:
			if f.Event != nil {
				v.ApplyEvent(*f.Event)
			}
		case notify.FrameSnapshot:
			v.ApplySnapshot(f.Snapshot)
		case notify.FrameError:
			log.Warn().Str("module", "replica").Str("error", f.Error).Msg("server error frame")
		}
	}
}
