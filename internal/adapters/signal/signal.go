// Package signal serves the per-room WebSocket: change events and periodic
// snapshots go out, player commands come in.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/songroom/internal/adapters"
	"github.com/dkeye/songroom/internal/app/orch"
	"github.com/dkeye/songroom/internal/domain"
	"github.com/dkeye/songroom/internal/notify"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	PingPeriod        time.Duration
	ReconcileInterval time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	SendBuffer        int
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RoomRateLimiter
	opts    Options
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RoomRateLimiter, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	return &SignalWSController{Orch: o, Limiter: limiter, opts: opts}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// wsSession is one participant watching one room over one socket.
type wsSession struct {
	actor  domain.UserID
	room   domain.RoomID
	conn   *WsSignalConn
	sub    *notify.Subscription
	cancel context.CancelFunc
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal subscribes before upgrading so refusals are plain HTTP errors.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context, actor domain.UserID, room domain.RoomID) {
	sub, snap, err := ctl.Orch.Subscribe(actor, room)
	if err != nil {
		status, code := adapters.Classify(err)
		c.JSON(status, gin.H{"error": code})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	s := &wsSession{
		actor:  actor,
		room:   room,
		conn:   &WsSignalConn{conn: ws, send: make(chan []byte, ctl.opts.SendBuffer)},
		sub:    sub,
		cancel: cancel,
	}
	log.Info().Str("module", "signal").Str("user_id", string(actor)).Str("room_id", string(room)).Msg("new WS connection")

	ctl.sendSnapshot(s, snap)
	go ctl.writePump(ctx, s)
	go ctl.eventPump(ctx, s)
	go ctl.readPump(ctx, s)
}
