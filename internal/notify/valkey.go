package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"

	"github.com/dkeye/songroom/internal/core"
	"github.com/dkeye/songroom/internal/domain"
)

const ChannelPrefix = "songroom:room:"

func RoomChannel(id domain.RoomID) string { return ChannelPrefix + string(id) }

// Broker is the pub/sub transport between server instances.
type Broker interface {
	Publish(ctx context.Context, channel string, msg []byte) error
	PSubscribe(ctx context.Context, pattern string, fn func(channel string, msg []byte)) error
	Close()
}

type ValkeyBroker struct {
	client valkey.Client
}

func NewValkeyBroker(addr string) (*ValkeyBroker, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("valkey connect %s: %w", addr, err)
	}
	return &ValkeyBroker{client: client}, nil
}

func (b *ValkeyBroker) Publish(ctx context.Context, channel string, msg []byte) error {
	return b.client.Do(ctx, b.client.B().Publish().Channel(channel).Message(string(msg)).Build()).Error()
}

// PSubscribe blocks until ctx is done or the connection fails.
func (b *ValkeyBroker) PSubscribe(ctx context.Context, pattern string, fn func(channel string, msg []byte)) error {
	return b.client.Receive(ctx, b.client.B().Psubscribe().Pattern(pattern).Build(), func(m valkey.PubSubMessage) {
		fn(m.Channel, []byte(m.Message))
	})
}

func (b *ValkeyBroker) Close() { b.client.Close() }

// Bridge publishes events to a Broker and feeds what it hears back into the
// local hub. Only events stamped with the bridge's epoch are delivered, so an
// instance never forwards versions minted by another process's room sessions.
type Bridge struct {
	broker Broker
	local  *Hub
	epoch  string
	queue  chan core.Event
}

func NewBridge(broker Broker, local *Hub, epoch string, buffer int) *Bridge {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bridge{broker: broker, local: local, epoch: epoch, queue: make(chan core.Event, buffer)}
}

// Publish queues e for the broker and drops it when the queue is full.
func (b *Bridge) Publish(e core.Event) {
	select {
	case b.queue <- e:
	default:
		log.Warn().Str("module", "notify.bridge").Str("room_id", string(e.RoomID)).Str("kind", string(e.Kind)).Msg("outbound queue full, event dropped")
	}
}

// Run pumps both directions until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	go b.sendLoop(ctx)
	err := b.broker.PSubscribe(ctx, ChannelPrefix+"*", b.deliver)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *Bridge) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.queue:
			msg, err := json.Marshal(e)
			if err != nil {
				log.Error().Err(err).Str("module", "notify.bridge").Msg("marshal event")
				continue
			}
			if err := b.broker.Publish(ctx, RoomChannel(e.RoomID), msg); err != nil {
				log.Warn().Err(err).Str("module", "notify.bridge").Str("room_id", string(e.RoomID)).Msg("broker publish failed")
			}
		}
	}
}

func (b *Bridge) deliver(channel string, msg []byte) {
	var e core.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		log.Warn().Err(err).Str("module", "notify.bridge").Str("channel", channel).Msg("bad event")
		return
	}
	if want := strings.TrimPrefix(channel, ChannelPrefix); string(e.RoomID) != want {
		log.Warn().Str("module", "notify.bridge").Str("channel", channel).Str("room_id", string(e.RoomID)).Msg("event on wrong channel")
		return
	}
	if e.Epoch != b.epoch {
		log.Debug().Str("module", "notify.bridge").Str("room_id", string(e.RoomID)).Str("epoch", e.Epoch).Msg("foreign epoch, skipped")
		return
	}
	b.local.Publish(e)
}
