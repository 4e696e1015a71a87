// Package bus fans state changes out to every connected websocket client
// across all server processes, through a Redis pub/sub channel.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ammar0144/socialcache/pkg/redis"
)

// Emitter is the side of the bus request handlers see.
type Emitter interface {
	Emit(ctx context.Context, event string, payload interface{})
}

// Bus publishes events to the shared channel and relays events published
// by other processes to the local hub.
type Bus struct {
	manager *redis.Manager
	config  *Config
	origin  string
	hub     *Hub
	metrics *Metrics
	log     zerolog.Logger

	pending sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a bus publishing on the configured Redis channel. Nothing is
// received until Start subscribes.
func New(manager *redis.Manager, config *Config, log zerolog.Logger) (*Bus, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bus config: %w", err)
	}
	metrics := &Metrics{}
	return &Bus{
		manager: manager,
		config:  config,
		origin:  newOrigin(),
		hub:     newHub(config, metrics, log),
		metrics: metrics,
		log:     log,
	}, nil
}

// newOrigin derives a process id from host, pid and a random nonce.
func newOrigin() string {
	host, _ := os.Hostname()
	sum := xxhash.Sum64String(host + ":" + strconv.Itoa(os.Getpid()) + ":" + uuid.NewString())
	return strconv.FormatUint(sum, 16)
}

// Origin identifies this process in published envelopes.
func (b *Bus) Origin() string { return b.origin }

// Hub returns the websocket hub local deliveries go to.
func (b *Bus) Hub() *Hub { return b.hub }

// Metrics returns the publish and delivery counters.
func (b *Bus) Metrics() MetricsSnapshot { return b.metrics.GetSnapshot() }

// Emit delivers the event to local clients at once and publishes it for the
// other processes in the background. It never blocks on Redis and never
// fails: errors are logged and counted.
func (b *Bus) Emit(ctx context.Context, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}
	env := Envelope{Event: event, Payload: data, Origin: b.origin}
	b.metrics.emitted.Add(1)
	b.hub.broadcast(env)

	msg, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("encode event failed")
		return
	}
	b.pending.Add(1)
	go func() {
		defer b.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.PublishTimeout)
		defer cancel()
		if err := b.manager.Publish(ctx, b.config.Channel, msg); err != nil {
			b.metrics.publishFailed.Add(1)
			b.log.Error().Err(err).Str("event", event).Msg("publish event failed")
		}
	}()
}

// Start subscribes to the shared channel and relays remote events until ctx
// is cancelled or Close is called. It returns once the subscription is live.
func (b *Bus) Start(ctx context.Context) error {
	sub, err := b.manager.Subscribe(ctx, b.config.Channel)
	if err != nil {
		return err
	}
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("%w: subscribe %s: %v", redis.ErrCacheUnavailable, b.config.Channel, err)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go func() {
		defer close(b.done)
		defer sub.Close()
		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				b.relay([]byte(msg.Payload))
			}
		}
	}()
	b.log.Info().Str("channel", b.config.Channel).Str("origin", b.origin).Msg("bus subscribed")
	return nil
}

func (b *Bus) relay(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.log.Warn().Err(err).Msg("undecodable event ignored")
		return
	}
	if env.Origin == b.origin {
		return
	}
	b.metrics.received.Add(1)
	b.hub.broadcast(env)
}

// Close waits for in-flight publishes, stops relaying and disconnects the
// local clients.
func (b *Bus) Close() {
	b.pending.Wait()
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	b.hub.close()
}
