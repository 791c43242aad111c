package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	redisclient "github.com/zatekoja/clinicdesk/internal/infrastructure/clients/redis"
)

// RedisEventBus relays appointment events between BFF instances over Redis
// Pub/Sub. Each instance holds one Redis subscription per channel that has
// at least one local subscriber.
type RedisEventBus struct {
	client *redisclient.Client
	fanout *fanout

	// mu orders subscription changes against the fanout so a channel's
	// first subscriber and its Redis subscription appear together
	mu            sync.Mutex
	subscriptions map[string]*redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		fanout:        newFanout(),
		subscriptions: make(map[string]*redis.PubSub),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Publish sends the event to every instance subscribed to the channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().
		Str("channel", channel).
		Str("clinic_id", event.ClinicID).
		Str("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Msg("published appointment event")
	return nil
}

// Subscribe registers a local subscriber until ctx is cancelled
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	b.mu.Lock()
	eventChan, first := b.fanout.add(channel)
	if first {
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		b.subscriptions[channel] = pubsub
		go b.receive(channel, pubsub)
	}
	b.mu.Unlock()

	log.Debug().Str("channel", channel).Int("subscribers", b.fanout.count(channel)).Msg("subscribed")

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.fanout.remove(channel, eventChan) {
			b.closeSubscription(channel)
		}
	}()

	return eventChan, nil
}

// receive relays Redis messages to local subscribers until the subscription ends
func (b *RedisEventBus) receive(channel string, pubsub *redis.PubSub) {
	defer func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// a lost subscription ends its streams so clients reconnect
		if b.subscriptions[channel] == pubsub {
			b.fanout.drop(channel)
			b.closeSubscription(channel)
		}
	}()

	messages := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var event entities.AppointmentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable event")
				continue
			}
			b.fanout.deliver(channel, &event)
		}
	}
}

// closeSubscription must be called with mu held
func (b *RedisEventBus) closeSubscription(channel string) error {
	pubsub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Debug().Str("channel", channel).Msg("closed subscription")
	return nil
}

// Unsubscribe drops every local subscriber of a channel
func (b *RedisEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fanout.drop(channel)
	return b.closeSubscription(channel)
}

// Close ends every subscription; later subscriptions receive a closed channel
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.fanout.shutdown()
	var errs []error
	for channel := range b.subscriptions {
		if err := b.closeSubscription(channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
