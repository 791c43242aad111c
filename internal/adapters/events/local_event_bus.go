package events

import (
	"context"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
)

// LocalEventBus fans events out in-process. It backs single-instance
// deployments that run without Redis.
type LocalEventBus struct {
	fanout *fanout
}

// NewLocalEventBus creates an in-process event bus
func NewLocalEventBus() providers.EventBus {
	return &LocalEventBus{fanout: newFanout()}
}

// Publish delivers the event to every current subscriber without blocking
func (b *LocalEventBus) Publish(_ context.Context, channel string, event *entities.AppointmentEvent) error {
	b.fanout.deliver(channel, event)
	return nil
}

// Subscribe registers a subscriber that is removed when ctx is cancelled
func (b *LocalEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	eventChan, _ := b.fanout.add(channel)
	go func() {
		<-ctx.Done()
		b.fanout.remove(channel, eventChan)
	}()
	return eventChan, nil
}

// Unsubscribe drops every subscriber of a channel
func (b *LocalEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.fanout.drop(channel)
	return nil
}

// Close drops all subscribers; later subscriptions receive a closed channel
func (b *LocalEventBus) Close() error {
	b.fanout.shutdown()
	return nil
}
