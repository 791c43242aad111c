package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// subscriberBuffer bounds how far a slow SSE client may fall behind before events are dropped
const subscriberBuffer = 100

type subscriber = chan *entities.AppointmentEvent

// fanout is the per-process subscriber registry shared by both buses
type fanout struct {
	mu          sync.RWMutex
	subscribers map[string]map[subscriber]struct{}
	closed      bool
}

func newFanout() *fanout {
	return &fanout{subscribers: make(map[string]map[subscriber]struct{})}
}

// add registers a subscriber and reports whether it is the channel's first.
// Once shut down it hands out channels that are already closed.
func (f *fanout) add(channel string) (subscriber, bool) {
	ch := make(subscriber, subscriberBuffer)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, false
	}
	subs, exists := f.subscribers[channel]
	if !exists {
		subs = make(map[subscriber]struct{})
		f.subscribers[channel] = subs
	}
	subs[ch] = struct{}{}
	return ch, !exists
}

// remove closes one subscriber and reports whether the channel is now empty
func (f *fanout) remove(channel string, ch subscriber) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	subs := f.subscribers[channel]
	if _, ok := subs[ch]; !ok {
		return false
	}
	delete(subs, ch)
	close(ch)
	if len(subs) > 0 {
		return false
	}
	delete(f.subscribers, channel)
	return true
}

// deliver hands the event to every subscriber without blocking on slow ones
func (f *fanout) deliver(channel string, event *entities.AppointmentEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for sub := range f.subscribers[channel] {
		select {
		case sub <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber full, skipping event")
		}
	}
}

func (f *fanout) count(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[channel])
}

// drop closes every subscriber of a channel
func (f *fanout) drop(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subscribers[channel] {
		close(sub)
	}
	delete(f.subscribers, channel)
}

// shutdown closes every subscriber and refuses new ones
func (f *fanout) shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for channel, subs := range f.subscribers {
		for sub := range subs {
			close(sub)
		}
		delete(f.subscribers, channel)
	}
	f.closed = true
}
