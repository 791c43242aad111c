package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
)

func TestLocalEventBus_PublishSubscribe(t *testing.T) {
	bus := NewLocalEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetClinicChannel("c-1")
	events, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event := entities.NewAppointmentEvent("c-1", "a-1", entities.AppointmentEventRescheduled)
	require.NoError(t, bus.Publish(ctx, channel, event))

	select {
	case got := <-events:
		assert.Equal(t, event.ID, got.ID)
		assert.Equal(t, entities.AppointmentEventRescheduled, got.EventType)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestLocalEventBus_OtherChannelsAreIsolated(t *testing.T) {
	bus := NewLocalEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, providers.GetClinicChannel("c-1"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, providers.GetClinicChannel("c-2"),
		entities.NewAppointmentEvent("c-2", "a-9", entities.AppointmentEventDeleted)))

	select {
	case <-events:
		t.Fatal("received event for another clinic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalEventBus_CancelClosesChannel(t *testing.T) {
	bus := NewLocalEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, "x")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestLocalEventBus_Close(t *testing.T) {
	bus := NewLocalEventBus()
	events, err := bus.Subscribe(context.Background(), "x")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-events
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "x")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}

func TestFanout_TracksFirstAndLastSubscriber(t *testing.T) {
	f := newFanout()

	a, first := f.add("x")
	assert.True(t, first)
	b, first := f.add("x")
	assert.False(t, first)
	assert.Equal(t, 2, f.count("x"))

	assert.False(t, f.remove("x", a))
	assert.False(t, f.remove("x", a), "removing twice is a no-op")
	assert.True(t, f.remove("x", b))
	assert.Zero(t, f.count("x"))

	_, first = f.add("x")
	assert.True(t, first, "an emptied channel starts over")
}

func TestFanout_SlowSubscriberDoesNotBlock(t *testing.T) {
	f := newFanout()
	slow, _ := f.add("x")

	for i := 0; i < subscriberBuffer+10; i++ {
		f.deliver("x", entities.NewAppointmentEvent("c-1", "a-1", entities.AppointmentEventStatusChanged))
	}
	assert.Len(t, slow, subscriberBuffer)
}

func TestFanout_Shutdown(t *testing.T) {
	f := newFanout()
	sub, _ := f.add("x")

	f.shutdown()
	_, ok := <-sub
	assert.False(t, ok)

	late, first := f.add("x")
	assert.False(t, first)
	_, ok = <-late
	assert.False(t, ok)
}
