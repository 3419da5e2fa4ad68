package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	h.Publish(MonitorCountChanged, MonitorCountEvent{Old: 0, New: 2})

	ev := <-ch
	assert.Equal(t, MonitorCountChanged, ev.Name)
	payload, err := DecodeAs[MonitorCountEvent](ev)
	require.NoError(t, err)
	assert.Equal(t, 0, payload.Old)
	assert.Equal(t, 2, payload.New)

	h.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
	assert.Equal(t, 0, h.Subscribers())

	// Unsubscribing twice is harmless.
	h.Unsubscribe(ch)
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish(PowerLineChanged, PowerLineEvent{OnAC: i%2 == 0})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHubSubscribeToFilters(t *testing.T) {
	h := NewEventHub()
	all := h.Subscribe()
	changes := h.SubscribeTo(PowerLineChanged, MonitorCountChanged)

	for i := 0; i < subscriberBuffer*2; i++ {
		h.Publish(SafetyRevert, MessageEvent{Message: "display topology restored"})
	}
	h.Publish(PowerLineChanged, PowerLineEvent{OnAC: false})

	assert.Len(t, all, subscriberBuffer)
	require.Len(t, changes, 1)
	ev := <-changes
	assert.Equal(t, PowerLineChanged, ev.Name)

	h.Unsubscribe(changes)
	assert.Equal(t, 1, h.Subscribers())
}

func TestNilHubPublish(t *testing.T) {
	var h *EventHub
	h.Publish(SystemResume, MessageEvent{Message: "resume"})
}

func TestDecodeAsEmpty(t *testing.T) {
	v, err := DecodeAs[PowerLineEvent](Event{Name: PowerLineChanged})
	require.NoError(t, err)
	assert.False(t, v.OnAC)
}
