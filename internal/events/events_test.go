package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishRoutesByType(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(func(e Event) error {
		got = append(got, e)
		return nil
	}, OverrideSet, OverrideCleared)

	require.NoError(t, bus.Publish(Event{Type: OverrideSet, ShopID: "shop-1"}))
	require.NoError(t, bus.Publish(Event{Type: ScheduleUpdated, ShopID: "shop-1"}))
	require.NoError(t, bus.Publish(Event{Type: OverrideCleared, ShopID: "shop-2"}))

	require.Len(t, got, 2)
	assert.Equal(t, "shop-1", got[0].ShopID)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, OverrideCleared, got[1].Type)
}

func TestBus_PublishJoinsErrors(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	calls := 0
	bus.Subscribe(func(Event) error { calls++; return boom }, ScheduleUpdated)
	bus.Subscribe(func(Event) error { calls++; return nil }, ScheduleUpdated)

	err := bus.Publish(Event{Type: ScheduleUpdated})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestBus_NilDropsEvents(t *testing.T) {
	var bus *Bus
	assert.NoError(t, bus.Publish(Event{Type: OverrideSet}))
}

func TestNew_EncodesPayload(t *testing.T) {
	at := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	e, err := New(OverrideSet, "shop-1", "alice", map[string]bool{"is_forced_open": true}, at)
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_forced_open":true}`, string(e.Payload))
	assert.Equal(t, at, e.CreatedAt)
	assert.Equal(t, "alice", e.Actor)
}
