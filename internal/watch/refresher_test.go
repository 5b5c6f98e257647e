package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shophours/internal/hours"
	"shophours/internal/override"
	"shophours/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func setup(t *testing.T) (*status.Service, *status.MemoryStore, *clock, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	ws := hours.ClosedWeek("Europe/Berlin")
	ws.Days[hours.Monday] = hours.DaySchedule{
		Day: hours.Monday, IsOpen: true,
		OpenTime: hours.NewTimeOfDay(9, 0).Ptr(), CloseTime: hours.NewTimeOfDay(18, 0).Ptr(),
		BreakStart: hours.NewTimeOfDay(13, 0).Ptr(), BreakEnd: hours.NewTimeOfDay(14, 0).Ptr(),
	}

	store := status.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SaveSchedule(ctx, "a", ws))
	require.NoError(t, store.SaveSchedule(ctx, "b", ws))

	c := &clock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, loc)}
	svc := status.NewService(store, override.NewManager(nil, nil, nil), nil, status.Config{}, nil).WithClock(c.Now)
	return svc, store, c, loc
}

func TestRefresher_CheckNowReportsTransitions(t *testing.T) {
	svc, store, c, loc := setup(t)
	var seen []Transition
	r := NewRefresher(Config{}, svc, store, nil).OnChange(func(tr Transition) { seen = append(seen, tr) })
	ctx := context.Background()

	first := r.CheckNow(ctx)
	require.Len(t, first, 2)
	assert.Equal(t, "a", first[0].ShopID)
	assert.Equal(t, hours.StatusState(""), first[0].From)
	assert.Equal(t, hours.StateOpensLater, first[0].To)

	assert.Empty(t, r.CheckNow(ctx), "unchanged state is not reported")

	c.Set(time.Date(2026, 1, 5, 13, 30, 0, 0, loc))
	second := r.CheckNow(ctx)
	require.Len(t, second, 2)
	assert.Equal(t, hours.StateOpensLater, second[1].From)
	assert.Equal(t, hours.StateOnBreak, second[1].To)
	assert.Equal(t, "On break until 2:00 PM", second[1].Status.Message)

	assert.Len(t, seen, 4)
	state, ok := r.LastState("b")
	assert.True(t, ok)
	assert.Equal(t, hours.StateOnBreak, state)
}

func TestRefresher_SeesOverrides(t *testing.T) {
	svc, store, c, loc := setup(t)
	r := NewRefresher(Config{Shops: []string{"a"}}, svc, store, nil)
	ctx := context.Background()

	c.Set(time.Date(2026, 1, 5, 10, 0, 0, 0, loc))
	require.Len(t, r.CheckNow(ctx), 1)

	_, err := svc.SetOverride(ctx, "a", false, "Inventory", "alice")
	require.NoError(t, err)

	tr := r.CheckNow(ctx)
	require.Len(t, tr, 1)
	assert.Equal(t, hours.StateOpen, tr[0].From)
	assert.Equal(t, hours.StateManuallyClosed, tr[0].To)
}

type failingLister struct{}

func (failingLister) ListShopIDs(context.Context) ([]string, error) {
	return nil, errors.New("db gone")
}

func TestRefresher_ErrorsAreSkipped(t *testing.T) {
	svc, _, _, _ := setup(t)
	ctx := context.Background()

	assert.Nil(t, NewRefresher(Config{}, svc, failingLister{}, nil).CheckNow(ctx))

	r := NewRefresher(Config{Shops: []string{"a", "ghost"}}, svc, nil, nil)
	tr := r.CheckNow(ctx)
	require.Len(t, tr, 1)
	assert.Equal(t, "a", tr[0].ShopID)
	_, ok := r.LastState("ghost")
	assert.False(t, ok)
}

func TestRefresher_StartStop(t *testing.T) {
	svc, store, _, _ := setup(t)

	var (
		mu    sync.Mutex
		count int
	)
	r := NewRefresher(Config{Interval: 10 * time.Millisecond}, svc, store, nil).OnChange(func(Transition) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	r.Start()
	r.Start() // no-op

	assert.Eventually(t, func() bool {
		_, ok := r.LastState("b")
		return ok
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop() // no-op

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, count)
}
