package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shophours/internal/events"
	"shophours/internal/hours"
	"shophours/internal/override"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testZone = "Europe/Berlin"

func tod(s string) *hours.TimeOfDay {
	t, err := hours.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func weekdaysNineToSix() hours.WeeklySchedule {
	ws := hours.ClosedWeek(testZone)
	for _, d := range []hours.DayOfWeek{hours.Monday, hours.Tuesday, hours.Wednesday, hours.Thursday, hours.Friday} {
		ws.Days[d] = hours.DaySchedule{Day: d, IsOpen: true, OpenTime: tod("09:00"), CloseTime: tod("18:00")}
	}
	return ws
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func berlin(t *testing.T, day, hour, minute int) time.Time {
	loc, err := time.LoadLocation(testZone)
	require.NoError(t, err)
	return time.Date(2026, 1, day, hour, minute, 0, 0, loc)
}

type fixture struct {
	svc   *Service
	store *MemoryStore
	clock *fixedClock
	bus   *events.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := NewMemoryStore()
	bus := events.NewBus()
	clock := &fixedClock{now: berlin(t, 5, 10, 0)} // Monday 10:00
	svc := NewService(store, override.NewManager(nil, bus, nil), bus, cfg, nil).WithClock(clock.Now)
	return &fixture{svc: svc, store: store, clock: clock, bus: bus}
}

func TestService_GetStatus(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", weekdaysNineToSix()))

	st, err := f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpen, st.State)
	assert.Equal(t, "Open until 6:00 PM", st.Message)

	f.clock.Set(berlin(t, 10, 12, 0)) // Saturday
	st, err = f.svc.ForceRecompute(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateClosedForDay, st.State)
	assert.Equal(t, hours.Monday, st.NextOpen.Day)
}

func TestService_ScheduleNotFound(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.svc.GetStatus(ctx, "ghost")
	assert.ErrorIs(t, err, hours.ErrScheduleNotFound)

	_, err = f.svc.SetOverride(ctx, "ghost", true, "", "alice")
	assert.ErrorIs(t, err, hours.ErrScheduleNotFound)

	_, err = f.svc.GetWeeklyPreview(ctx, "ghost")
	assert.ErrorIs(t, err, hours.ErrScheduleNotFound)
}

func TestService_InvalidStoredSchedule(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	ws := weekdaysNineToSix()
	ws.Days[hours.Monday].CloseTime = nil
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", ws))

	_, err := f.svc.GetStatus(ctx, "shop-1")
	assert.ErrorIs(t, err, hours.ErrInvalidSchedule)

	// An override still pins the shop while the day rows are broken.
	st, err := f.svc.SetOverride(ctx, "shop-1", false, "Schedule under repair", "alice")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyClosed, st.State)
	assert.Equal(t, "Manually closed: Schedule under repair", st.Message)

	st, err = f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyClosed, st.State)

	_, err = f.svc.ClearOverride(ctx, "shop-1", "alice")
	assert.ErrorIs(t, err, hours.ErrInvalidSchedule)
}

func TestService_SetOverrideNeedsTimeZone(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	ws := weekdaysNineToSix()
	ws.TimeZone = "Mars/Olympus"
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", ws))

	_, err := f.svc.SetOverride(ctx, "shop-1", true, "", "alice")
	assert.ErrorIs(t, err, hours.ErrInvalidSchedule)

	// Nothing was pinned by the failed call.
	ws.TimeZone = testZone
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", ws))
	st, err := f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpen, st.State)
	assert.Nil(t, st.Override)
}

func TestService_OverrideLifecycle(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", weekdaysNineToSix()))

	st, err := f.svc.SetOverride(ctx, "shop-1", false, "Burst pipe", "alice")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyClosed, st.State)
	assert.False(t, st.IsOpen)
	assert.Equal(t, "Manually closed: Burst pipe", st.Message)

	// The override is visible to the very next read.
	st, err = f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyClosed, st.State)
	require.NotNil(t, st.Override)
	assert.Equal(t, "alice", st.Override.Actor)
	assert.Nil(t, st.Override.ExpiresAt)

	st, err = f.svc.ClearOverride(ctx, "shop-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpen, st.State)

	st, err = f.svc.ClearOverride(ctx, "shop-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpen, st.State)
}

func TestService_OverrideExpiresAtMidnight(t *testing.T) {
	f := newFixture(t, Config{ExpireOverridesAtMidnight: true})
	ctx := context.Background()
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", weekdaysNineToSix()))

	f.clock.Set(berlin(t, 5, 20, 0)) // Monday after close
	st, err := f.svc.SetOverride(ctx, "shop-1", true, "Late delivery", "alice")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyOpen, st.State)
	require.NotNil(t, st.Override.ExpiresAt)
	assert.True(t, st.Override.ExpiresAt.Equal(berlin(t, 6, 0, 0)))

	f.clock.Set(berlin(t, 5, 23, 59))
	st, err = f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyOpen, st.State)

	f.clock.Set(berlin(t, 6, 0, 0))
	st, err = f.svc.GetStatus(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpensLater, st.State)
}

func TestService_PutScheduleAndPreview(t *testing.T) {
	f := newFixture(t, Config{DefaultTimeZone: testZone})
	ctx := context.Background()

	var published []events.Event
	f.bus.Subscribe(func(e events.Event) error {
		published = append(published, e)
		return nil
	}, events.ScheduleUpdated)

	ws := weekdaysNineToSix()
	ws.TimeZone = ""
	saved, err := f.svc.PutSchedule(ctx, "shop-1", ws, "alice")
	require.NoError(t, err)
	assert.Equal(t, testZone, saved.TimeZone)

	preview, err := f.svc.GetWeeklyPreview(ctx, "shop-1")
	require.NoError(t, err)
	require.Len(t, preview, hours.DaysPerWeek)
	assert.Equal(t, "9:00 AM - 6:00 PM", preview[0].Hours)
	assert.Equal(t, "Closed", preview[6].Hours)

	require.Len(t, published, 1)
	assert.Equal(t, "shop-1", published[0].ShopID)
	assert.Equal(t, "alice", published[0].Actor)
}

func TestService_PutScheduleRejectsInvalid(t *testing.T) {
	f := newFixture(t, Config{DefaultTimeZone: testZone})
	ctx := context.Background()

	ws := weekdaysNineToSix()
	ws.Days[hours.Friday].BreakStart = tod("08:00")
	ws.Days[hours.Friday].BreakEnd = tod("09:30")

	_, err := f.svc.PutSchedule(ctx, "shop-1", ws, "alice")
	var invalid *hours.InvalidScheduleError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, hours.Friday, *invalid.Day)
	assert.Equal(t, "break_start", invalid.Field)

	_, err = f.store.GetSchedule(ctx, "shop-1")
	assert.ErrorIs(t, err, hours.ErrScheduleNotFound)
}

func TestService_UpdateDay(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	require.NoError(t, f.store.SaveSchedule(ctx, "shop-1", weekdaysNineToSix()))

	sunday := hours.DaySchedule{Day: hours.Sunday, IsOpen: true, OpenTime: tod("11:00"), CloseTime: tod("15:00"), SpecialNote: "Brunch"}
	ws, err := f.svc.UpdateDay(ctx, "shop-1", sunday, "alice")
	require.NoError(t, err)
	assert.Equal(t, sunday, ws.Days[hours.Sunday])
	assert.True(t, ws.Days[hours.Monday].IsOpen)

	_, err = f.svc.UpdateDay(ctx, "ghost", sunday, "alice")
	assert.ErrorIs(t, err, hours.ErrScheduleNotFound)

	bad := hours.DaySchedule{Day: hours.Sunday, IsOpen: true}
	_, err = f.svc.UpdateDay(ctx, "shop-1", bad, "alice")
	assert.ErrorIs(t, err, hours.ErrInvalidSchedule)

	stored, err := f.store.GetSchedule(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, sunday, stored.Days[hours.Sunday])
}

func TestService_EnsureSchedule(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	written, err := f.svc.EnsureSchedule(ctx, "shop-1", weekdaysNineToSix(), false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = f.svc.EnsureSchedule(ctx, "shop-1", hours.ClosedWeek(testZone), false)
	require.NoError(t, err)
	assert.False(t, written)

	written, err = f.svc.EnsureSchedule(ctx, "shop-1", hours.ClosedWeek(testZone), true)
	require.NoError(t, err)
	assert.True(t, written)

	stored, err := f.store.GetSchedule(ctx, "shop-1")
	require.NoError(t, err)
	assert.False(t, stored.Days[hours.Monday].IsOpen)
}

type mockSchedules struct {
	mock.Mock
}

func (m *mockSchedules) GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(hours.WeeklySchedule), args.Error(1)
}

func (m *mockSchedules) SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error {
	return m.Called(ctx, shopID, schedule).Error(0)
}

func (m *mockSchedules) Invalidate(ctx context.Context, shopID string) error {
	return m.Called(ctx, shopID).Error(0)
}

func TestService_ForceRecomputeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	schedules := new(mockSchedules)
	schedules.On("Invalidate", ctx, "shop-1").Return(errors.New("redis down")).Once()
	schedules.On("GetSchedule", ctx, "shop-1").Return(weekdaysNineToSix(), nil).Once()

	clock := &fixedClock{now: berlin(t, 5, 10, 0)}
	svc := NewService(schedules, override.NewManager(nil, nil, nil), nil, Config{}, nil).WithClock(clock.Now)

	st, err := svc.ForceRecompute(ctx, "shop-1")
	require.NoError(t, err)
	assert.Equal(t, hours.StateOpen, st.State)
	schedules.AssertExpectations(t)
}

type mockOverrides struct {
	mock.Mock
}

func (m *mockOverrides) Set(ctx context.Context, shopID string, isForcedOpen bool, reason, actor string, now time.Time, expiresAt *time.Time) (hours.Override, error) {
	args := m.Called(ctx, shopID, isForcedOpen, reason, actor, now, expiresAt)
	return args.Get(0).(hours.Override), args.Error(1)
}

func (m *mockOverrides) Clear(ctx context.Context, shopID, actor string, now time.Time) (*hours.Override, error) {
	args := m.Called(ctx, shopID, actor, now)
	o, _ := args.Get(0).(*hours.Override)
	return o, args.Error(1)
}

func (m *mockOverrides) Active(ctx context.Context, shopID string, now time.Time) (*hours.Override, error) {
	args := m.Called(ctx, shopID, now)
	o, _ := args.Get(0).(*hours.Override)
	return o, args.Error(1)
}

func TestService_ClearOverrideReportsOverrideSetMeanwhile(t *testing.T) {
	ctx := context.Background()
	now := berlin(t, 5, 10, 0)
	store := NewMemoryStore()
	require.NoError(t, store.SaveSchedule(ctx, "shop-1", weekdaysNineToSix()))

	cleared := &hours.Override{ID: "old", ShopID: "shop-1", IsForcedOpen: true, SetAt: now}
	newer := &hours.Override{ID: "new", ShopID: "shop-1", IsForcedOpen: false, Reason: "Stocktake", Active: true, SetAt: now}

	overrides := new(mockOverrides)
	overrides.On("Clear", ctx, "shop-1", "alice", now).Return(cleared, nil).Once()
	overrides.On("Active", ctx, "shop-1", now).Return(newer, nil).Once()

	svc := NewService(store, overrides, nil, Config{}, nil).WithClock(func() time.Time { return now })
	st, err := svc.ClearOverride(ctx, "shop-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, hours.StateManuallyClosed, st.State)
	require.NotNil(t, st.Override)
	assert.Equal(t, "new", st.Override.ID)
	overrides.AssertExpectations(t)
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	schedules := new(mockSchedules)
	schedules.On("GetSchedule", ctx, "shop-1").Return(hours.WeeklySchedule{}, boom)

	svc := NewService(schedules, override.NewManager(nil, nil, nil), nil, Config{}, nil)
	_, err := svc.GetStatus(ctx, "shop-1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, hours.ErrScheduleNotFound)
}

func TestNextMidnight(t *testing.T) {
	loc, err := time.LoadLocation(testZone)
	require.NoError(t, err)

	got := NextMidnight(time.Date(2026, 1, 5, 23, 30, 0, 0, time.UTC), loc)
	assert.True(t, got.Equal(time.Date(2026, 1, 7, 0, 0, 0, 0, loc)), got.String())

	got = NextMidnight(time.Date(2026, 3, 28, 12, 0, 0, 0, loc), loc)
	assert.True(t, got.Equal(time.Date(2026, 3, 29, 0, 0, 0, 0, loc)))
}
