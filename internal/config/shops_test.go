package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shophours/internal/hours"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopsYAML = `
defaults:
  time_zone: Europe/Berlin
  schedule:
    open_time: "09:00"
    close_time: "18:00"
    break_start: "13:00"
    break_end: "14:00"
  days_off: [6, 7]
shops:
  - id: bakery
    name: Corner Bakery
    days:
      - day_of_week: 6
        is_open: true
        open_time: "07:00"
        close_time: "12:00"
        special_note: Weekend bake
  - id: kiosk
    name: Station Kiosk
    time_zone: Europe/London
    days:
      - day_of_week: 7
        is_open: true
        is_24_hours: true
`

func TestLoadShopsConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "shops.yaml", shopsYAML)

	cfg, err := LoadShopsConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Shops, 2)

	bakery := cfg.GetShopByID("bakery")
	require.NotNil(t, bakery)
	ws, err := cfg.WeeklySchedule(*bakery, "UTC")
	require.NoError(t, err)

	assert.Equal(t, "Europe/Berlin", ws.TimeZone)
	mon := ws.Day(hours.Monday)
	assert.True(t, mon.IsOpen)
	assert.Equal(t, "09:00", mon.OpenTime.String())
	assert.Equal(t, "13:00", mon.BreakStart.String())

	sat := ws.Day(hours.Saturday)
	assert.True(t, sat.IsOpen)
	assert.Equal(t, "07:00", sat.OpenTime.String())
	assert.Nil(t, sat.BreakStart)
	assert.Equal(t, "Weekend bake", sat.SpecialNote)

	assert.False(t, ws.Day(hours.Sunday).IsOpen)

	kiosk := cfg.GetShopByID("kiosk")
	require.NotNil(t, kiosk)
	ws, err = cfg.WeeklySchedule(*kiosk, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", ws.TimeZone)
	assert.True(t, ws.Day(hours.Sunday).Is24Hours)

	assert.Nil(t, cfg.GetShopByID("missing"))
}

func TestShopsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ShopsConfig
		wantErr string
	}{
		{"no shops", ShopsConfig{}, "no shops defined"},
		{"missing id", ShopsConfig{Shops: []ShopConfig{{Name: "x"}}}, "id is required"},
		{"duplicate id", ShopsConfig{Shops: []ShopConfig{{ID: "a"}, {ID: "a"}}}, "duplicate id"},
		{
			"bad day off",
			ShopsConfig{Shops: []ShopConfig{{ID: "a"}}, Defaults: ShopDefaultsConfig{DaysOff: []int{8}}},
			"days_off[0]",
		},
		{
			"close before open",
			ShopsConfig{
				Shops:    []ShopConfig{{ID: "a"}},
				Defaults: ShopDefaultsConfig{Schedule: &DayHoursConfig{OpenTime: "18:00", CloseTime: "09:00"}},
			},
			"close_time",
		},
		{
			"unknown time zone",
			ShopsConfig{Shops: []ShopConfig{{ID: "a", TimeZone: "Nowhere/Land"}}},
			"time_zone",
		},
		{
			"bad day row",
			ShopsConfig{Shops: []ShopConfig{{ID: "a", Days: []hours.BackendDay{{DayOfWeek: 9}}}}},
			"day_of_week",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func touch(t *testing.T, path string, offset time.Duration) {
	t.Helper()
	future := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, future, future))
}

func TestWatchShops_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "shops.yaml", shopsYAML)

	var (
		mu      sync.Mutex
		updates []ShopsUpdate
	)
	snapshot := func() []ShopsUpdate {
		mu.Lock()
		defer mu.Unlock()
		return append([]ShopsUpdate(nil), updates...)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := WatchShops(ctx, path, 10*time.Millisecond, nil, func(u ShopsUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})
	require.NoError(t, err)

	got := snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"bakery", "kiosk"}, got[0].Changed)

	// A newer mtime with identical content is not reported.
	touch(t, path, time.Minute)
	time.Sleep(100 * time.Millisecond)
	require.Len(t, snapshot(), 1)

	updated := shopsYAML + "  - id: florist\n    name: Florist\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	touch(t, path, 2*time.Minute)

	assert.Eventually(t, func() bool {
		got := snapshot()
		return len(got) == 2 && len(got[1].Config.Shops) == 3
	}, 2*time.Second, 10*time.Millisecond)
	got = snapshot()
	assert.Equal(t, []string{"florist"}, got[1].Changed)
	assert.Empty(t, got[1].Removed)
}

func TestDiffShops(t *testing.T) {
	base := func() *ShopsConfig {
		return &ShopsConfig{
			Defaults: ShopDefaultsConfig{TimeZone: "Europe/Berlin", DaysOff: []int{7}},
			Shops: []ShopConfig{
				{ID: "bakery", Name: "Corner Bakery"},
				{ID: "kiosk", Name: "Station Kiosk"},
			},
		}
	}

	changed, removed := DiffShops(nil, base())
	assert.Equal(t, []string{"bakery", "kiosk"}, changed)
	assert.Empty(t, removed)

	changed, removed = DiffShops(base(), base())
	assert.Empty(t, changed)
	assert.Empty(t, removed)

	next := base()
	next.Shops[1].Days = []hours.BackendDay{{DayOfWeek: 7, IsOpen: true, Is24Hours: true}}
	next.Shops = append(next.Shops[1:], ShopConfig{ID: "florist"})
	changed, removed = DiffShops(base(), next)
	assert.Equal(t, []string{"kiosk", "florist"}, changed)
	assert.Equal(t, []string{"bakery"}, removed)

	next = base()
	next.Defaults.DaysOff = []int{6, 7}
	changed, _ = DiffShops(base(), next)
	assert.Equal(t, []string{"bakery", "kiosk"}, changed)
}

func TestWatchShops_InitialLoadError(t *testing.T) {
	err := WatchShops(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), time.Second, nil, nil)
	assert.Error(t, err)
}
