package config

import (
	"fmt"
	"os"

	"shophours/internal/hours"

	"gopkg.in/yaml.v3"
)

// ShopConfig represents a single shop in shops.yaml.
type ShopConfig struct {
	ID       string             `yaml:"id"`
	Name     string             `yaml:"name"`
	TimeZone string             `yaml:"time_zone,omitempty"`
	Days     []hours.BackendDay `yaml:"days,omitempty"` // replaces the defaults for the listed days
}

// DayHoursConfig is the default opening span applied to working days.
type DayHoursConfig struct {
	OpenTime   string `yaml:"open_time"`             // "09:00"
	CloseTime  string `yaml:"close_time"`            // "18:00"
	BreakStart string `yaml:"break_start,omitempty"` // "13:00"
	BreakEnd   string `yaml:"break_end,omitempty"`   // "14:00"
}

// ShopDefaultsConfig holds settings shared by every shop.
type ShopDefaultsConfig struct {
	TimeZone string          `yaml:"time_zone"`
	Schedule *DayHoursConfig `yaml:"schedule"`
	DaysOff  []int           `yaml:"days_off"` // 1=Mon, 7=Sun
}

// ShopsConfig is the root configuration for shops.yaml.
type ShopsConfig struct {
	Shops    []ShopConfig       `yaml:"shops"`
	Defaults ShopDefaultsConfig `yaml:"defaults"`
}

// LoadShopsConfig loads and validates shop seed schedules from a YAML file.
func LoadShopsConfig(path string) (*ShopsConfig, error) {
	if path == "" {
		path = "configs/shops.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shops config: %w", err)
	}

	var cfg ShopsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse shops config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate shops config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors, including every shop's
// resulting weekly schedule.
func (c *ShopsConfig) Validate() error {
	if len(c.Shops) == 0 {
		return fmt.Errorf("no shops defined")
	}

	for i, d := range c.Defaults.DaysOff {
		if d < 1 || d > 7 {
			return fmt.Errorf("defaults.days_off[%d]: invalid day %d, must be 1-7 (1=Mon, 7=Sun)", i, d)
		}
	}

	ids := make(map[string]bool)
	for i, shop := range c.Shops {
		if shop.ID == "" {
			return fmt.Errorf("shop[%d]: id is required", i)
		}
		if ids[shop.ID] {
			return fmt.Errorf("shop[%d]: duplicate id '%s'", i, shop.ID)
		}
		ids[shop.ID] = true

		ws, err := c.WeeklySchedule(shop, "UTC")
		if err != nil {
			return fmt.Errorf("shop[%d] %s: %w", i, shop.ID, err)
		}
		if err := hours.Validate(ws); err != nil {
			return fmt.Errorf("shop[%d] %s: %w", i, shop.ID, err)
		}
	}
	return nil
}

// WeeklySchedule builds the schedule of shop: default hours on every day
// not listed in days_off, then the shop's own day rows on top. The time
// zone falls back from the shop to defaults.time_zone to fallbackTZ.
func (c *ShopsConfig) WeeklySchedule(shop ShopConfig, fallbackTZ string) (hours.WeeklySchedule, error) {
	tz := shop.TimeZone
	if tz == "" {
		tz = c.Defaults.TimeZone
	}
	if tz == "" {
		tz = fallbackTZ
	}

	rows := make(map[int]hours.BackendDay, hours.DaysPerWeek)
	for iso := 1; iso <= hours.DaysPerWeek; iso++ {
		row := hours.BackendDay{DayOfWeek: iso}
		if c.Defaults.Schedule != nil && !c.isDayOff(iso) {
			s := c.Defaults.Schedule
			row.IsOpen = true
			row.OpenTime = s.OpenTime
			row.CloseTime = s.CloseTime
			row.BreakStart = s.BreakStart
			row.BreakEnd = s.BreakEnd
		}
		rows[iso] = row
	}
	for _, d := range shop.Days {
		if d.DayOfWeek < 1 || d.DayOfWeek > hours.DaysPerWeek {
			return hours.WeeklySchedule{}, fmt.Errorf("days: invalid day_of_week %d, must be 1-7", d.DayOfWeek)
		}
		rows[d.DayOfWeek] = d
	}

	list := make([]hours.BackendDay, 0, hours.DaysPerWeek)
	for iso := 1; iso <= hours.DaysPerWeek; iso++ {
		list = append(list, rows[iso])
	}
	return hours.FromBackendFormat(tz, list)
}

// GetShopByID returns shop config by ID.
func (c *ShopsConfig) GetShopByID(id string) *ShopConfig {
	for i := range c.Shops {
		if c.Shops[i].ID == id {
			return &c.Shops[i]
		}
	}
	return nil
}

func (c *ShopsConfig) isDayOff(iso int) bool {
	for _, d := range c.Defaults.DaysOff {
		if d == iso {
			return true
		}
	}
	return false
}
