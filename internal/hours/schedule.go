package hours

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DaySchedule is the trading configuration for one day of the week.
// Times are ignored when IsOpen is false; OpenTime and CloseTime are
// ignored when Is24Hours is true.
type DaySchedule struct {
	Day         DayOfWeek  `json:"day"`
	IsOpen      bool       `json:"is_open"`
	OpenTime    *TimeOfDay `json:"open_time"`
	CloseTime   *TimeOfDay `json:"close_time"`
	Is24Hours   bool       `json:"is_24_hours"`
	BreakStart  *TimeOfDay `json:"break_start"`
	BreakEnd    *TimeOfDay `json:"break_end"`
	SpecialNote string     `json:"special_note,omitempty"`
}

// HasBreak reports whether a break window is configured.
func (d DaySchedule) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// InBreak reports whether t falls in [BreakStart, BreakEnd).
func (d DaySchedule) InBreak(t TimeOfDay) bool {
	return d.HasBreak() && *d.BreakStart <= t && t < *d.BreakEnd
}

// Opens returns the first minute of trading for an open day.
func (d DaySchedule) Opens() TimeOfDay {
	if d.Is24Hours || d.OpenTime == nil {
		return StartOfDay
	}
	return *d.OpenTime
}

// Closes returns the closing time for an open day.
func (d DaySchedule) Closes() TimeOfDay {
	if d.Is24Hours || d.CloseTime == nil {
		return EndOfDay
	}
	return *d.CloseTime
}

// WeeklySchedule holds one DaySchedule per day, indexed by DayOfWeek,
// plus the IANA time zone the times are expressed in.
type WeeklySchedule struct {
	TimeZone string                   `json:"time_zone"`
	Days     [DaysPerWeek]DaySchedule `json:"days"`
}

// NewWeeklySchedule places days by their Day field. Exactly seven
// distinct days are required; input order does not matter.
func NewWeeklySchedule(timeZone string, days []DaySchedule) (WeeklySchedule, error) {
	ws := WeeklySchedule{TimeZone: timeZone}
	if len(days) != DaysPerWeek {
		return ws, &InvalidScheduleError{Field: "days", Reason: fmt.Sprintf("expected %d entries, got %d", DaysPerWeek, len(days))}
	}

	var seen [DaysPerWeek]bool
	for _, d := range days {
		if !d.Day.Valid() {
			return ws, &InvalidScheduleError{Field: "day", Reason: fmt.Sprintf("unknown day %d", int(d.Day))}
		}
		if seen[d.Day] {
			return ws, newDayError(d.Day, "day", "duplicate entry")
		}
		seen[d.Day] = true
		ws.Days[d.Day] = d
	}
	return ws, nil
}

// ClosedWeek returns a schedule with every day closed.
func ClosedWeek(timeZone string) WeeklySchedule {
	ws := WeeklySchedule{TimeZone: timeZone}
	for _, d := range AllDays {
		ws.Days[d] = DaySchedule{Day: d}
	}
	return ws
}

// Day returns the entry for d.
func (w WeeklySchedule) Day(d DayOfWeek) DaySchedule {
	return w.Days[d]
}

// Location resolves TimeZone.
func (w WeeklySchedule) Location() (*time.Location, error) {
	if w.TimeZone == "" {
		return nil, &InvalidScheduleError{Field: "time_zone", Reason: "required"}
	}
	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return nil, &InvalidScheduleError{Field: "time_zone", Reason: fmt.Sprintf("unknown time zone %q", w.TimeZone)}
	}
	return loc, nil
}

type weeklyScheduleJSON struct {
	TimeZone string        `json:"time_zone"`
	Days     []DaySchedule `json:"days"`
}

// UnmarshalJSON rejects payloads that do not carry exactly seven days
// or that name fields a schedule does not have.
func (w *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var raw weeklyScheduleJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	ws, err := NewWeeklySchedule(raw.TimeZone, raw.Days)
	if err != nil {
		return err
	}
	*w = ws
	return nil
}

// Override pins a shop open or closed regardless of its schedule.
type Override struct {
	ID           string     `json:"id"`
	ShopID       string     `json:"shop_id"`
	IsForcedOpen bool       `json:"is_forced_open"`
	Reason       string     `json:"reason,omitempty"`
	Actor        string     `json:"actor,omitempty"`
	SetAt        time.Time  `json:"set_at"`
	Active       bool       `json:"active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ClearedAt    *time.Time `json:"cleared_at,omitempty"`
	ClearedBy    string     `json:"cleared_by,omitempty"`
}

// InEffect reports whether the override pins status at now.
func (o *Override) InEffect(now time.Time) bool {
	if o == nil || !o.Active {
		return false
	}
	return o.ExpiresAt == nil || now.Before(*o.ExpiresAt)
}

// Expired reports whether an active override has passed its expiry.
func (o *Override) Expired(now time.Time) bool {
	return o != nil && o.Active && o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
