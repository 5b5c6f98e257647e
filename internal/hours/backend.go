package hours

import "fmt"

// BackendDay is the flat row shape schedules are stored and exchanged
// in: 1-7 day numbers and "HH:MM" strings, empty for absent times.
type BackendDay struct {
	DayOfWeek   int    `json:"day_of_week" yaml:"day_of_week"` // 1-7 (Monday-Sunday)
	IsOpen      bool   `json:"is_open" yaml:"is_open"`
	OpenTime    string `json:"open_time" yaml:"open_time"`
	CloseTime   string `json:"close_time" yaml:"close_time"`
	Is24Hours   bool   `json:"is_24_hours" yaml:"is_24_hours"`
	BreakStart  string `json:"break_start" yaml:"break_start"`
	BreakEnd    string `json:"break_end" yaml:"break_end"`
	SpecialNote string `json:"special_note" yaml:"special_note"`
}

// ToBackendFormat flattens a schedule into seven Monday-first rows.
func ToBackendFormat(w WeeklySchedule) []BackendDay {
	rows := make([]BackendDay, 0, DaysPerWeek)
	for _, d := range w.Days {
		rows = append(rows, BackendDay{
			DayOfWeek:   d.Day.ISO(),
			IsOpen:      d.IsOpen,
			OpenTime:    formatOptional(d.OpenTime),
			CloseTime:   formatOptional(d.CloseTime),
			Is24Hours:   d.Is24Hours,
			BreakStart:  formatOptional(d.BreakStart),
			BreakEnd:    formatOptional(d.BreakEnd),
			SpecialNote: d.SpecialNote,
		})
	}
	return rows
}

// FromBackendFormat rebuilds a schedule from stored rows in any order.
// It checks shape and time syntax only; call Validate for invariants.
func FromBackendFormat(timeZone string, rows []BackendDay) (WeeklySchedule, error) {
	days := make([]DaySchedule, 0, len(rows))
	for _, r := range rows {
		day, err := FromISO(r.DayOfWeek)
		if err != nil {
			return WeeklySchedule{}, &InvalidScheduleError{Field: "day_of_week", Reason: err.Error()}
		}

		d := DaySchedule{
			Day:         day,
			IsOpen:      r.IsOpen,
			Is24Hours:   r.Is24Hours,
			SpecialNote: r.SpecialNote,
		}
		for _, f := range []struct {
			name string
			raw  string
			dst  **TimeOfDay
		}{
			{"open_time", r.OpenTime, &d.OpenTime},
			{"close_time", r.CloseTime, &d.CloseTime},
			{"break_start", r.BreakStart, &d.BreakStart},
			{"break_end", r.BreakEnd, &d.BreakEnd},
		} {
			t, err := parseOptional(f.raw)
			if err != nil {
				return WeeklySchedule{}, newDayError(day, f.name, err.Error())
			}
			*f.dst = t
		}
		days = append(days, d)
	}
	return NewWeeklySchedule(timeZone, days)
}

func formatOptional(t *TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func parseOptional(s string) (*TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &t, nil
}
