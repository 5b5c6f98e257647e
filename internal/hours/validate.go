package hours

import "fmt"

// Validate checks the weekly schedule invariants: a loadable time zone,
// days in Monday-first order, open days with open_time < close_time
// (cross-midnight spans are not supported), and break windows that are
// either fully absent or satisfy open_time <= break_start < break_end <= close_time.
// Closed days are not inspected.
func Validate(w WeeklySchedule) error {
	if _, err := w.Location(); err != nil {
		return err
	}

	for i, d := range w.Days {
		if d.Day != DayOfWeek(i) {
			return newDayError(DayOfWeek(i), "day", fmt.Sprintf("entry holds %s", d.Day))
		}
		if !d.IsOpen {
			continue
		}
		if err := validateDay(d); err != nil {
			return err
		}
	}
	return nil
}

func validateDay(d DaySchedule) error {
	for _, f := range []struct {
		name string
		val  *TimeOfDay
	}{
		{"open_time", d.OpenTime},
		{"close_time", d.CloseTime},
		{"break_start", d.BreakStart},
		{"break_end", d.BreakEnd},
	} {
		if f.val != nil && !f.val.Valid() {
			return newDayError(d.Day, f.name, fmt.Sprintf("out of range: %d", int(*f.val)))
		}
	}

	if !d.Is24Hours {
		if d.OpenTime == nil {
			return newDayError(d.Day, "open_time", "required when is_open")
		}
		if d.CloseTime == nil {
			return newDayError(d.Day, "close_time", "required when is_open")
		}
		if *d.OpenTime >= *d.CloseTime {
			return newDayError(d.Day, "close_time", "must be after open_time (cross-midnight spans are not supported)")
		}
	}

	switch {
	case d.BreakStart == nil && d.BreakEnd == nil:
		return nil
	case d.BreakStart == nil:
		return newDayError(d.Day, "break_start", "required when break_end is set")
	case d.BreakEnd == nil:
		return newDayError(d.Day, "break_end", "required when break_start is set")
	}

	if *d.BreakStart >= *d.BreakEnd {
		return newDayError(d.Day, "break_end", "must be after break_start")
	}
	if d.Is24Hours {
		return nil
	}
	if *d.BreakStart < *d.OpenTime {
		return newDayError(d.Day, "break_start", "must not be before open_time")
	}
	if *d.BreakEnd > *d.CloseTime {
		return newDayError(d.Day, "break_end", "must not be after close_time")
	}
	return nil
}
