package hours

import (
	"fmt"
	"strings"
	"time"
)

// DayOfWeek is a calendar day in Monday-first order.
type DayOfWeek int

const (
	Monday DayOfWeek = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of entries in a weekly schedule.
const DaysPerWeek = 7

// AllDays lists the days in schedule order.
var AllDays = [DaysPerWeek]DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayNames = [DaysPerWeek]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

var dayTitles = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Valid reports whether d is one of the seven days.
func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the enum name, e.g. "MONDAY".
func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
	return dayNames[d]
}

// Title returns the display name, e.g. "Monday".
func (d DayOfWeek) Title() string {
	if !d.Valid() {
		return d.String()
	}
	return dayTitles[d]
}

// Next returns the following day, wrapping Sunday to Monday.
func (d DayOfWeek) Next() DayOfWeek {
	return (d + 1) % DaysPerWeek
}

// ISO returns the 1-7 number (1=Monday, 7=Sunday) used by storage rows.
func (d DayOfWeek) ISO() int {
	return int(d) + 1
}

// FromISO converts a 1-7 day number (1=Monday, 7=Sunday).
func FromISO(n int) (DayOfWeek, error) {
	if n < 1 || n > 7 {
		return 0, fmt.Errorf("invalid day %d, must be 1-7 (1=Mon, 7=Sun)", n)
	}
	return DayOfWeek(n - 1), nil
}

// FromWeekday converts Go's Sunday-first weekday.
func FromWeekday(w time.Weekday) DayOfWeek {
	return DayOfWeek((int(w) + 6) % DaysPerWeek)
}

// ParseDayOfWeek accepts enum names in any case ("MONDAY", "monday").
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range dayNames {
		if n == name {
			return DayOfWeek(i), nil
		}
	}
	return 0, fmt.Errorf("invalid day of week %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DayOfWeek) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day of week %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DayOfWeek) UnmarshalText(text []byte) error {
	parsed, err := ParseDayOfWeek(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
