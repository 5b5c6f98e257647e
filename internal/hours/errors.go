package hours

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrScheduleNotFound means no weekly schedule exists for the shop.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrInvalidSchedule matches every *InvalidScheduleError.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// InvalidScheduleError identifies the day and field that break a
// schedule invariant. Day is nil for week-level problems.
type InvalidScheduleError struct {
	Day    *DayOfWeek
	Field  string
	Reason string
}

func newDayError(day DayOfWeek, field, reason string) *InvalidScheduleError {
	return &InvalidScheduleError{Day: &day, Field: field, Reason: reason}
}

func (e *InvalidScheduleError) Error() string {
	var b strings.Builder
	b.WriteString("invalid schedule: ")
	if e.Day != nil {
		b.WriteString(strings.ToLower(e.Day.String()))
		b.WriteString(".")
	}
	b.WriteString(e.Field)
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Is lets errors.Is(err, ErrInvalidSchedule) match.
func (e *InvalidScheduleError) Is(target error) bool {
	return target == ErrInvalidSchedule
}
