package hours

import "time"

// Evaluate derives the status of a shop at now. An override in effect
// wins over the schedule, whatever the day rows hold; only the time zone
// must resolve. now is converted into the schedule's time zone and
// truncated to the minute. Opening times are inclusive, closing times
// exclusive.
//
// Evaluate is pure and safe for concurrent use.
func Evaluate(schedule WeeklySchedule, override *Override, now time.Time) (ShopStatus, error) {
	loc, err := schedule.Location()
	if err != nil {
		return ShopStatus{}, err
	}

	local := now.In(loc)
	status := ShopStatus{
		CurrentDay:  FromWeekday(local.Weekday()),
		CurrentTime: TimeOfDayOf(local),
		TimeZone:    schedule.TimeZone,
		EvaluatedAt: local,
	}

	if override.InEffect(now) {
		applyOverride(&status, override)
		return status, nil
	}

	if err := Validate(schedule); err != nil {
		return ShopStatus{}, err
	}
	applySchedule(&status, schedule)
	status.IsOpen = status.State.IsOpen()
	status.Message = buildMessage(status, schedule.Day(status.CurrentDay).Is24Hours)
	return status, nil
}

func applyOverride(status *ShopStatus, o *Override) {
	pinned := *o
	status.Override = &pinned
	status.IsOpen = o.IsForcedOpen
	if o.IsForcedOpen {
		status.State = StateManuallyOpen
	} else {
		status.State = StateManuallyClosed
	}
	status.Message = manualMessage(o)
}

func applySchedule(status *ShopStatus, schedule WeeklySchedule) {
	day := status.CurrentDay
	now := status.CurrentTime
	today := schedule.Day(day)

	if !today.IsOpen {
		status.State = StateClosedForDay
		status.NextOpen = FindNextOpen(schedule, day)
		return
	}

	status.TodayOpenTime = today.Opens().Ptr()
	status.TodayCloseTime = today.Closes().Ptr()

	switch {
	case today.Is24Hours && today.InBreak(now):
		status.State = StateOnBreak
	case today.Is24Hours:
		status.State = StateOpen
	case now < today.Opens():
		status.State = StateOpensLater
		status.NextOpen = &NextOpen{Day: day, Time: today.Opens()}
	case now >= today.Closes():
		status.State = StateClosed
		status.NextOpen = FindNextOpen(schedule, day)
	case today.InBreak(now):
		status.State = StateOnBreak
	default:
		status.State = StateOpen
	}

	if status.State == StateOnBreak {
		status.BreakEndsAt = today.BreakEnd
		status.NextOpen = &NextOpen{Day: day, Time: *today.BreakEnd}
	}
}

// FindNextOpen scans the seven days after from, wrapping Sunday to
// Monday, and returns the first open day with its opening time. The
// same weekday one week later is the last candidate. It returns nil
// when no day of the week is open.
func FindNextOpen(schedule WeeklySchedule, from DayOfWeek) *NextOpen {
	day := from
	for ahead := 1; ahead <= DaysPerWeek; ahead++ {
		day = day.Next()
		d := schedule.Day(day)
		if !d.IsOpen {
			continue
		}
		return &NextOpen{Day: day, Time: d.Opens(), DaysAhead: ahead}
	}
	return nil
}
