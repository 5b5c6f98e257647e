package hours

import "fmt"

// NoScheduledHoursMessage is reported when no day of the week is open.
const NoScheduledHoursMessage = "No scheduled hours"

func manualMessage(o *Override) string {
	prefix := "Manually closed"
	if o.IsForcedOpen {
		prefix = "Manually opened"
	}
	if o.Reason == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, o.Reason)
}

func buildMessage(s ShopStatus, allDay bool) string {
	switch s.State {
	case StateOpen:
		if allDay {
			return "Open 24 hours"
		}
		return fmt.Sprintf("Open until %s", s.TodayCloseTime.Format12h())
	case StateOnBreak:
		return fmt.Sprintf("On break until %s", s.BreakEndsAt.Format12h())
	case StateOpensLater:
		return fmt.Sprintf("Opens today at %s", s.NextOpen.Time.Format12h())
	case StateClosed:
		if s.NextOpen == nil {
			return "Closed. " + NoScheduledHoursMessage
		}
		return "Closed. " + opensPhrase(s.NextOpen)
	case StateClosedForDay:
		if s.NextOpen == nil {
			return NoScheduledHoursMessage
		}
		return "Closed today. " + opensPhrase(s.NextOpen)
	}
	return string(s.State)
}

func opensPhrase(n *NextOpen) string {
	if n.DaysAhead == 1 {
		return fmt.Sprintf("Opens tomorrow at %s", n.Time.Format12h())
	}
	return fmt.Sprintf("Opens %s at %s", n.Day.Title(), n.Time.Format12h())
}
