package hours

import "time"

// StatusState classifies why a shop is open or closed at an instant.
type StatusState string

const (
	StateOpen           StatusState = "OPEN"
	StateClosed         StatusState = "CLOSED"
	StateOnBreak        StatusState = "ON_BREAK"
	StateOpensLater     StatusState = "OPENS_LATER"
	StateClosedForDay   StatusState = "CLOSED_FOR_DAY"
	StateManuallyOpen   StatusState = "MANUALLY_OPEN"
	StateManuallyClosed StatusState = "MANUALLY_CLOSED"
)

// AllStates lists every state in declaration order.
var AllStates = []StatusState{
	StateOpen, StateClosed, StateOnBreak, StateOpensLater,
	StateClosedForDay, StateManuallyOpen, StateManuallyClosed,
}

// IsOpen reports whether customers can be served in this state.
func (s StatusState) IsOpen() bool {
	return s == StateOpen || s == StateManuallyOpen
}

// IsManual reports whether the state comes from an override.
func (s StatusState) IsManual() bool {
	return s == StateManuallyOpen || s == StateManuallyClosed
}

// NextOpen is the result of the next-open search.
type NextOpen struct {
	Day       DayOfWeek `json:"day"`
	Time      TimeOfDay `json:"time"`
	DaysAhead int       `json:"days_ahead"`
}

// ShopStatus is the computed status of a shop at EvaluatedAt.
type ShopStatus struct {
	IsOpen         bool        `json:"is_open"`
	State          StatusState `json:"state"`
	Message        string      `json:"message"`
	CurrentDay     DayOfWeek   `json:"current_day"`
	CurrentTime    TimeOfDay   `json:"current_time"`
	TimeZone       string      `json:"time_zone"`
	TodayOpenTime  *TimeOfDay  `json:"today_open_time,omitempty"`
	TodayCloseTime *TimeOfDay  `json:"today_close_time,omitempty"`
	BreakEndsAt    *TimeOfDay  `json:"break_ends_at,omitempty"`
	NextOpen       *NextOpen   `json:"next_open,omitempty"`
	Override       *Override   `json:"override,omitempty"`
	EvaluatedAt    time.Time   `json:"evaluated_at"`
}
