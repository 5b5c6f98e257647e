package hours

import "fmt"

// DayPreview is a display summary of one day of the weekly schedule.
type DayPreview struct {
	Day         DayOfWeek `json:"day"`
	Name        string    `json:"name"`
	IsOpen      bool      `json:"is_open"`
	Hours       string    `json:"hours"`
	Break       string    `json:"break,omitempty"`
	SpecialNote string    `json:"special_note,omitempty"`
}

// Preview summarises the week, Monday first.
func Preview(w WeeklySchedule) []DayPreview {
	out := make([]DayPreview, 0, DaysPerWeek)
	for _, d := range w.Days {
		p := DayPreview{
			Day:         d.Day,
			Name:        d.Day.Title(),
			IsOpen:      d.IsOpen,
			Hours:       "Closed",
			SpecialNote: d.SpecialNote,
		}
		if d.IsOpen {
			p.Hours = formatRange(d)
			if d.HasBreak() {
				p.Break = fmt.Sprintf("%s - %s", d.BreakStart.Format12h(), d.BreakEnd.Format12h())
			}
		}
		out = append(out, p)
	}
	return out
}

func formatRange(d DaySchedule) string {
	if d.Is24Hours {
		return "Open 24 hours"
	}
	return fmt.Sprintf("%s - %s", d.Opens().Format12h(), d.Closes().Format12h())
}
