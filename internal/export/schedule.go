package export

import (
	"fmt"
	"io"
	"time"

	"shophours/internal/hours"
)

// AuditRow is one history line in the workbook.
type AuditRow struct {
	At        time.Time
	EventType string
	Actor     string
	Detail    string
}

// Workbook collects what a shop schedule export contains.
type Workbook struct {
	ShopID  string
	Preview []hours.DayPreview
	Status  *hours.ShopStatus
	Audit   []AuditRow
}

// Filename returns the download name, e.g. "shop-1_schedule.xlsx".
func Filename(shopID string) string {
	return fmt.Sprintf("%s_schedule.xlsx", shopID)
}

// Write renders the workbook with a "Schedule" sheet and, when present,
// "Status" and "History" sheets.
func Write(w ExcelWriter, wb Workbook) error {
	if err := w.AddSheet("Schedule"); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Day", "Open", "Hours", "Break", "Note"}); err != nil {
		return err
	}
	for _, d := range wb.Preview {
		open := "No"
		if d.IsOpen {
			open = "Yes"
		}
		if err := w.WriteRow([]any{d.Name, open, d.Hours, d.Break, d.SpecialNote}); err != nil {
			return fmt.Errorf("write %s: %w", d.Name, err)
		}
	}

	if st := wb.Status; st != nil {
		if err := w.AddSheet("Status"); err != nil {
			return err
		}
		if err := w.WriteHeader([]string{"Field", "Value"}); err != nil {
			return err
		}
		rows := [][]any{
			{"Shop", wb.ShopID},
			{"State", string(st.State)},
			{"Message", st.Message},
			{"Time zone", st.TimeZone},
			{"Evaluated at", st.EvaluatedAt.Format(time.RFC3339)},
		}
		if st.NextOpen != nil {
			rows = append(rows, []any{"Next open", fmt.Sprintf("%s %s", st.NextOpen.Day.Title(), st.NextOpen.Time.Format12h())})
		}
		for _, r := range rows {
			if err := w.WriteRow(r); err != nil {
				return err
			}
		}
	}

	if len(wb.Audit) > 0 {
		if err := w.AddSheet("History"); err != nil {
			return err
		}
		if err := w.WriteHeader([]string{"Time", "Event", "Actor", "Detail"}); err != nil {
			return err
		}
		for _, a := range wb.Audit {
			if err := w.WriteRow([]any{a.At.UTC().Format(time.RFC3339), a.EventType, a.Actor, a.Detail}); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteXLSX renders wb as an .xlsx stream.
func WriteXLSX(out io.Writer, wb Workbook) error {
	w := NewExcelizeWriter()
	defer w.Close()

	if err := Write(w, wb); err != nil {
		return err
	}
	return w.Save(out)
}
