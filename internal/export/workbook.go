// Package export renders attendance and pass history as an xlsx workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/premierpass/premier-pass/internal/model"
)

const (
	AttendanceSheet = "Attendance"
	PassesSheet     = "Passes"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Data is everything one export contains.  Names maps user ids to display
// names; ids missing from it are written blank.
type Data struct {
	Events   []model.AttendanceEvent
	Passes   []model.Pass
	Names    map[uint64]string
	Location *time.Location
}

// Workbook builds the two-sheet workbook.  Times are written in
// d.Location, or UTC when it is nil.
func Workbook(d Data) (*excelize.File, error) {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()

	// Rename the default sheet rather than leaving an empty Sheet1.
	if err := f.SetSheetName(f.GetSheetName(0), AttendanceSheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, AttendanceSheet,
		[]string{"Event ID", "Student ID", "Student", "Action", "Code", "Timestamp"},
		len(d.Events), func(i int) []any {
			ev := d.Events[i]
			return []any{ev.ID, ev.StudentID, d.Names[ev.StudentID], string(ev.Action), ev.Code, format(&ev.Timestamp, loc)}
		}); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(PassesSheet); err != nil {
		return nil, err
	}
	if err := writeRows(f, PassesSheet,
		[]string{"Pass ID", "Student ID", "Student", "Type", "Status", "Created", "Started", "Ended"},
		len(d.Passes), func(i int) []any {
			p := d.Passes[i]
			return []any{p.ID, p.StudentID, d.Names[p.StudentID], p.Type, string(p.Status),
				format(&p.CreatedAt, loc), format(p.StartTime, loc), format(p.EndedAt, loc)}
		}); err != nil {
		return nil, err
	}

	for _, sheet := range []string{AttendanceSheet, PassesSheet} {
		if err := f.SetColWidth(sheet, "A", "B", 11); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, "C", "C", 24); err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheet, "D", "H", 20); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, d Data) error {
	f, err := Workbook(d)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Filename is the attachment name for an export taken at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("hallpass_%s.xlsx", now.Format("20060102"))
}

func writeRows(f *excelize.File, sheet string, headers []string, n int, row func(int) []any) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(i)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func format(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
