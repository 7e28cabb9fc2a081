// Package export renders attendance records to spreadsheet files. It only
// consumes data produced by the core; there is no write path back.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"qrattend/internal/attendance"
)

var headers = []string{
	"Student Name", "Email", "Enrollment No", "Branch", "Semester", "Course",
	"Session", "Status", "Timestamp",
}

// Workbook builds an XLSX workbook with one Attendance sheet from enriched
// records.
func Workbook(records []attendance.Record) (*excelize.File, error) {
	f := excelize.NewFile()
	const sheet = "Attendance"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, rec := range records {
		row := rowValues(rec)
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

// Write streams the workbook for records to w.
func Write(w io.Writer, records []attendance.Record) error {
	f, err := Workbook(records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Filename returns the conventional attachment name for an export taken now.
func Filename(now time.Time) string {
	return fmt.Sprintf("attendance-%s.xlsx", now.Format("2006-01-02"))
}

func rowValues(rec attendance.Record) []string {
	name, email, enrollment, branch, semester, course := "N/A", "N/A", "N/A", "N/A", "N/A", "N/A"
	if rec.Account != nil {
		name, email = rec.Account.Name, rec.Account.Email
		if rec.Account.EnrollmentNo != "" {
			enrollment = rec.Account.EnrollmentNo
		}
		if rec.Account.Branch != "" {
			branch = rec.Account.Branch
		}
		if rec.Account.Semester != "" {
			semester = rec.Account.Semester
		}
		if rec.Account.Course != "" {
			course = rec.Account.Course
		}
	}
	session := "N/A"
	if rec.Session != nil {
		session = rec.Session.Name
	}
	return []string{
		name, email, enrollment, branch, semester, course,
		session, string(rec.Status), rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
	}
}
