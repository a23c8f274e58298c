// Package report renders collections as CSV or JSON and writes them to files.
package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"runtime"
	"strconv"

	"classroom/internal/activities"
	"classroom/internal/apperr"
	"classroom/internal/attendance"
	"classroom/internal/students"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json"; empty yields def.
func ParseFormat(s string, def Format) (Format, error) {
	switch Format(s) {
	case "":
		return def, nil
	case FormatCSV, FormatJSON:
		return Format(s), nil
	}
	return "", apperr.Validation("format must be json|csv")
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Dataset is a view that can be written in either format. JSON holds the
// value encoded for FormatJSON; Columns and Rows feed FormatCSV.
type Dataset struct {
	Columns []string
	Rows    [][]string
	JSON    any
}

// Write encodes d to w. CSV uses the platform line ending; JSON is indented
// by two spaces.
func (d Dataset) Write(w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		cw.UseCRLF = runtime.GOOS == "windows"
		if err := cw.Write(d.Columns); err != nil {
			return err
		}
		if err := cw.WriteAll(d.Rows); err != nil {
			return err
		}
		return cw.Error()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d.JSON)
	}
	return apperr.Validation("format must be json|csv")
}

var (
	StudentColumns    = []string{"id", "name", "email", "year", "status", "enrolledOn"}
	AttendanceColumns = []string{"id", "studentId", "date", "status", "note"}
	ActivityColumns   = []string{"id", "studentId", "timestamp", "type", "description"}
)

func Students(list []students.Student) Dataset {
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{s.ID, s.Name, s.Email, s.Year, s.Status, s.EnrolledOn})
	}
	return Dataset{Columns: StudentColumns, Rows: rows, JSON: list}
}

func Attendance(list []attendance.Record) Dataset {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{r.ID, r.StudentID, r.Date, r.Status, r.Note})
	}
	return Dataset{Columns: AttendanceColumns, Rows: rows, JSON: list}
}

func Activities(list []activities.Record) Dataset {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{r.ID, r.StudentID, r.Timestamp, r.Type, r.Description})
	}
	return Dataset{Columns: ActivityColumns, Rows: rows, JSON: list}
}

// Counts are the per-student totals of a summary.
type Counts struct {
	Attendance int `json:"attendance"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Activities int `json:"activities"`
}

// Summary is one student's record with their attendance and activities.
type Summary struct {
	Student    students.Student    `json:"student"`
	Counts     Counts              `json:"counts"`
	Attendance []attendance.Record `json:"attendance"`
	Activities []activities.Record `json:"activities"`
}

// Summarize counts att by status. Callers pass only the student's records.
func Summarize(s students.Student, att []attendance.Record, acts []activities.Record) Summary {
	if att == nil {
		att = []attendance.Record{}
	}
	if acts == nil {
		acts = []activities.Record{}
	}
	c := Counts{Attendance: len(att), Activities: len(acts)}
	for _, a := range att {
		switch a.Status {
		case attendance.StatusPresent:
			c.Present++
		case attendance.StatusAbsent:
			c.Absent++
		case attendance.StatusLate:
			c.Late++
		}
	}
	return Summary{Student: s, Counts: c, Attendance: att, Activities: acts}
}

// Dataset renders the summary: the full object as JSON, metric/value pairs
// as CSV.
func (s Summary) Dataset() Dataset {
	metric := func(name string, v int) []string { return []string{name, strconv.Itoa(v)} }
	return Dataset{
		Columns: []string{"metric", "value"},
		Rows: [][]string{
			metric("attendance_total", s.Counts.Attendance),
			metric("present", s.Counts.Present),
			metric("absent", s.Counts.Absent),
			metric("late", s.Counts.Late),
			metric("activities_total", s.Counts.Activities),
		},
		JSON: s,
	}
}
