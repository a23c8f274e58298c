package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"classroom/internal/activities"
	"classroom/internal/apperr"
	"classroom/internal/attendance"
	"classroom/internal/report"
	"classroom/internal/students"
)

// options parses "--key value" pairs for one action.
type options struct {
	fs   *flag.FlagSet
	vals map[string]*string
}

func newOptions(name string, keys ...string) *options {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	o := &options{fs: fs, vals: make(map[string]*string, len(keys))}
	for _, k := range keys {
		o.vals[k] = fs.String(k, "", "")
	}
	return o
}

func (o *options) parse(args []string) error {
	if err := o.fs.Parse(args); err != nil {
		return usageError("%s: %v", o.fs.Name(), err)
	}
	return nil
}

func (o *options) get(key string) string { return strings.TrimSpace(*o.vals[key]) }

// ---------- student ----------

func (a *app) student(ctx context.Context, action string, args []string) error {
	switch action {
	case "add":
		o := newOptions("student add", "name", "email", "year", "cohort", "status")
		if err := o.parse(args); err != nil {
			return err
		}
		if o.get("name") == "" || o.get("email") == "" {
			return usageError("Missing --name or --email")
		}
		s, err := a.students.Add(ctx, students.NewStudent{
			Name:   o.get("name"),
			Email:  o.get("email"),
			Year:   o.get("year"),
			Cohort: o.get("cohort"),
			Status: o.get("status"),
		})
		if err != nil {
			return err
		}
		a.log.Info("Student added: %s (%s)", s.Name, s.ID)
		return a.printJSON(s)

	case "list":
		o := newOptions("student list", "status")
		if err := o.parse(args); err != nil {
			return err
		}
		list, err := a.students.List(ctx, o.get("status"))
		if err != nil {
			return err
		}
		return a.printTable(report.Students(list))

	case "find":
		o := newOptions("student find", "id", "email", "get")
		if err := o.parse(args); err != nil {
			return err
		}
		var (
			s   students.Student
			err error
		)
		switch {
		case o.get("id") != "":
			s, err = a.students.Get(ctx, o.get("id"))
		case o.get("email") != "":
			s, err = a.students.FindByEmail(ctx, o.get("email"))
		default:
			return usageError("Provide --id or --email")
		}
		if err != nil {
			return err
		}
		if key := o.get("get"); key != "" {
			return a.printField(s, key)
		}
		return a.printJSON(s)

	case "set-status":
		o := newOptions("student set-status", "id", "status")
		if err := o.parse(args); err != nil {
			return err
		}
		if o.get("id") == "" || o.get("status") == "" {
			return usageError("Provide --id and --status")
		}
		s, err := a.students.SetStatus(ctx, o.get("id"), o.get("status"))
		if err != nil {
			return err
		}
		return a.printJSON(s)
	}
	return usageError("Unknown student action: %s", action)
}

// ---------- attendance ----------

func (a *app) attendanceCmd(ctx context.Context, action string, args []string) error {
	switch action {
	case "mark":
		o := newOptions("attendance mark", "studentId", "date", "status", "note")
		if err := o.parse(args); err != nil {
			return err
		}
		if o.get("studentId") == "" || o.get("date") == "" || o.get("status") == "" {
			return usageError("Missing --studentId, --date, or --status")
		}
		rec, err := a.attendance.Mark(ctx, attendance.NewMark{
			StudentID: o.get("studentId"),
			Date:      o.get("date"),
			Status:    o.get("status"),
			Note:      o.get("note"),
		})
		if err != nil {
			return err
		}
		return a.printJSON(rec)

	case "list":
		o := newOptions("attendance list", "studentId", "from", "to")
		if err := o.parse(args); err != nil {
			return err
		}
		list, err := a.attendance.List(ctx, attendance.Filter{StudentID: o.get("studentId"), From: o.get("from"), To: o.get("to")})
		if err != nil {
			return err
		}
		return a.printTable(report.Attendance(list))
	}
	return usageError("Unknown attendance action: %s", action)
}

// ---------- activity ----------

func (a *app) activity(ctx context.Context, action string, args []string) error {
	switch action {
	case "add":
		o := newOptions("activity add", "studentId", "type", "description")
		if err := o.parse(args); err != nil {
			return err
		}
		if o.get("studentId") == "" || o.get("type") == "" || o.get("description") == "" {
			return usageError("Missing --studentId, --type, or --description")
		}
		rec, err := a.activities.Add(ctx, activities.NewActivity{
			StudentID:   o.get("studentId"),
			Type:        o.get("type"),
			Description: o.get("description"),
		})
		if err != nil {
			return err
		}
		return a.printJSON(rec)

	case "list":
		o := newOptions("activity list", "studentId", "from", "to")
		if err := o.parse(args); err != nil {
			return err
		}
		list, err := a.activities.List(ctx, activities.Filter{StudentID: o.get("studentId"), From: o.get("from"), To: o.get("to")})
		if err != nil {
			return err
		}
		return a.printTable(report.Activities(list))
	}
	return usageError("Unknown activity action: %s", action)
}

// ---------- report ----------

func (a *app) report(ctx context.Context, action string, args []string) error {
	o := newOptions("report "+action, "format", "from", "to", "studentId", "out")
	if err := o.parse(args); err != nil {
		return err
	}
	def := report.FormatCSV
	if action == "student-summary" {
		def = report.FormatJSON
	}
	f, err := report.ParseFormat(o.get("format"), def)
	if err != nil {
		return err
	}

	var out report.Output
	switch action {
	case "students":
		out, err = a.reports.Students(ctx, f, o.get("out"))
	case "attendance":
		out, err = a.reports.Attendance(ctx, f, attendance.Filter{StudentID: o.get("studentId"), From: o.get("from"), To: o.get("to")}, o.get("out"))
	case "activities":
		out, err = a.reports.Activities(ctx, f, activities.Filter{StudentID: o.get("studentId"), From: o.get("from"), To: o.get("to")}, o.get("out"))
	case "student-summary":
		if o.get("studentId") == "" {
			return usageError("Provide --studentId")
		}
		out, _, err = a.reports.StudentSummary(ctx, o.get("studentId"), f, o.get("out"))
	default:
		return usageError("Unknown report action: %s", action)
	}
	if err != nil {
		return err
	}
	a.log.Info("Report written: %s", out.Path)
	fmt.Fprintf(a.out, "Report written: %s\n", out.Path)
	return nil
}

// ---------- output ----------

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func (a *app) printTable(d report.Dataset) error {
	if len(d.Rows) == 0 {
		_, err := fmt.Fprintln(a.out, "(no results)")
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(d.Columns...).
		Rows(d.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(a.out, t.Render())
	return err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printField prints one JSON field of s, as named in its JSON form.
func (a *app) printField(s students.Student, key string) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	v, ok := fields[key]
	if !ok {
		return apperr.NotFound("Field not found: %s", key)
	}
	_, err = fmt.Fprintln(a.out, v)
	return err
}
