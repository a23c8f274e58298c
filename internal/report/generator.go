package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"classroom/internal/activities"
	"classroom/internal/apperr"
	"classroom/internal/attendance"
	"classroom/internal/students"
)

// Generator builds reports from the domain services and writes them under
// its directory unless an explicit output path is given.
type Generator struct {
	dir        string
	students   *students.Service
	attendance *attendance.Service
	activities *activities.Service
}

func NewGenerator(dir string, st *students.Service, att *attendance.Service, acts *activities.Service) *Generator {
	return &Generator{dir: dir, students: st, attendance: att, activities: acts}
}

// Output is a written report.
type Output struct {
	Path    string
	Dataset Dataset
}

func (g *Generator) Students(ctx context.Context, f Format, out string) (Output, error) {
	list, err := g.students.List(ctx, "")
	if err != nil {
		return Output{}, err
	}
	return g.write(Students(list), f, out, "students")
}

func (g *Generator) Attendance(ctx context.Context, f Format, filter attendance.Filter, out string) (Output, error) {
	if err := checkNamePart(filter.StudentID); err != nil {
		return Output{}, err
	}
	list, err := g.attendance.List(ctx, filter)
	if err != nil {
		return Output{}, err
	}
	return g.write(Attendance(list), f, out, withStudent("attendance", filter.StudentID))
}

func (g *Generator) Activities(ctx context.Context, f Format, filter activities.Filter, out string) (Output, error) {
	if err := checkNamePart(filter.StudentID); err != nil {
		return Output{}, err
	}
	list, err := g.activities.List(ctx, filter)
	if err != nil {
		return Output{}, err
	}
	return g.write(Activities(list), f, out, withStudent("activities", filter.StudentID))
}

// StudentSummary fails with apperr.ErrNotFound for an unknown id.
func (g *Generator) StudentSummary(ctx context.Context, id string, f Format, out string) (Output, Summary, error) {
	if err := checkNamePart(id); err != nil {
		return Output{}, Summary{}, err
	}
	s, err := g.students.Get(ctx, id)
	if err != nil {
		return Output{}, Summary{}, err
	}
	att, err := g.attendance.List(ctx, attendance.Filter{StudentID: id})
	if err != nil {
		return Output{}, Summary{}, err
	}
	acts, err := g.activities.List(ctx, activities.Filter{StudentID: id})
	if err != nil {
		return Output{}, Summary{}, err
	}
	sum := Summarize(s, att, acts)
	o, err := g.write(sum.Dataset(), f, out, "student-summary-"+id)
	return o, sum, err
}

func withStudent(base, id string) string {
	if id == "" {
		return base
	}
	return base + "-" + id
}

func (g *Generator) write(d Dataset, f Format, out, base string) (Output, error) {
	if f != FormatCSV && f != FormatJSON {
		return Output{}, apperr.Validation("format must be json|csv")
	}
	if out == "" {
		out = filepath.Join(g.dir, base+"."+string(f))
		if !within(g.dir, out) {
			return Output{}, apperr.Validation("invalid report name")
		}
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Output{}, fmt.Errorf("create reports dir: %w", err)
	}
	if err := writeAtomic(out, d, f); err != nil {
		return Output{}, fmt.Errorf("write report: %w", err)
	}
	return Output{Path: out, Dataset: d}, nil
}

// checkNamePart rejects ids that cannot be used verbatim in a file name.
func checkNamePart(id string) error {
	if id == "" {
		return nil
	}
	if id != filepath.Base(id) || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return apperr.Validation("invalid studentId")
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// writeAtomic renders d into a temp file next to path and renames it into
// place, so a report being served is never truncated by a concurrent run.
func writeAtomic(path string, d Dataset, f Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-")
	if err != nil {
		return err
	}
	name := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(name)
		}
	}()

	if err := d.Write(tmp, f); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		return err
	}
	if err := os.Rename(name, path); err != nil {
		return err
	}
	ok = true
	return nil
}
