package attendance

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"classroom/internal/apperr"
	"classroom/internal/metrics"
	"classroom/internal/queue"
	"classroom/internal/store"
	"classroom/internal/students"
)

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// Record is one attendance mark. Duplicate (student, date) pairs are allowed.
type Record struct {
	ID        string `json:"id"`
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

// Filter selects records; empty fields match everything. From and To are
// inclusive YYYY-MM-DD bounds.
type Filter struct {
	StudentID string
	From      string
	To        string
}

func (f Filter) match(r Record) bool {
	return (f.StudentID == "" || r.StudentID == f.StudentID) &&
		(f.From == "" || r.Date >= f.From) &&
		(f.To == "" || r.Date <= f.To)
}

// NewMark is the input of Service.Mark.
type NewMark struct {
	StudentID string `validate:"required"`
	Date      string `validate:"required,calendardate"`
	Status    string `validate:"required,oneof=present absent late"`
	Note      string
}

var markMessages = map[string]string{
	"StudentID": "studentId required",
	"Date":      "date must be YYYY-MM-DD",
	"Status":    "status must be present|absent|late",
}

// StudentLookup resolves student references.
type StudentLookup interface {
	Get(ctx context.Context, id string) (students.Student, error)
}

// Service validates and records attendance.
type Service struct {
	repo     *Repository
	students StudentLookup
	events   queue.Publisher
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, lookup StudentLookup, events queue.Publisher) *Service {
	if events == nil {
		events = queue.Discard
	}
	v := validator.New()
	_ = v.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
		return ValidDate(fl.Field().String())
	})
	return &Service{repo: repo, students: lookup, events: events, validate: v, now: time.Now}
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidDate reports whether s is a real calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// Mark validates the input, checks the student exists and appends a record.
// Nothing is written when either check fails.
func (s *Service) Mark(ctx context.Context, in NewMark) (Record, error) {
	if err := apperr.Validate(s.validate, in, markMessages); err != nil {
		return Record{}, err
	}
	if _, err := s.students.Get(ctx, in.StudentID); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:        uuid.NewString(),
		StudentID: in.StudentID,
		Date:      in.Date,
		Status:    in.Status,
		Note:      in.Note,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return Record{}, err
	}
	metrics.RecordsCreated.WithLabelValues(store.Attendance).Inc()
	_ = s.events.Publish(ctx, queue.Message{
		Type:    queue.AttendanceMarked,
		Subject: rec.StudentID,
		Text:    fmt.Sprintf("Attendance marked %s %s %s", rec.StudentID, rec.Date, rec.Status),
		At:      s.now().UTC(),
	})
	return rec, nil
}

// List returns records matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	return s.repo.List(ctx, f)
}
