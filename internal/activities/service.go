// Package activities records per-student activity events (assignments,
// quizzes, participation).
package activities

import (
	"context"
	"fmt"
	"strings"
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
	TypeAssignment    = "assignment"
	TypeQuiz          = "quiz"
	TypeParticipation = "participation"
	TypeOther         = "other"
)

// TimestampLayout is UTC with millisecond precision. Records compare
// lexically on it.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Record is one activity. Timestamp is assigned by the server.
type Record struct {
	ID          string `json:"id"`
	StudentID   string `json:"studentId"`
	Timestamp   string `json:"timestamp"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Filter selects records; empty fields match everything. A To of bare
// YYYY-MM-DD covers that whole day.
type Filter struct {
	StudentID string
	From      string
	To        string
}

func (f Filter) match(r Record) bool {
	to := f.To
	if len(to) == len("2006-01-02") {
		to += "T23:59:59.999Z"
	}
	return (f.StudentID == "" || r.StudentID == f.StudentID) &&
		(f.From == "" || r.Timestamp >= f.From) &&
		(to == "" || r.Timestamp <= to)
}

// NewActivity is the input of Service.Add.
type NewActivity struct {
	StudentID   string `validate:"required"`
	Type        string `validate:"oneof=assignment quiz participation other"`
	Description string `validate:"required"`
}

var addMessages = map[string]string{
	"StudentID":   "studentId required",
	"Type":        "type must be assignment|quiz|participation|other",
	"Description": "description required",
}

// StudentLookup resolves student references.
type StudentLookup interface {
	Get(ctx context.Context, id string) (students.Student, error)
}

type Service struct {
	table    *store.Table[Record]
	students StudentLookup
	events   queue.Publisher
	validate *validator.Validate
	now      func() time.Time
}

func NewService(backend store.Backend, lookup StudentLookup, events queue.Publisher) *Service {
	if events == nil {
		events = queue.Discard
	}
	return &Service{
		table:    store.NewTable[Record](backend, store.Activities),
		students: lookup,
		events:   events,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Add validates the input, checks the student exists and appends a record.
// Type is matched case-insensitively and stored lower-case.
func (s *Service) Add(ctx context.Context, in NewActivity) (Record, error) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if err := apperr.Validate(s.validate, in, addMessages); err != nil {
		return Record{}, err
	}
	if _, err := s.students.Get(ctx, in.StudentID); err != nil {
		return Record{}, err
	}

	now := s.now().UTC()
	rec := Record{
		ID:          uuid.NewString(),
		StudentID:   in.StudentID,
		Timestamp:   now.Format(TimestampLayout),
		Type:        in.Type,
		Description: in.Description,
	}
	if err := s.table.Append(ctx, rec); err != nil {
		return Record{}, err
	}
	metrics.RecordsCreated.WithLabelValues(store.Activities).Inc()
	_ = s.events.Publish(ctx, queue.Message{
		Type:    queue.ActivityAdded,
		Subject: rec.StudentID,
		Text:    fmt.Sprintf("Activity added %s %s", rec.StudentID, rec.Type),
		At:      now,
	})
	return rec, nil
}

// List returns records matching f in insertion order.
func (s *Service) List(ctx context.Context, f Filter) ([]Record, error) {
	rows, err := s.table.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
