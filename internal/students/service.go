package students

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"classroom/internal/apperr"
	"classroom/internal/auth"
	"classroom/internal/metrics"
	"classroom/internal/queue"
	"classroom/internal/store"
)

// NewStudent is the input of Add.
type NewStudent struct {
	Name   string `validate:"required"`
	Email  string `validate:"required,email"`
	Year   string
	Cohort string
	Status string `validate:"oneof=active inactive"`
}

var newStudentMessages = map[string]string{
	"Name":   "Name is required",
	"Email":  "Valid email is required",
	"Status": "Status must be active|inactive",
}

// Service owns the students table.
type Service struct {
	table    *store.Table[record]
	events   queue.Publisher
	validate *validator.Validate
	now      func() time.Time
}

func NewService(backend store.Backend, events queue.Publisher) *Service {
	if events == nil {
		events = queue.Discard
	}
	return &Service{
		table:    store.NewTable[record](backend, store.Students),
		events:   events,
		validate: validator.New(),
		now:      time.Now,
	}
}

func (s *Service) normalize(in NewStudent) NewStudent {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = auth.NormalizeEmail(in.Email)
	in.Year = strings.TrimSpace(in.Year)
	if in.Year == "" {
		in.Year = strings.TrimSpace(in.Cohort)
	}
	if in.Year == "" {
		in.Year = DefaultYear
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	return in
}

func (s *Service) newRecord(in NewStudent) record {
	return record{Student: Student{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Email:      in.Email,
		Year:       in.Year,
		Status:     in.Status,
		EnrolledOn: s.now().Format("2006-01-02"),
	}}
}

// Add creates a student. Email is stored lower-cased and must be unique.
func (s *Service) Add(ctx context.Context, in NewStudent) (Student, error) {
	in = s.normalize(in)
	if err := apperr.Validate(s.validate, in, newStudentMessages); err != nil {
		return Student{}, err
	}

	rec := s.newRecord(in)
	err := s.table.Update(ctx, func(rows []record) ([]record, error) {
		if indexByEmail(rows, in.Email) >= 0 {
			return nil, apperr.AlreadyExists("Email already exists")
		}
		return append(rows, rec), nil
	})
	if err != nil {
		return Student{}, err
	}
	metrics.RecordsCreated.WithLabelValues(store.Students).Inc()
	s.publish(ctx, queue.StudentCreated, rec.ID, fmt.Sprintf("Student created %s %s", rec.ID, rec.Email))
	return rec.public(), nil
}

// List returns all students, optionally only those with status.
func (s *Service) List(ctx context.Context, status string) ([]Student, error) {
	rows, err := s.table.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Student, 0, len(rows))
	for _, r := range rows {
		if status != "" && r.Status != status {
			continue
		}
		out = append(out, r.public())
	}
	return out, nil
}

// Get returns the student with id or apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (Student, error) {
	rec, err := s.find(ctx, func(r record) bool { return id != "" && r.ID == id })
	if err != nil {
		return Student{}, err
	}
	return rec.public(), nil
}

// FindByEmail looks a student up by normalized email.
func (s *Service) FindByEmail(ctx context.Context, email string) (Student, error) {
	email = auth.NormalizeEmail(email)
	rec, err := s.find(ctx, func(r record) bool { return email != "" && r.Email == email })
	if err != nil {
		return Student{}, err
	}
	return rec.public(), nil
}

// SetStatus changes a student's status.
func (s *Service) SetStatus(ctx context.Context, id, status string) (Student, error) {
	if status != StatusActive && status != StatusInactive {
		return Student{}, apperr.Validation("Status must be active|inactive")
	}
	var updated record
	err := s.table.Update(ctx, func(rows []record) ([]record, error) {
		i := indexByID(rows, id)
		if i < 0 {
			return nil, apperr.NotFound("Student not found")
		}
		rows[i].Status = status
		updated = rows[i]
		return rows, nil
	})
	if err != nil {
		return Student{}, err
	}
	s.publish(ctx, queue.StudentStatus, id, fmt.Sprintf("Student status updated %s => %s", id, status))
	return updated.public(), nil
}

// AccountByEmail implements auth.StudentDirectory.
func (s *Service) AccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	email = auth.NormalizeEmail(email)
	rec, err := s.find(ctx, func(r record) bool { return email != "" && r.Email == email })
	if err != nil {
		return auth.Account{}, err
	}
	return rec.account(), nil
}

// ClaimOrCreate implements auth.StudentDirectory. The lookup and the write
// happen under one table update, so two registrations for the same email
// cannot both succeed.
func (s *Service) ClaimOrCreate(ctx context.Context, e auth.Enrollment) (auth.Account, error) {
	email := auth.NormalizeEmail(e.Email)
	cred := e.Credential

	var (
		result  record
		created bool
	)
	err := s.table.Update(ctx, func(rows []record) ([]record, error) {
		if i := indexByEmail(rows, email); i >= 0 {
			if rows[i].registered() {
				return nil, apperr.ErrAlreadyRegistered
			}
			rows[i].Auth = &cred
			if e.Name != "" {
				rows[i].Name = e.Name
			}
			if e.Year != "" {
				rows[i].Year = e.Year
			}
			result = rows[i]
			return rows, nil
		}

		in := s.normalize(NewStudent{Name: e.Name, Email: email, Year: e.Year, Status: StatusActive})
		if err := apperr.Validate(s.validate, in, newStudentMessages); err != nil {
			return nil, err
		}
		result = s.newRecord(in)
		result.Auth = &cred
		created = true
		return append(rows, result), nil
	})
	if err != nil {
		return auth.Account{}, err
	}

	if created {
		metrics.RecordsCreated.WithLabelValues(store.Students).Inc()
		s.publish(ctx, queue.StudentCreated, result.ID, fmt.Sprintf("Student created %s %s", result.ID, result.Email))
	}
	s.publish(ctx, queue.StudentRegistered, result.ID, fmt.Sprintf("Student registered %s %s", result.ID, result.Email))
	return result.account(), nil
}

func (s *Service) find(ctx context.Context, match func(record) bool) (record, error) {
	rows, err := s.table.All(ctx)
	if err != nil {
		return record{}, err
	}
	for _, r := range rows {
		if match(r) {
			return r, nil
		}
	}
	return record{}, apperr.NotFound("Student not found")
}

func (s *Service) publish(ctx context.Context, typ, subject, text string) {
	_ = s.events.Publish(ctx, queue.Message{Type: typ, Subject: subject, Text: text, At: s.now().UTC()})
}

func indexByID(rows []record, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func indexByEmail(rows []record, email string) int {
	for i, r := range rows {
		if strings.EqualFold(r.Email, email) {
			return i
		}
	}
	return -1
}
