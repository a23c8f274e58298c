// Package students manages the roster: creation, lookup, status changes and
// attaching login credentials to roster entries.
package students

import "classroom/internal/auth"

const (
	StatusActive   = "active"
	StatusInactive = "inactive"

	// DefaultYear is used when neither year nor cohort is given.
	DefaultYear = "general"
)

// Student is the externally visible record. It never carries credentials.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Year       string `json:"year"`
	Status     string `json:"status"`
	EnrolledOn string `json:"enrolledOn"`
}

// record is the persisted form. Cohort is the legacy name of Year.
type record struct {
	Student
	Cohort string           `json:"cohort,omitempty"`
	Auth   *auth.Credential `json:"auth,omitempty"`
}

func (r record) public() Student {
	s := r.Student
	if s.Year == "" {
		s.Year = r.Cohort
	}
	return s
}

func (r record) account() auth.Account {
	s := r.public()
	return auth.Account{ID: s.ID, Name: s.Name, Email: s.Email, Year: s.Year, Credential: r.Auth}
}

func (r record) registered() bool {
	return r.Auth != nil && r.Auth.Hash != ""
}
