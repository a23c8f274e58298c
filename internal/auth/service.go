package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"classroom/internal/apperr"
	"classroom/internal/metrics"
)

// AdminCredentials is the single configured administrator.
type AdminCredentials struct {
	Username string
	Password string
}

// Account is the login-relevant view of a student record.
type Account struct {
	ID         string
	Name       string
	Email      string
	Year       string
	Credential *Credential
}

// Enrollment is a registration after the password has been hashed.
type Enrollment struct {
	Name       string
	Email      string
	Year       string
	Credential Credential
}

// StudentDirectory is the student store as seen by the login flows.
type StudentDirectory interface {
	// AccountByEmail returns apperr.ErrNotFound when no student has email.
	AccountByEmail(ctx context.Context, email string) (Account, error)
	// ClaimOrCreate attaches the credential to the roster entry with the
	// enrollment's email, or creates a new active student. It fails with
	// apperr.ErrAlreadyRegistered if that entry already has a credential.
	ClaimOrCreate(ctx context.Context, e Enrollment) (Account, error)
}

// Registration is a student self-service sign-up request.
type Registration struct {
	Name     string
	Email    string
	Year     string
	Password string
}

// Service implements admin login, student registration and student login.
type Service struct {
	sessions *Sessions
	admin    AdminCredentials
	students StudentDirectory
}

func NewService(sessions *Sessions, admin AdminCredentials, students StudentDirectory) *Service {
	return &Service{sessions: sessions, admin: admin, students: students}
}

// AdminLogin checks the static administrator pair and issues an admin session.
func (s *Service) AdminLogin(ctx context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
	if !userOK || !passOK || s.admin.Username == "" {
		metrics.LoginAttempts.WithLabelValues(string(RoleAdmin), "invalid").Inc()
		return "", apperr.ErrInvalidCredentials
	}
	token, _, err := s.sessions.Issue(ctx, RoleAdmin, username)
	if err != nil {
		return "", fmt.Errorf("issue session: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues(string(RoleAdmin), "ok").Inc()
	return token, nil
}

// RegisterStudent hashes the password and claims or creates the student
// record for the normalized email.
func (s *Service) RegisterStudent(ctx context.Context, r Registration) (Account, error) {
	email := NormalizeEmail(r.Email)
	if email == "" || r.Password == "" {
		return Account{}, apperr.Validation("email and password required")
	}
	cred, err := HashPassword(r.Password, "")
	if err != nil {
		return Account{}, err
	}
	return s.students.ClaimOrCreate(ctx, Enrollment{
		Name:       strings.TrimSpace(r.Name),
		Email:      email,
		Year:       strings.TrimSpace(r.Year),
		Credential: cred,
	})
}

// StudentLogin verifies the password of the student with email and issues a
// student session keyed to the student id. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *Service) StudentLogin(ctx context.Context, email, password string) (token, studentID string, err error) {
	acct, err := s.students.AccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		metrics.LoginAttempts.WithLabelValues(string(RoleStudent), "invalid").Inc()
		return "", "", apperr.ErrInvalidCredentials
	}
	if err != nil {
		return "", "", err
	}
	if !VerifyPassword(password, acct.Credential) {
		metrics.LoginAttempts.WithLabelValues(string(RoleStudent), "invalid").Inc()
		return "", "", apperr.ErrInvalidCredentials
	}
	token, _, err = s.sessions.Issue(ctx, RoleStudent, acct.ID)
	if err != nil {
		return "", "", fmt.Errorf("issue session: %w", err)
	}
	metrics.LoginAttempts.WithLabelValues(string(RoleStudent), "ok").Inc()
	return token, acct.ID, nil
}

// Logout revokes the session behind token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
