package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"classroom/internal/activities"
	"classroom/internal/apperr"
	"classroom/internal/applog"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/publish"
	"classroom/internal/report"
	"classroom/internal/students"
)

// ReportPublisher uploads a written report file.
type ReportPublisher interface {
	UploadFile(ctx context.Context, path string) (*publish.Result, error)
}

type Handler struct {
	auth       *auth.Service
	sessions   *auth.Sessions
	students   *students.Service
	attendance *attendance.Service
	activities *activities.Service
	reports    *report.Generator
	publisher  ReportPublisher // nil if publishing is not configured
	log        *applog.Logger
}

func New(
	authSvc *auth.Service,
	sessions *auth.Sessions,
	st *students.Service,
	att *attendance.Service,
	acts *activities.Service,
	reports *report.Generator,
	publisher ReportPublisher,
	log *applog.Logger,
) *Handler {
	return &Handler{
		auth:       authSvc,
		sessions:   sessions,
		students:   st,
		attendance: att,
		activities: acts,
		reports:    reports,
		publisher:  publisher,
		log:        log,
	}
}

// fail writes {"error": msg} with the status derived from err. Errors without
// a known kind get fallback; 5xx bodies do not leak internals.
func (h *Handler) fail(c *gin.Context, err error, fallback int) {
	status := apperr.HTTPStatus(err, fallback)
	h.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = "Internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

// bindJSON decodes the body into dst. An empty body leaves dst zero so the
// service reports the missing fields.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, apperr.Validation("invalid JSON body"), http.StatusBadRequest)
		return false
	}
	return true
}

// ---------- Health ----------

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------- Auth ----------

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	token, err := h.auth.AdminLogin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err, http.StatusUnauthorized)
		return
	}
	h.log.Info("Admin login %s", req.Username)
	c.JSON(http.StatusOK, gin.H{"token": token})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Year     string `json:"year"`
	Password string `json:"password"`
}

func (h *Handler) RegisterStudent(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}
	acct, err := h.auth.RegisterStudent(c.Request.Context(), auth.Registration{
		Name:     req.Name,
		Email:    req.Email,
		Year:     req.Year,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": acct.ID, "email": acct.Email, "name": acct.Name, "year": acct.Year})
}

type studentLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) StudentLogin(c *gin.Context) {
	var req studentLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}
	token, id, err := h.auth.StudentLogin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, http.StatusUnauthorized)
		return
	}
	h.log.Info("Student login %s", id)
	c.JSON(http.StatusOK, gin.H{"token": token, "studentId": id})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), auth.TokenFrom(c)); err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	s, _ := auth.SessionFrom(c)
	if s.Role == auth.RoleAdmin {
		c.JSON(http.StatusOK, gin.H{"role": s.Role, "user": s.Identity})
		return
	}
	st, err := h.students.Get(c.Request.Context(), s.Identity)
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": s.Role, "student": st})
}

// ---------- Students ----------

type addStudentRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Year   string `json:"year"`
	Cohort string `json:"cohort"`
	Status string `json:"status"`
}

func (h *Handler) ListStudents(c *gin.Context) {
	list, err := h.students.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	st, err := h.students.Add(c.Request.Context(), students.NewStudent{
		Name:   req.Name,
		Email:  req.Email,
		Year:   req.Year,
		Cohort: req.Cohort,
		Status: req.Status,
	})
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) SetStudentStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	st, err := h.students.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------- Attendance ----------

type markRequest struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	Note      string `json:"note"`
}

func attendanceFilter(c *gin.Context) attendance.Filter {
	return attendance.Filter{StudentID: c.Query("studentId"), From: c.Query("from"), To: c.Query("to")}
}

func (h *Handler) ListAttendance(c *gin.Context) {
	list, err := h.attendance.List(c.Request.Context(), attendanceFilter(c))
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rec, err := h.attendance.Mark(c.Request.Context(), attendance.NewMark{
		StudentID: req.StudentID,
		Date:      req.Date,
		Status:    req.Status,
		Note:      req.Note,
	})
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) MyAttendance(c *gin.Context) {
	s, _ := auth.SessionFrom(c)
	list, err := h.attendance.List(c.Request.Context(), attendance.Filter{StudentID: s.Identity})
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ---------- Activities ----------

type activityRequest struct {
	StudentID   string `json:"studentId"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func activityFilter(c *gin.Context) activities.Filter {
	return activities.Filter{StudentID: c.Query("studentId"), From: c.Query("from"), To: c.Query("to")}
}

func (h *Handler) ListActivities(c *gin.Context) {
	list, err := h.activities.List(c.Request.Context(), activityFilter(c))
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) AddActivity(c *gin.Context) {
	var req activityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	rec, err := h.activities.Add(c.Request.Context(), activities.NewActivity{
		StudentID:   req.StudentID,
		Type:        req.Type,
		Description: req.Description,
	})
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) MyActivities(c *gin.Context) {
	s, _ := auth.SessionFrom(c)
	list, err := h.activities.List(c.Request.Context(), activities.Filter{StudentID: s.Identity})
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}
