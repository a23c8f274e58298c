package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"classroom/internal/activities"
	"classroom/internal/applog"
	"classroom/internal/attendance"
	"classroom/internal/auth"
	"classroom/internal/publish"
	"classroom/internal/report"
	"classroom/internal/store"
	"classroom/internal/students"
)

type fakePublisher struct {
	paths []string
	err   error
}

func (p *fakePublisher) UploadFile(_ context.Context, path string) (*publish.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.paths = append(p.paths, path)
	return &publish.Result{PublicID: filepath.Base(path), SecureURL: "https://cdn.example/" + filepath.Base(path)}, nil
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	dir     string
	pub     *fakePublisher
	logPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	backend, err := store.NewFileBackend(filepath.Join(dir, "data"), store.Collections...)
	require.NoError(t, err)
	logger := applog.New(filepath.Join(dir, "logs"))

	st := students.NewService(backend, logger)
	att := attendance.NewService(attendance.NewRepository(backend), st, logger)
	acts := activities.NewService(backend, st, logger)
	reports := report.NewGenerator(filepath.Join(dir, "reports"), st, att, acts)
	sessions := auth.NewSessions(auth.NewMemoryRegistry(), auth.NewTokenCodec("test-key", "classroom"))
	authSvc := auth.NewService(sessions, auth.AdminCredentials{Username: "admin", Password: "password"}, st)

	static := filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(static, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>classroom</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	pub := &fakePublisher{}
	h := New(authSvc, sessions, st, att, acts, reports, pub, logger)
	return &testEnv{
		t:       t,
		router:  NewRouter(h, Options{StaticDir: static}),
		dir:     dir,
		pub:     pub,
		logPath: logger.Path(),
	}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) adminToken() string {
	w := e.do(http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": "password"})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	return decode[map[string]string](e.t, w)["token"]
}

func (e *testEnv) addStudent(token, name, email string) students.Student {
	w := e.do(http.MethodPost, "/api/students", token, gin.H{"name": name, "email": email})
	require.Equal(e.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[students.Student](e.t, w)
}

func (e *testEnv) studentToken(email, password string) (string, string) {
	w := e.do(http.MethodPost, "/api/students/login", "", gin.H{"email": email, "password": password})
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]string](e.t, w)
	return body["token"], body["studentId"]
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = e.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminLogin(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/login", "", gin.H{"username": "admin", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/login", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	require.NotEmpty(t, e.adminToken())
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/students", "/api/attendance", "/api/me", "/api/my/attendance", "/api/reports/students"} {
		w := e.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
		w = e.do(http.MethodGet, path, "forged", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestStudents_AdminFlow(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken()

	s := e.addStudent(token, "Ada", "Ada@Example.com")
	require.Equal(t, "ada@example.com", s.Email)
	require.Equal(t, students.DefaultYear, s.Year)
	require.Equal(t, students.StatusActive, s.Status)

	w := e.do(http.MethodPost, "/api/students", token, gin.H{"name": "Other", "email": "ada@example.com"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `{"error":"Email already exists"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/students", token, gin.H{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Name is required"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/students", token, gin.H{"name": "Legacy", "email": "l@example.com", "cohort": "2024"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "2024", decode[students.Student](t, w).Year)

	w = e.do(http.MethodPatch, "/api/students/"+s.ID+"/status", token, gin.H{"status": "inactive"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, students.StatusInactive, decode[students.Student](t, w).Status)

	w = e.do(http.MethodPatch, "/api/students/"+s.ID+"/status", token, gin.H{"status": "gone"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"Status must be active|inactive"}`, w.Body.String())

	w = e.do(http.MethodPatch, "/api/students/missing/status", token, gin.H{"status": "active"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/students?status=inactive", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]students.Student](t, w)
	require.Len(t, list, 1)
	require.Equal(t, s.ID, list[0].ID)

	w = e.do(http.MethodGet, "/api/students/"+s.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/api/students/missing", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"Student not found"}`, w.Body.String())

	logged, err := os.ReadFile(e.logPath)
	require.NoError(t, err)
	require.Contains(t, string(logged), "[INFO] Student created "+s.ID)
	require.Contains(t, string(logged), "[ERROR] GET /api/students/missing")
}

func TestStudentSelfService(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	rostered := e.addStudent(admin, "Grace", "grace@example.com")

	w := e.do(http.MethodPost, "/api/students/register", "", gin.H{"email": "GRACE@example.com", "password": "hopper"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode[map[string]string](t, w)
	require.Equal(t, rostered.ID, reg["id"])
	require.Equal(t, "grace@example.com", reg["email"])
	require.NotContains(t, w.Body.String(), "salt")

	w = e.do(http.MethodPost, "/api/students/register", "", gin.H{"email": "grace@example.com", "password": "again"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.JSONEq(t, `{"error":"Email already registered"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/students/register", "", gin.H{"email": "x@example.com"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"email and password required"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/students/login", "", gin.H{"email": "grace@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.JSONEq(t, `{"error":"Invalid credentials"}`, w.Body.String())

	token, id := e.studentToken("grace@example.com", "hopper")
	require.Equal(t, rostered.ID, id)

	w = e.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"role":"student"`)
	require.Contains(t, w.Body.String(), rostered.ID)
	require.NotContains(t, w.Body.String(), "auth")
	require.NotContains(t, w.Body.String(), "hash")

	w = e.do(http.MethodGet, "/api/students", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"error":"Forbidden"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/students", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "hash")

	w = e.do(http.MethodGet, "/api/my/attendance", admin, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodGet, "/api/me", admin, nil)
	require.JSONEq(t, `{"role":"admin","user":"admin"}`, w.Body.String())

	raw, err := os.ReadFile(filepath.Join(e.dir, "data", "students.json"))
	require.NoError(t, err)
	require.Contains(t, string(raw), `"auth"`)
}

func TestMyRecordsAreScoped(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	mine := e.addStudent(admin, "Mine", "mine@example.com")
	other := e.addStudent(admin, "Other", "other@example.com")

	for _, id := range []string{mine.ID, other.ID} {
		w := e.do(http.MethodPost, "/api/attendance", admin, gin.H{"studentId": id, "date": "2025-03-01", "status": "present"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		w = e.do(http.MethodPost, "/api/activities", admin, gin.H{"studentId": id, "type": "Quiz", "description": "unit 1"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := e.do(http.MethodPost, "/api/students/register", "", gin.H{"email": "mine@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	token, _ := e.studentToken("mine@example.com", "pw")

	w = e.do(http.MethodGet, "/api/my/attendance?studentId="+other.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	att := decode[[]attendance.Record](t, w)
	require.Len(t, att, 1)
	require.Equal(t, mine.ID, att[0].StudentID)

	w = e.do(http.MethodGet, "/api/my/activities", token, nil)
	acts := decode[[]activities.Record](t, w)
	require.Len(t, acts, 1)
	require.Equal(t, mine.ID, acts[0].StudentID)
	require.Equal(t, activities.TypeQuiz, acts[0].Type)
}

func TestAttendance_RejectsWithoutWriting(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	s := e.addStudent(admin, "Ada", "ada@example.com")

	cases := []struct {
		body   gin.H
		status int
		msg    string
	}{
		{gin.H{"studentId": "missing", "date": "2025-03-01", "status": "present"}, http.StatusNotFound, "Student not found"},
		{gin.H{"date": "2025-03-01", "status": "present"}, http.StatusBadRequest, "studentId required"},
		{gin.H{"studentId": s.ID, "date": "03/01/2025", "status": "present"}, http.StatusBadRequest, "date must be YYYY-MM-DD"},
		{gin.H{"studentId": s.ID, "date": "2025-03-01", "status": "sick"}, http.StatusBadRequest, "status must be present|absent|late"},
	}
	for _, tc := range cases {
		w := e.do(http.MethodPost, "/api/attendance", admin, tc.body)
		require.Equal(t, tc.status, w.Code, w.Body.String())
		require.Equal(t, tc.msg, decode[map[string]string](t, w)["error"])
	}

	w := e.do(http.MethodGet, "/api/attendance", admin, nil)
	require.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodPost, "/api/activities", admin, gin.H{"studentId": s.ID, "type": "exam", "description": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"type must be assignment|quiz|participation|other"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/attendance", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendance_DateFilter(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	s := e.addStudent(admin, "Ada", "ada@example.com")
	for _, d := range []string{"2025-01-10", "2025-02-10", "2025-03-10"} {
		w := e.do(http.MethodPost, "/api/attendance", admin, gin.H{"studentId": s.ID, "date": d, "status": "late"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := e.do(http.MethodGet, "/api/attendance?from=2025-02-01&to=2025-03-10", admin, nil)
	got := decode[[]attendance.Record](t, w)
	require.Len(t, got, 2)
	require.Equal(t, "2025-02-10", got[0].Date)
}

func TestReports(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	s := e.addStudent(admin, "Ada, Countess", "ada@example.com")
	w := e.do(http.MethodPost, "/api/attendance", admin, gin.H{"studentId": s.ID, "date": "2025-03-01", "status": "absent"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(http.MethodGet, "/api/reports/students", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]students.Student](t, w), 1)

	w = e.do(http.MethodGet, "/api/reports/students?format=csv", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "students.csv")
	require.True(t, strings.HasPrefix(w.Body.String(), "id,name,email,year,status,enrolledOn"))
	require.Contains(t, w.Body.String(), `"Ada, Countess"`)
	require.FileExists(t, filepath.Join(e.dir, "reports", "students.csv"))

	w = e.do(http.MethodGet, "/api/reports/attendance?format=csv&studentId="+s.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Disposition"), "attendance-"+s.ID+".csv")

	w = e.do(http.MethodGet, "/api/reports/activities?format=xml", admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"error":"format must be json|csv"}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/reports/student-summary/"+s.ID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[report.Summary](t, w)
	require.Equal(t, report.Counts{Attendance: 1, Absent: 1}, sum.Counts)
	require.FileExists(t, filepath.Join(e.dir, "reports", "student-summary-"+s.ID+".json"))

	w = e.do(http.MethodGet, "/api/reports/student-summary/missing", admin, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReports_Publish(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()
	e.addStudent(admin, "Ada", "ada@example.com")

	w := e.do(http.MethodGet, "/api/reports/students?format=json&publish=true", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]string](t, w)
	require.Equal(t, "https://cdn.example/students.json", body["url"])
	require.Equal(t, []string{filepath.Join(e.dir, "reports", "students.json")}, e.pub.paths)

	e.pub.err = errors.New("down")
	w = e.do(http.MethodGet, "/api/reports/students?format=csv&publish=true", admin, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken()

	w := e.do(http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodGet, "/api/students", token, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaticFallback(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "classroom")

	w = e.do(http.MethodGet, "/app.js", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "console.log")

	w = e.do(http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}

func TestReports_RejectPathLikeStudentID(t *testing.T) {
	e := newTestEnv(t)
	admin := e.adminToken()

	for _, path := range []string{
		"/api/reports/attendance?format=csv&studentId=%2F..%2F..%2F..%2Fescaped",
		"/api/reports/activities?format=csv&studentId=..%2Fescaped",
		"/api/reports/student-summary/..",
	} {
		w := e.do(http.MethodGet, path, admin, nil)
		require.Equal(t, http.StatusBadRequest, w.Code, path)
		require.JSONEq(t, `{"error":"invalid studentId"}`, w.Body.String(), path)
	}

	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)
	for _, entry := range entries {
		require.NotEqual(t, "escaped.csv", entry.Name())
	}
	_, err = os.Stat(filepath.Join(e.dir, "reports"))
	require.True(t, os.IsNotExist(err))
}
