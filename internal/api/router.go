// Package api wires the HTTP routes onto gin.
package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classroom/internal/auth"
	"classroom/internal/httpmiddleware"
)

// Options configures the router beyond the handler's dependencies.
type Options struct {
	StaticDir       string
	RateLimitPerMin int
	// Health reports backend reachability for /healthz; nil means always ok.
	Health func(ctx context.Context) map[string]bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics", "/api/health"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Disposition"},
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics())
	r.Use(httpmiddleware.NewClientLimiter(opts.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthz(opts.Health))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/login", h.AdminLogin)
		api.POST("/students/register", h.RegisterStudent)
		api.POST("/students/login", h.StudentLogin)
	}

	authed := api.Group("", auth.RequireSession(h.sessions))
	{
		authed.GET("/me", h.Me)
		authed.POST("/logout", h.Logout)
	}

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/students", h.ListStudents)
		admin.POST("/students", h.AddStudent)
		admin.GET("/students/:id", h.GetStudent)
		admin.PATCH("/students/:id/status", h.SetStudentStatus)

		admin.GET("/attendance", h.ListAttendance)
		admin.POST("/attendance", h.MarkAttendance)

		admin.GET("/activities", h.ListActivities)
		admin.POST("/activities", h.AddActivity)

		admin.GET("/reports/students", h.StudentsReport)
		admin.GET("/reports/attendance", h.AttendanceReport)
		admin.GET("/reports/activities", h.ActivitiesReport)
		admin.GET("/reports/student-summary/:id", h.StudentSummaryReport)
	}

	student := authed.Group("/my", auth.RequireRole(auth.RoleStudent))
	{
		student.GET("/attendance", h.MyAttendance)
		student.GET("/activities", h.MyActivities)
	}

	r.NoRoute(staticFallback(opts.StaticDir))
	return r
}

func healthz(check func(ctx context.Context) map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		status := http.StatusOK
		if check != nil {
			for name, ok := range check(c.Request.Context()) {
				body[name] = ok
				if !ok {
					status = http.StatusServiceUnavailable
				}
			}
		}
		c.JSON(status, body)
	}
}

// staticFallback serves files from dir; unknown /api paths get a JSON 404
// and anything else falls back to index.html.
func staticFallback(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if strings.HasPrefix(p, "/api/") || p == "/api" {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		if dir == "" {
			c.Status(http.StatusNotFound)
			return
		}
		file := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+p)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); err != nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(index)
	}
}
