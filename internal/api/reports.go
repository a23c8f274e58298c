package api

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"classroom/internal/report"
)

// ---------- Reports ----------

// Reports default to JSON, which is served inline from the live data. CSV
// is written under the reports directory and sent as a download.
// publish=true writes the file in either format and uploads it instead.

func (h *Handler) StudentsReport(c *gin.Context) {
	f, ok := h.reportFormat(c)
	if !ok {
		return
	}
	if f == report.FormatJSON && !wantsPublish(c) {
		h.ListStudents(c)
		return
	}
	out, err := h.reports.Students(c.Request.Context(), f, "")
	h.sendReport(c, out, err)
}

func (h *Handler) AttendanceReport(c *gin.Context) {
	f, ok := h.reportFormat(c)
	if !ok {
		return
	}
	if f == report.FormatJSON && !wantsPublish(c) {
		h.ListAttendance(c)
		return
	}
	out, err := h.reports.Attendance(c.Request.Context(), f, attendanceFilter(c), "")
	h.sendReport(c, out, err)
}

func (h *Handler) ActivitiesReport(c *gin.Context) {
	f, ok := h.reportFormat(c)
	if !ok {
		return
	}
	if f == report.FormatJSON && !wantsPublish(c) {
		h.ListActivities(c)
		return
	}
	out, err := h.reports.Activities(c.Request.Context(), f, activityFilter(c), "")
	h.sendReport(c, out, err)
}

// StudentSummaryReport always writes the summary file; JSON is also returned
// inline.
func (h *Handler) StudentSummaryReport(c *gin.Context) {
	f, ok := h.reportFormat(c)
	if !ok {
		return
	}
	out, sum, err := h.reports.StudentSummary(c.Request.Context(), c.Param("id"), f, "")
	if err != nil || f == report.FormatCSV || wantsPublish(c) {
		h.sendReport(c, out, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) reportFormat(c *gin.Context) (report.Format, bool) {
	f, err := report.ParseFormat(c.Query("format"), report.FormatJSON)
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return "", false
	}
	return f, true
}

func wantsPublish(c *gin.Context) bool {
	return c.Query("publish") == "true"
}

func (h *Handler) sendReport(c *gin.Context, out report.Output, err error) {
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	if !wantsPublish(c) {
		c.FileAttachment(out.Path, filepath.Base(out.Path))
		return
	}
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report publishing not configured"})
		return
	}
	res, err := h.publisher.UploadFile(c.Request.Context(), out.Path)
	if err != nil {
		h.log.Error("publish %s: %v", out.Path, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "report publish failed"})
		return
	}
	h.log.Info("Report published %s => %s", filepath.Base(out.Path), res.SecureURL)
	c.JSON(http.StatusOK, gin.H{"file": filepath.Base(out.Path), "url": res.SecureURL, "public_id": res.PublicID})
}
