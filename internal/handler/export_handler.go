package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labreview-api/internal/service"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/response"
)

// ExportHandler renders course results as downloadable files. When an
// archive service is configured, exports can also be stored and fetched
// later through signed links.
type ExportHandler struct {
	exports *service.ExportService
	archive *service.ArchiveService
}

func NewExportHandler(exports *service.ExportService, archive *service.ArchiveService) *ExportHandler {
	return &ExportHandler{exports: exports, archive: archive}
}

// CourseResults godoc
// @Summary Export the course results table as CSV or PDF
// @Tags Exports
// @Produce octet-stream
// @Param courseID path int true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /courses/{courseID}/results/export [get]
func (h *ExportHandler) CourseResults(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))
	if format != service.FormatCSV && format != service.FormatPDF {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "unsupported export format"))
		return
	}

	data, contentType, err := h.exports.CourseResults(courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("course_%d_results_%s.%s", courseID, time.Now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, data)
}

// ArchiveCourseResults godoc
// @Summary Render and archive course results, returning a signed download link
// @Tags Exports
// @Produce json
// @Param courseID path int true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Router /courses/{courseID}/results/archive [post]
func (h *ExportHandler) ArchiveCourseResults(c *gin.Context) {
	if h.archive == nil {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "export archive is not configured"))
		return
	}
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))
	if format != service.FormatCSV && format != service.FormatPDF {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "unsupported export format"))
		return
	}

	data, _, err := h.exports.CourseResults(courseID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	name := fmt.Sprintf("course_%d_results_%s.%s", courseID, time.Now().Format("20060102T150405"), format)
	archived, err := h.archive.Store(name, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, archived)
}

// Download godoc
// @Summary Fetch an archived export through its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.archive == nil {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "export archive is not configured"))
		return
	}
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusBadRequest, "missing download token"))
		return
	}

	file, name, err := h.archive.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "stat archived export"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.DataFromReader(http.StatusOK, info.Size(), contentTypeFor(name), file, nil)
}

func contentTypeFor(name string) string {
	if strings.HasSuffix(name, ".pdf") {
		return "application/pdf"
	}
	return "text/csv"
}
