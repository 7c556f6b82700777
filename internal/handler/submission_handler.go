package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/service"
	"github.com/noah-isme/labreview-api/internal/state"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/response"
)

// SubmissionHandler exposes the submission index and its mutations.
type SubmissionHandler struct {
	submissions *service.SubmissionService
	owners      *service.OwnerService
	grades      *service.GradeService
	store       *state.Store
}

// NewSubmissionHandler constructs handler.
func NewSubmissionHandler(submissions *service.SubmissionService, owners *service.OwnerService, grades *service.GradeService, store *state.Store) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, owners: owners, grades: grades, store: store}
}

// FetchCourse godoc
// @Summary Load the per-owner submission snapshot of a course
// @Tags Submissions
// @Produce json
// @Param courseID path int true "Course ID"
// @Param type query string false "ALL, INDIVIDUAL or GROUP"
// @Param withBuildInfo query bool false "Include build logs"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/submissions [get]
func (h *SubmissionHandler) FetchCourse(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	submissionType := client.SubmissionType(c.DefaultQuery("type", string(client.SubmissionsAll)))
	withBuildInfo := c.Query("withBuildInfo") == "true"

	err := h.submissions.FetchCourseSubmissions(c.Request.Context(), service.FetchCourseRequest{
		CourseID:      courseID,
		Type:          submissionType,
		WithBuildInfo: withBuildInfo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.ownerLinks())
}

// GetByID godoc
// @Summary Look up one submission by ID
// @Tags Submissions
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sub, found := h.store.Index.ByID(id)
	if !found {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// OwnerByID godoc
// @Summary Resolve the owner a submission is stored under
// @Tags Submissions
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/owner [get]
func (h *SubmissionHandler) OwnerByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	owner, err := h.owners.OwnerByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, owner)
}

// CellColor godoc
// @Summary Resolve the results-cell class for a submission and owner
// @Tags Submissions
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/color [get]
func (h *SubmissionHandler) CellColor(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sub, found := h.store.Index.ByID(id)
	if !found {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	owner, err := h.owners.OwnerByID(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"color": h.grades.SubmissionCellColor(sub, owner)})
}

// SetStatusAll godoc
// @Summary Set every member's status on a submission
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/status [post]
func (h *SubmissionHandler) SetStatusAll(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.SetStatusAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = id
	sub, err := h.grades.SetStatusAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// SetMemberStatus godoc
// @Summary Set one member's status on a submission
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Param userID path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grades/{userID}/status [post]
func (h *SubmissionHandler) SetMemberStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	var req service.SetMemberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = id
	req.UserID = userID
	sub, err := h.grades.SetMemberStatus(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// Rebuild godoc
// @Summary Re-run tests for a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/rebuild [post]
func (h *SubmissionHandler) Rebuild(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.RebuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = id
	sub, err := h.submissions.Rebuild(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// Release godoc
// @Summary Toggle the released flag of a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/release [post]
func (h *SubmissionHandler) Release(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = id
	sub, err := h.submissions.Release(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub)
}

// ReleaseAll godoc
// @Summary Bulk release or approve reviews above a minimum score
// @Tags Submissions
// @Accept json
// @Produce json
// @Param courseID path int true "Course ID"
// @Param assignmentID path int true "Assignment ID"
// @Success 204
// @Router /courses/{courseID}/assignments/{assignmentID}/release [post]
func (h *SubmissionHandler) ReleaseAll(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	assignmentID, ok := pathID(c, "assignmentID")
	if !ok {
		return
	}
	var req service.ReleaseAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.CourseID = courseID
	req.AssignmentID = assignmentID
	if err := h.submissions.ReleaseAll(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UserSubmissions godoc
// @Summary Fetch one user's submissions in a course
// @Tags Submissions
// @Produce json
// @Param courseID path int true "Course ID"
// @Param userID path int true "User ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseID}/users/{userID}/submissions [get]
func (h *SubmissionHandler) UserSubmissions(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userID")
	if !ok {
		return
	}
	subs, err := h.submissions.FetchUserSubmissions(c.Request.Context(), courseID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs)
}

// SetAssignments godoc
// @Summary Load the live assignment templates for a course
// @Tags Assignments
// @Accept json
// @Produce json
// @Param courseID path int true "Course ID"
// @Success 204
// @Router /courses/{courseID}/assignments [put]
func (h *SubmissionHandler) SetAssignments(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	var assignments []*models.Assignment
	if err := c.ShouldBindJSON(&assignments); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	h.store.SetAssignments(courseID, assignments)
	response.NoContent(c)
}

// InvalidateCourse godoc
// @Summary Drop in-flight snapshot fetches for a course the client left
// @Tags Submissions
// @Param courseID path int true "Course ID"
// @Success 204
// @Router /courses/{courseID}/invalidate [post]
func (h *SubmissionHandler) InvalidateCourse(c *gin.Context) {
	courseID, ok := pathID(c, "courseID")
	if !ok {
		return
	}
	h.submissions.InvalidateCourse(courseID)
	response.NoContent(c)
}

// ResetSession godoc
// @Summary Reset the session state (logout)
// @Tags Session
// @Success 204
// @Router /session/reset [post]
func (h *SubmissionHandler) ResetSession(c *gin.Context) {
	h.store.Reset()
	response.NoContent(c)
}

func (h *SubmissionHandler) ownerLinks() *client.CourseSubmissions {
	links := &client.CourseSubmissions{
		ForUsers:  make(map[uint64][]*models.Submission),
		ForGroups: make(map[uint64][]*models.Submission),
	}
	for _, owner := range h.store.Index.Owners(state.TableUser) {
		links.ForUsers[owner.ID] = h.store.Index.ForOwner(owner)
	}
	for _, owner := range h.store.Index.Owners(state.TableGroup) {
		links.ForGroups[owner.ID] = h.store.Index.ForOwner(owner)
	}
	return links
}
