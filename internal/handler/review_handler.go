package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/labreview-api/internal/service"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
	"github.com/noah-isme/labreview-api/pkg/response"
)

// ReviewHandler exposes review creation and the grading mutations.
type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create godoc
// @Summary Open a new review on a submission
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path int true "Submission ID"
// @Success 201 {object} response.Envelope
// @Router /submissions/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SubmissionID = id
	review, err := h.reviews.CreateReview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// SetGrade godoc
// @Summary Grade one criterion within a review
// @Tags Reviews
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/grade [patch]
func (h *ReviewHandler) SetGrade(c *gin.Context) {
	var req service.SetGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.SetGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review)
}

// SetReady godoc
// @Summary Toggle a review's readiness
// @Tags Reviews
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/ready [patch]
func (h *ReviewHandler) SetReady(c *gin.Context) {
	var req service.SetReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.SetReady(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review)
}

// UpdateFeedback godoc
// @Summary Replace a review's feedback text
// @Tags Reviews
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/feedback [patch]
func (h *ReviewHandler) UpdateFeedback(c *gin.Context) {
	var req service.UpdateFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.UpdateFeedback(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review)
}

// UpdateComment godoc
// @Summary Set the comment on a benchmark or criterion
// @Tags Reviews
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/comment [patch]
func (h *ReviewHandler) UpdateComment(c *gin.Context) {
	var req service.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	review, err := h.reviews.UpdateComment(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review)
}
