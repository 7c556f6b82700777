package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/state"
	"github.com/noah-isme/labreview-api/pkg/alerts"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

// Cell color classes rendered by the results table.
const (
	CellApproved = "result-approved"
	CellRevision = "result-revision"
	CellRejected = "result-rejected"
	CellMixed    = "result-mixed"
	CellDefault  = "clickable"
)

// SetMemberStatusRequest updates one member's status on a submission.
type SetMemberStatusRequest struct {
	SubmissionID uint64                  `json:"submission_id" validate:"required"`
	UserID       uint64                  `json:"user_id" validate:"required"`
	Status       models.SubmissionStatus `json:"status" validate:"required,oneof=NONE APPROVED REJECTED REVISION"`
}

// SetStatusAllRequest updates every member's status on a submission.
type SetStatusAllRequest struct {
	SubmissionID uint64                  `json:"submission_id" validate:"required"`
	Status       models.SubmissionStatus `json:"status" validate:"required,oneof=NONE APPROVED REJECTED REVISION"`
}

// GradeService performs per-member and bulk status mutation over the grade
// list of a submission. Mutations are optimistic: the index is updated first
// and rolled back to the pre-request value when the upstream call fails.
type GradeService struct {
	store     *state.Store
	transport client.Client
	cache     *CacheService
	alerts    *alerts.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs a GradeService.
func NewGradeService(store *state.Store, transport client.Client, cache *CacheService, alertQueue *alerts.Queue, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		store:     store,
		transport: transport,
		cache:     cache,
		alerts:    alertQueue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// SetMemberStatus replaces one member's status, preserving every other
// grade entry (non-interference).
func (s *GradeService) SetMemberStatus(ctx context.Context, req SetMemberStatusRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload")
	}

	prev, owner, err := s.lookup(req.SubmissionID)
	if err != nil {
		return nil, err
	}

	updated := prev.WithStatusByUser(req.UserID, req.Status)
	s.store.Index.Update(owner, updated)

	if err := s.transport.UpdateGrade(ctx, prev.ID, models.Grade{UserID: req.UserID, Status: req.Status}); err != nil {
		s.rollback(owner, prev, err)
		return nil, err
	}
	s.invalidateSnapshot(ctx, prev.AssignmentID)
	return updated, nil
}

// SetStatusAll replaces every member's status in one mutation. The grade
// list keeps exactly the same entries.
func (s *GradeService) SetStatusAll(ctx context.Context, req SetStatusAllRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload")
	}

	prev, owner, err := s.lookup(req.SubmissionID)
	if err != nil {
		return nil, err
	}
	assignment, ok := s.store.AssignmentByID(prev.AssignmentID)
	if !ok {
		return nil, appErrors.ErrNotFound
	}

	updated := prev.WithStatusAll(req.Status)
	s.store.Index.Update(owner, updated)

	if err := s.transport.UpdateSubmission(ctx, assignment.CourseID, updated); err != nil {
		s.rollback(owner, prev, err)
		return nil, err
	}
	s.invalidateSnapshot(ctx, prev.AssignmentID)
	return updated, nil
}

// SubmissionCellColor is the total coloring function for a results cell. A
// group owner renders an aggregate class, an individual owner renders that
// member's own status, and anything else falls back to the neutral class.
func (s *GradeService) SubmissionCellColor(submission *models.Submission, owner models.Owner) string {
	if owner.IsGroup() {
		switch {
		case submission.IsAllApproved():
			return CellApproved
		case submission.IsAllRevision():
			return CellRevision
		case submission.IsAllRejected():
			return CellRejected
		}
		for _, g := range submission.Grades {
			if g.Status != models.StatusNone {
				return CellMixed
			}
		}
		return CellDefault
	}

	switch {
	case submission.UserHasStatus(owner.ID, models.StatusApproved):
		return CellApproved
	case submission.UserHasStatus(owner.ID, models.StatusRevision):
		return CellRevision
	case submission.UserHasStatus(owner.ID, models.StatusRejected):
		return CellRejected
	}
	return CellDefault
}

// AssignmentStatusText renders the approval hint shown next to a submission.
func AssignmentStatusText(assignment *models.Assignment, submission *models.Submission, status models.SubmissionStatus) string {
	if status == models.StatusNone {
		if !assignment.AutoApprove && submission.Score >= assignment.ScoreLimit {
			return "Awaiting approval"
		}
		if submission.Score < assignment.ScoreLimit {
			return fmt.Sprintf("Need %d%% score for approval", assignment.ScoreLimit)
		}
	}
	return statusText(status)
}

func statusText(status models.SubmissionStatus) string {
	switch status {
	case models.StatusApproved:
		return "Approved"
	case models.StatusRejected:
		return "Rejected"
	case models.StatusRevision:
		return "Revision"
	default:
		return "None"
	}
}

func (s *GradeService) lookup(submissionID uint64) (*models.Submission, models.Owner, error) {
	sub, ok := s.store.Index.ByID(submissionID)
	if !ok {
		return nil, models.Owner{}, appErrors.ErrNotFound
	}
	owner, ok := s.store.Index.OwnerByID(submissionID)
	if !ok {
		return nil, models.Owner{}, appErrors.ErrNotFound
	}
	return sub, owner, nil
}

// invalidateSnapshot drops the cached course snapshot after a confirmed
// mutation so a later cache fallback cannot resurrect the pre-mutation copy.
func (s *GradeService) invalidateSnapshot(ctx context.Context, assignmentID uint64) {
	assignment, ok := s.store.AssignmentByID(assignmentID)
	if !ok {
		return
	}
	if err := s.cache.InvalidateCourse(ctx, assignment.CourseID); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.Uint64("course_id", assignment.CourseID), zap.Error(err))
	}
}

func (s *GradeService) rollback(owner models.Owner, prev *models.Submission, cause error) {
	s.store.Index.Update(owner, prev)
	if s.metrics != nil {
		s.metrics.RecordRollback()
	}
	if s.alerts != nil {
		s.alerts.Push(appErrors.FromError(cause).Message, alerts.SeverityDanger)
		if s.metrics != nil {
			s.metrics.RecordAlert()
		}
	}
	s.logger.Warn("grade update rolled back",
		zap.Uint64("submission_id", prev.ID),
		zap.String("owner", owner.String()),
		zap.Error(cause),
	)
}
