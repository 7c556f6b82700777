package service

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/state"
	"github.com/noah-isme/labreview-api/pkg/alerts"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

// CreateReviewRequest opens a new manual-grading pass over a submission.
type CreateReviewRequest struct {
	SubmissionID uint64 `json:"submission_id" validate:"required"`
	ReviewerID   uint64 `json:"reviewer_id" validate:"required"`
}

// SetGradeRequest grades one criterion within a review.
type SetGradeRequest struct {
	SubmissionID uint64                `json:"submission_id" validate:"required"`
	ReviewID     uint64                `json:"review_id" validate:"required"`
	CriterionID  uint64                `json:"criterion_id" validate:"required"`
	Grade        models.CriterionGrade `json:"grade" validate:"required,oneof=NONE PASSED FAILED"`
}

// SetReadyRequest toggles a review's readiness.
type SetReadyRequest struct {
	SubmissionID uint64 `json:"submission_id" validate:"required"`
	ReviewID     uint64 `json:"review_id" validate:"required"`
	Ready        bool   `json:"ready"`
}

// UpdateFeedbackRequest replaces a review's feedback text.
type UpdateFeedbackRequest struct {
	SubmissionID uint64 `json:"submission_id" validate:"required"`
	ReviewID     uint64 `json:"review_id" validate:"required"`
	Feedback     string `json:"feedback"`
}

// Comment targets for UpdateCommentRequest.
const (
	CommentTargetBenchmark = "benchmark"
	CommentTargetCriterion = "criterion"
)

// UpdateCommentRequest replaces a benchmark or criterion comment within a
// review's own tree.
type UpdateCommentRequest struct {
	SubmissionID uint64 `json:"submission_id" validate:"required"`
	ReviewID     uint64 `json:"review_id" validate:"required"`
	Target       string `json:"target" validate:"required,oneof=benchmark criterion"`
	TargetID     uint64 `json:"target_id" validate:"required"`
	Comment      string `json:"comment"`
}

// ReviewService drives the manual-grading state machine: review creation
// bounded by the assignment's reviewer quota, criterion grading with score
// recomputation, and the readiness gate. Readiness compares the grade count
// of the review's own cloned tree against the criterion count of the live
// assignment template; the two sources deliberately stay distinct.
type ReviewService struct {
	store     *state.Store
	transport client.Client
	cache     *CacheService
	alerts    *alerts.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService constructs a ReviewService.
func NewReviewService(store *state.Store, transport client.Client, cache *CacheService, alertQueue *alerts.Queue, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		store:     store,
		transport: transport,
		cache:     cache,
		alerts:    alertQueue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateReview opens a review for the submission, seeded with an independent
// copy of the assignment's current benchmark template. Creation is refused
// when the reviewer quota is reached or the reviewer already has a review
// for this submission.
func (s *ReviewService) CreateReview(ctx context.Context, req CreateReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload")
	}

	sub, owner, assignment, err := s.lookup(req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if !assignment.IsManuallyGraded() {
		return nil, appErrors.ErrNotManuallyGraded
	}
	if len(sub.Reviews) >= assignment.Reviewers {
		return nil, appErrors.ErrReviewerQuota
	}
	for _, r := range sub.Reviews {
		if r.ReviewerID == req.ReviewerID {
			return nil, appErrors.ErrDuplicateReviewer
		}
	}

	review := &models.Review{
		SubmissionID:      req.SubmissionID,
		ReviewerID:        req.ReviewerID,
		GradingBenchmarks: assignment.CloneBenchmarks(),
		Edited:            s.now(),
	}

	created, err := s.transport.CreateReview(ctx, assignment.CourseID, review)
	if err != nil {
		s.alert(err)
		return nil, err
	}

	updated := sub.Clone()
	updated.Reviews = append(updated.Reviews, *created)
	s.store.Index.Update(owner, updated)
	if s.metrics != nil {
		s.metrics.RecordReviewCreated()
	}
	s.invalidateSnapshot(ctx, assignment.CourseID)
	return created, nil
}

// SetGrade grades one criterion in the review's own tree and recomputes the
// review score. Readiness is never changed here; it is a separate, explicit
// action.
func (s *ReviewService) SetGrade(ctx context.Context, req SetGradeRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload")
	}

	return s.mutateReview(ctx, req.SubmissionID, req.ReviewID, func(review *models.Review) error {
		criterion := review.FindCriterion(req.CriterionID)
		if criterion == nil {
			return appErrors.ErrNotFound
		}
		criterion.Grade = req.Grade
		review.Score = ComputeScore(review)
		return nil
	})
}

// SetReady toggles review readiness. Marking ready requires every criterion
// of the live template to be graded in the review's copy; reopening is
// always allowed.
func (s *ReviewService) SetReady(ctx context.Context, req SetReadyRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid ready payload")
	}

	if req.Ready {
		sub, _, assignment, err := s.lookup(req.SubmissionID)
		if err != nil {
			return nil, err
		}
		review := findReview(sub, req.ReviewID)
		if review == nil {
			return nil, appErrors.ErrNotFound
		}
		if review.GradedCount() < assignment.CriteriaCount() {
			return nil, appErrors.ErrCriteriaIncomplete
		}
	}

	return s.mutateReview(ctx, req.SubmissionID, req.ReviewID, func(review *models.Review) error {
		review.Ready = req.Ready
		return nil
	})
}

// UpdateFeedback replaces the review's feedback text.
func (s *ReviewService) UpdateFeedback(ctx context.Context, req UpdateFeedbackRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid feedback payload")
	}

	return s.mutateReview(ctx, req.SubmissionID, req.ReviewID, func(review *models.Review) error {
		review.Feedback = req.Feedback
		return nil
	})
}

// UpdateComment replaces a benchmark or criterion comment in the review's
// own tree and persists it through the comment endpoint.
func (s *ReviewService) UpdateComment(ctx context.Context, req UpdateCommentRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload")
	}

	sub, owner, assignment, err := s.lookup(req.SubmissionID)
	if err != nil {
		return nil, err
	}
	prevReview := findReview(sub, req.ReviewID)
	if prevReview == nil {
		return nil, appErrors.ErrNotFound
	}

	review := prevReview.Clone()
	switch req.Target {
	case CommentTargetBenchmark:
		bm := review.FindBenchmark(req.TargetID)
		if bm == nil {
			return nil, appErrors.ErrNotFound
		}
		bm.Comment = req.Comment
	case CommentTargetCriterion:
		criterion := review.FindCriterion(req.TargetID)
		if criterion == nil {
			return nil, appErrors.ErrNotFound
		}
		criterion.Comment = req.Comment
	}
	review.Edited = s.now()

	updated := replaceReview(sub, review)
	s.store.Index.Update(owner, updated)

	var remoteErr error
	if req.Target == CommentTargetBenchmark {
		remoteErr = s.transport.UpdateBenchmarkComment(ctx, req.TargetID, req.Comment)
	} else {
		remoteErr = s.transport.UpdateCriterionComment(ctx, req.TargetID, req.Comment)
	}
	if remoteErr != nil {
		s.rollback(owner, sub, remoteErr)
		return nil, remoteErr
	}
	s.invalidateSnapshot(ctx, assignment.CourseID)
	return review, nil
}

// ComputeScore computes a review's score over its benchmark tree. When any
// passed criterion carries points the score is their sum; otherwise each
// passed criterion earns uniform credit. Both branches are preserved from
// the legacy rubric templates.
func ComputeScore(review *models.Review) uint32 {
	var points uint32
	passed, total := 0, 0
	for _, bm := range review.GradingBenchmarks {
		for _, c := range bm.Criteria {
			total++
			if c.Grade == models.GradePassed {
				points += c.Points
				passed++
			}
		}
	}
	if points > 0 {
		return points
	}
	if total == 0 {
		return 0
	}
	return uint32(math.Round(100 * float64(passed) / float64(total)))
}

// mutateReview applies fn to a clone of the review, updates the index
// optimistically, persists through the transport and rolls back on failure.
func (s *ReviewService) mutateReview(ctx context.Context, submissionID, reviewID uint64, fn func(*models.Review) error) (*models.Review, error) {
	sub, owner, assignment, err := s.lookup(submissionID)
	if err != nil {
		return nil, err
	}
	prevReview := findReview(sub, reviewID)
	if prevReview == nil {
		return nil, appErrors.ErrNotFound
	}

	review := prevReview.Clone()
	if err := fn(review); err != nil {
		return nil, err
	}
	review.Edited = s.now()

	updated := replaceReview(sub, review)
	s.store.Index.Update(owner, updated)

	stored, err := s.transport.UpdateReview(ctx, assignment.CourseID, review)
	if err != nil {
		s.rollback(owner, sub, err)
		return nil, err
	}

	// The server may normalise fields (score, edited); reconcile its copy.
	final := replaceReview(updated, stored)
	s.store.Index.Update(owner, final)
	s.invalidateSnapshot(ctx, assignment.CourseID)
	return stored, nil
}

func (s *ReviewService) lookup(submissionID uint64) (*models.Submission, models.Owner, *models.Assignment, error) {
	sub, ok := s.store.Index.ByID(submissionID)
	if !ok {
		return nil, models.Owner{}, nil, appErrors.ErrNotFound
	}
	owner, ok := s.store.Index.OwnerByID(submissionID)
	if !ok {
		return nil, models.Owner{}, nil, appErrors.ErrNotFound
	}
	assignment, ok := s.store.AssignmentByID(sub.AssignmentID)
	if !ok {
		return nil, models.Owner{}, nil, appErrors.ErrNotFound
	}
	return sub, owner, assignment, nil
}

func (s *ReviewService) rollback(owner models.Owner, prev *models.Submission, cause error) {
	s.store.Index.Update(owner, prev)
	if s.metrics != nil {
		s.metrics.RecordRollback()
	}
	s.alert(cause)
	s.logger.Warn("review update rolled back",
		zap.Uint64("submission_id", prev.ID),
		zap.String("owner", owner.String()),
		zap.Error(cause),
	)
}

func (s *ReviewService) alert(err error) {
	if s.alerts != nil {
		s.alerts.Push(appErrors.FromError(err).Message, alerts.SeverityDanger)
		if s.metrics != nil {
			s.metrics.RecordAlert()
		}
	}
}

// invalidateSnapshot drops the cached course snapshot after a confirmed
// mutation so a later cache fallback cannot resurrect the pre-mutation copy.
func (s *ReviewService) invalidateSnapshot(ctx context.Context, courseID uint64) {
	if err := s.cache.InvalidateCourse(ctx, courseID); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.Uint64("course_id", courseID), zap.Error(err))
	}
}

func findReview(sub *models.Submission, reviewID uint64) *models.Review {
	for i := range sub.Reviews {
		if sub.Reviews[i].ID == reviewID {
			return &sub.Reviews[i]
		}
	}
	return nil
}

func replaceReview(sub *models.Submission, review *models.Review) *models.Submission {
	updated := sub.Clone()
	for i := range updated.Reviews {
		if updated.Reviews[i].ID == review.ID {
			updated.Reviews[i] = *review
			return updated
		}
	}
	return updated
}
