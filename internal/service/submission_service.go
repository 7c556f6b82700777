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

// FetchCourseRequest loads the per-owner submission snapshot of a course.
type FetchCourseRequest struct {
	CourseID      uint64                `json:"course_id" validate:"required"`
	Type          client.SubmissionType `json:"type" validate:"required,oneof=ALL INDIVIDUAL GROUP"`
	WithBuildInfo bool                  `json:"with_build_info"`
	SkipCacheWarm bool                  `json:"-"`
}

// RebuildRequest re-runs the tests for one submission.
type RebuildRequest struct {
	AssignmentID uint64 `json:"assignment_id" validate:"required"`
	SubmissionID uint64 `json:"submission_id" validate:"required"`
}

// ReleaseRequest toggles a submission's released flag.
type ReleaseRequest struct {
	SubmissionID uint64 `json:"submission_id" validate:"required"`
	Released     bool   `json:"released"`
}

// ReleaseAllRequest releases and/or approves all manual reviews for an
// assignment scoring at or above the minimum score.
type ReleaseAllRequest struct {
	CourseID     uint64 `json:"course_id" validate:"required"`
	AssignmentID uint64 `json:"assignment_id" validate:"required"`
	MinimumScore uint32 `json:"minimum_score" validate:"lte=100"`
	Release      bool   `json:"release"`
	Approve      bool   `json:"approve"`
}

// SubmissionService synchronises the submission index with the autograder
// backend: bulk snapshot loads with freshness reconciliation, rebuilds, and
// release gates. Responses for a context that is no longer active are
// discarded, never applied.
type SubmissionService struct {
	store     *state.Store
	transport client.Client
	cache     *CacheService
	alerts    *alerts.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(store *state.Store, transport client.Client, cache *CacheService, alertQueue *alerts.Queue, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		store:     store,
		transport: transport,
		cache:     cache,
		alerts:    alertQueue,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// FetchUserSubmissions returns one user's submissions in a course, with
// invalid entries (group submissions on non-group assignments) filtered out.
func (s *SubmissionService) FetchUserSubmissions(ctx context.Context, courseID, userID uint64) ([]*models.Submission, error) {
	subs, err := s.transport.GetSubmissions(ctx, courseID, userID)
	if err != nil {
		s.alert(err)
		return nil, err
	}

	out := make([]*models.Submission, 0, len(subs))
	for _, sub := range subs {
		if assignment, ok := s.store.AssignmentByID(sub.AssignmentID); ok && !sub.ValidForAssignment(assignment) {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

// FetchCourseSubmissions loads a course snapshot into the index. The
// snapshot is tagged with the index sequence at issue time so that
// single-item updates applied while the fetch was in flight win over the
// stale bulk copy. A completion whose course context was superseded is
// discarded.
func (s *SubmissionService) FetchCourseSubmissions(ctx context.Context, req FetchCourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fetch payload")
	}

	key := courseRequestKey(req.CourseID, req.Type)
	token := s.store.BeginRequest(key)
	issuedAt := s.store.Index.Snapshot()

	snapshot, err := s.transport.GetSubmissionsByCourse(ctx, req.CourseID, req.Type, req.WithBuildInfo)
	if err != nil {
		s.alert(err)
		if cached := s.cachedSnapshot(ctx, req); cached != nil {
			snapshot = cached
		} else {
			return err
		}
	}

	if !s.store.AcceptResponse(key, token) {
		if s.metrics != nil {
			s.metrics.RecordStaleCompletion()
		}
		s.logger.Debug("discarding stale course snapshot", zap.Uint64("course_id", req.CourseID))
		return appErrors.ErrStaleContext
	}

	discarded := 0
	if req.Type != client.SubmissionsGroup {
		discarded += s.store.Index.ApplySnapshot(state.TableUser, snapshot.ForUsers, issuedAt)
	}
	if req.Type != client.SubmissionsIndividual {
		discarded += s.store.Index.ApplySnapshot(state.TableGroup, snapshot.ForGroups, issuedAt)
	}
	if s.metrics != nil {
		s.metrics.RecordStaleSnapshotEntries(discarded)
	}

	if s.cache.Enabled() && err == nil {
		if cacheErr := s.cache.Set(ctx, snapshotCacheKey(req.CourseID, req.Type), snapshot); cacheErr != nil {
			s.logger.Warn("snapshot cache write failed", zap.Error(cacheErr))
		}
	}
	return nil
}

// InvalidateCourse drops in-flight fetches for the course so late
// completions cannot land in a newly selected context.
func (s *SubmissionService) InvalidateCourse(courseID uint64) {
	for _, t := range []client.SubmissionType{client.SubmissionsAll, client.SubmissionsIndividual, client.SubmissionsGroup} {
		s.store.InvalidateRequests(courseRequestKey(courseID, t))
	}
}

// Rebuild triggers a rebuild upstream and refreshes the index entry with the
// returned submission. The refresh goes through Update, so it never creates
// a new ownership relation.
func (s *SubmissionService) Rebuild(ctx context.Context, req RebuildRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rebuild payload")
	}

	refreshed, err := s.transport.RebuildSubmission(ctx, req.AssignmentID, req.SubmissionID)
	if err != nil {
		s.alert(err)
		return nil, err
	}

	if owner, ok := s.store.Index.OwnerByID(req.SubmissionID); ok {
		s.store.Index.Update(owner, refreshed)
	}
	if assignment, ok := s.store.AssignmentByID(refreshed.AssignmentID); ok {
		s.invalidateSnapshot(ctx, assignment.CourseID)
	}
	return refreshed, nil
}

// Release toggles the released flag. Releasing is meaningful once some
// review for the submission is ready, but only the acted-on review must be;
// the transition itself is optimistic with rollback.
func (s *SubmissionService) Release(ctx context.Context, req ReleaseRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid release payload")
	}

	prev, ok := s.store.Index.ByID(req.SubmissionID)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	owner, ok := s.store.Index.OwnerByID(req.SubmissionID)
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	assignment, ok := s.store.AssignmentByID(prev.AssignmentID)
	if !ok {
		return nil, appErrors.ErrNotFound
	}

	updated := prev.WithReleased(req.Released)
	s.store.Index.Update(owner, updated)

	if err := s.transport.Release(ctx, assignment.CourseID, updated, owner); err != nil {
		s.store.Index.Update(owner, prev)
		if s.metrics != nil {
			s.metrics.RecordRollback()
		}
		s.alert(err)
		return nil, err
	}
	s.invalidateSnapshot(ctx, assignment.CourseID)
	return updated, nil
}

// ReleaseAll bulk-releases and/or approves reviews above the minimum score
// and refreshes the course snapshot afterwards.
func (s *SubmissionService) ReleaseAll(ctx context.Context, req ReleaseAllRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "minimum score must be in range [0, 100]")
	}

	if err := s.transport.ReleaseAll(ctx, req.CourseID, req.AssignmentID, req.MinimumScore, req.Release, req.Approve); err != nil {
		s.alert(err)
		return err
	}

	// The bulk mutation made the cached snapshot stale; drop it so the
	// refetch cannot fall back to the pre-release copy.
	s.invalidateSnapshot(ctx, req.CourseID)
	return s.FetchCourseSubmissions(ctx, FetchCourseRequest{CourseID: req.CourseID, Type: client.SubmissionsAll})
}

func (s *SubmissionService) cachedSnapshot(ctx context.Context, req FetchCourseRequest) *client.CourseSubmissions {
	if !s.cache.Enabled() || req.SkipCacheWarm {
		return nil
	}
	snapshot := &client.CourseSubmissions{}
	hit, err := s.cache.Get(ctx, snapshotCacheKey(req.CourseID, req.Type), snapshot)
	if err != nil || !hit {
		return nil
	}
	s.logger.Info("serving course snapshot from cache", zap.Uint64("course_id", req.CourseID))
	return snapshot
}

// invalidateSnapshot drops the cached course snapshot after a confirmed
// mutation so a later cache fallback cannot resurrect the pre-mutation copy.
func (s *SubmissionService) invalidateSnapshot(ctx context.Context, courseID uint64) {
	if err := s.cache.InvalidateCourse(ctx, courseID); err != nil {
		s.logger.Warn("snapshot cache invalidation failed", zap.Uint64("course_id", courseID), zap.Error(err))
	}
}

func (s *SubmissionService) alert(err error) {
	if s.alerts != nil {
		s.alerts.Push(appErrors.FromError(err).Message, alerts.SeverityDanger)
		if s.metrics != nil {
			s.metrics.RecordAlert()
		}
	}
}

func courseRequestKey(courseID uint64, t client.SubmissionType) string {
	return fmt.Sprintf("course-submissions:%d:%s", courseID, t)
}

func snapshotCacheKey(courseID uint64, t client.SubmissionType) string {
	return fmt.Sprintf("snapshot:%d:%s", courseID, t)
}

func snapshotCachePattern(courseID uint64) string {
	return fmt.Sprintf("snapshot:%d:*", courseID)
}
