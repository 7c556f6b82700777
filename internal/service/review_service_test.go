package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/pkg/alerts"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

func newReviewService(transport *mockClient) (*ReviewService, *alerts.Queue) {
	store := newTestStore()
	queue := alerts.NewQueue(10)
	svc := NewReviewService(store, transport, nil, queue, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc, queue
}

func TestCreateReviewSeedsTemplateCopy(t *testing.T) {
	transport := &mockClient{}
	svc, _ := newReviewService(transport)

	review, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)
	assert.NotZero(t, review.ID)
	assert.Equal(t, uint64(3), review.ReviewerID)

	require.Len(t, review.GradingBenchmarks, 1)
	for _, c := range review.GradingBenchmarks[0].Criteria {
		assert.Equal(t, models.GradeNone, c.Grade)
	}

	stored, ok := svc.store.Index.ByID(100)
	require.True(t, ok)
	require.Len(t, stored.Reviews, 1)
	assert.Equal(t, review.ID, stored.Reviews[0].ID)
}

func TestCreateReviewGradingNeverMutatesTemplate(t *testing.T) {
	transport := &mockClient{}
	svc, _ := newReviewService(transport)

	review, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	_, err = svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100,
		ReviewID:     review.ID,
		CriterionID:  11,
		Grade:        models.GradePassed,
	})
	require.NoError(t, err)

	template, ok := svc.store.AssignmentByID(10)
	require.True(t, ok)
	assert.Equal(t, models.GradeNone, template.GradingBenchmarks[0].Criteria[0].Grade)
}

func TestCreateReviewQuota(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})

	_, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)
	_, err = svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 4})
	require.NoError(t, err)

	_, err = svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 5})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrReviewerQuota))
}

func TestCreateReviewDuplicateReviewer(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})

	_, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	_, err = svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateReviewer))
}

func TestCreateReviewNotManuallyGraded(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	svc.store.SetAssignments(1, []*models.Assignment{
		{ID: 10, CourseID: 1, Reviewers: 0},
		groupAssignment(),
	})

	_, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotManuallyGraded))
}

func TestCreateReviewRemoteFailureLeavesIndexUntouched(t *testing.T) {
	transport := &mockClient{createErr: appErrors.Remote(13, "review rejected")}
	svc, queue := newReviewService(transport)

	_, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.Error(t, err)

	stored, ok := svc.store.Index.ByID(100)
	require.True(t, ok)
	assert.Empty(t, stored.Reviews)
	assert.Equal(t, 1, queue.Len())
}

func TestComputeScoreWeighted(t *testing.T) {
	review := &models.Review{GradingBenchmarks: []models.GradingBenchmark{
		{Criteria: []models.GradingCriterion{
			{ID: 1, Points: 10, Grade: models.GradePassed},
			{ID: 2, Points: 5, Grade: models.GradeFailed},
			{ID: 3, Points: 5, Grade: models.GradePassed},
		}},
	}}
	assert.Equal(t, uint32(15), ComputeScore(review))
}

func TestComputeScoreUniform(t *testing.T) {
	review := &models.Review{GradingBenchmarks: []models.GradingBenchmark{
		{Criteria: []models.GradingCriterion{
			{ID: 1, Grade: models.GradePassed},
			{ID: 2, Grade: models.GradeFailed},
		}},
		{Criteria: []models.GradingCriterion{
			{ID: 3, Grade: models.GradePassed},
		}},
	}}
	assert.Equal(t, uint32(67), ComputeScore(review))
}

func TestComputeScoreEmpty(t *testing.T) {
	assert.Equal(t, uint32(0), ComputeScore(&models.Review{}))
}

func TestSetGradeRecomputesScoreAndKeepsReady(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	updated, err := svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100,
		ReviewID:     created.ID,
		CriterionID:  11,
		Grade:        models.GradePassed,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(10), updated.Score)
	assert.False(t, updated.Ready, "grading never flips readiness")
}

func TestSetGradeUnknownCriterion(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	_, err = svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100,
		ReviewID:     created.ID,
		CriterionID:  999,
		Grade:        models.GradePassed,
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestSetReadyRequiresAllCriteriaGraded(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	_, err = svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100, ReviewID: created.ID, CriterionID: 11, Grade: models.GradePassed,
	})
	require.NoError(t, err)

	_, err = svc.SetReady(context.Background(), SetReadyRequest{SubmissionID: 100, ReviewID: created.ID, Ready: true})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCriteriaIncomplete))

	// failing a criterion still counts as graded
	_, err = svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100, ReviewID: created.ID, CriterionID: 12, Grade: models.GradeFailed,
	})
	require.NoError(t, err)

	review, err := svc.SetReady(context.Background(), SetReadyRequest{SubmissionID: 100, ReviewID: created.ID, Ready: true})
	require.NoError(t, err)
	assert.True(t, review.Ready)
}

func TestSetReadyFalseAlwaysAllowed(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	review, err := svc.SetReady(context.Background(), SetReadyRequest{SubmissionID: 100, ReviewID: created.ID, Ready: false})
	require.NoError(t, err)
	assert.False(t, review.Ready)
}

func TestSetReadyJudgedAgainstLiveTemplate(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	for _, criterionID := range []uint64{11, 12} {
		_, err = svc.SetGrade(context.Background(), SetGradeRequest{
			SubmissionID: 100, ReviewID: created.ID, CriterionID: criterionID, Grade: models.GradePassed,
		})
		require.NoError(t, err)
	}

	// the template grows a criterion after the review was cloned
	grown := soloAssignment()
	grown.GradingBenchmarks[0].Criteria = append(grown.GradingBenchmarks[0].Criteria,
		models.GradingCriterion{ID: 13, BenchmarkID: 1, Points: 5})
	svc.store.SetAssignments(1, []*models.Assignment{grown, groupAssignment()})

	_, err = svc.SetReady(context.Background(), SetReadyRequest{SubmissionID: 100, ReviewID: created.ID, Ready: true})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrCriteriaIncomplete))
}

func TestUpdateFeedback(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	review, err := svc.UpdateFeedback(context.Background(), UpdateFeedbackRequest{
		SubmissionID: 100, ReviewID: created.ID, Feedback: "solid work",
	})
	require.NoError(t, err)
	assert.Equal(t, "solid work", review.Feedback)
}

func TestUpdateCommentCriterion(t *testing.T) {
	transport := &mockClient{}
	svc, _ := newReviewService(transport)
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	review, err := svc.UpdateComment(context.Background(), UpdateCommentRequest{
		SubmissionID: 100,
		ReviewID:     created.ID,
		Target:       CommentTargetCriterion,
		TargetID:     11,
		Comment:      "missing edge case",
	})
	require.NoError(t, err)
	assert.Equal(t, "missing edge case", review.FindCriterion(11).Comment)
	assert.Equal(t, "missing edge case", transport.critComments[11])
}

func TestUpdateCommentBenchmarkRollback(t *testing.T) {
	transport := &mockClient{}
	svc, queue := newReviewService(transport)
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	transport.commentErr = appErrors.Remote(13, "comment rejected")
	_, err = svc.UpdateComment(context.Background(), UpdateCommentRequest{
		SubmissionID: 100,
		ReviewID:     created.ID,
		Target:       CommentTargetBenchmark,
		TargetID:     1,
		Comment:      "nope",
	})
	require.Error(t, err)

	stored, ok := svc.store.Index.ByID(100)
	require.True(t, ok)
	assert.Empty(t, stored.Reviews[0].FindBenchmark(1).Comment)
	assert.Equal(t, 1, queue.Len())
}

func TestMutateReviewRollsBackOnRemoteFailure(t *testing.T) {
	transport := &mockClient{}
	svc, queue := newReviewService(transport)
	created, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 100, ReviewerID: 3})
	require.NoError(t, err)

	transport.reviewErr = appErrors.Remote(13, "update rejected")
	_, err = svc.SetGrade(context.Background(), SetGradeRequest{
		SubmissionID: 100, ReviewID: created.ID, CriterionID: 11, Grade: models.GradePassed,
	})
	require.Error(t, err)

	stored, ok := svc.store.Index.ByID(100)
	require.True(t, ok)
	assert.Equal(t, models.GradeNone, stored.Reviews[0].FindCriterion(11).Grade)
	assert.Equal(t, uint32(0), stored.Reviews[0].Score)
	assert.Equal(t, 1, queue.Len())
}

func TestReviewsOnGroupSubmissions(t *testing.T) {
	svc, _ := newReviewService(&mockClient{})
	grown := groupAssignment()
	grown.GradingBenchmarks = []models.GradingBenchmark{
		{ID: 5, AssignmentID: 20, Criteria: []models.GradingCriterion{{ID: 51, BenchmarkID: 5}}},
	}
	svc.store.SetAssignments(1, []*models.Assignment{soloAssignment(), grown})

	review, err := svc.CreateReview(context.Background(), CreateReviewRequest{SubmissionID: 200, ReviewerID: 3})
	require.NoError(t, err)

	owner, ok := svc.store.Index.OwnerByID(200)
	require.True(t, ok)
	assert.Equal(t, models.GroupOwner(5), owner)

	stored, found := svc.store.Index.ByID(200)
	require.True(t, found)
	require.Len(t, stored.Reviews, 1)
	assert.Equal(t, review.ID, stored.Reviews[0].ID)
}
