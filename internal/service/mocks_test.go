package service

import (
	"context"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/state"
)

// mockClient records upstream calls and fails on demand.
type mockClient struct {
	gradeErr      error
	submissionErr error
	releaseErr    error
	reviewErr     error
	createErr     error
	commentErr    error
	snapshotErr   error
	releaseAllErr error

	snapshot *client.CourseSubmissions
	userSubs []*models.Submission
	rebuilt  *models.Submission

	// onFetch runs while the course fetch is in flight, before the
	// response is delivered.
	onFetch func()

	updatedGrades   []models.Grade
	updatedSubs     []*models.Submission
	releasedSubs    []*models.Submission
	createdReviews  []*models.Review
	updatedReviews  []*models.Review
	benchComments   map[uint64]string
	critComments    map[uint64]string
	releaseAllCalls int
	fetchCalls      int
	nextReviewID    uint64
}

func (m *mockClient) GetSubmissions(ctx context.Context, courseID, userID uint64) ([]*models.Submission, error) {
	return m.userSubs, nil
}

func (m *mockClient) GetSubmissionsByCourse(ctx context.Context, courseID uint64, submissionType client.SubmissionType, withBuildInfo bool) (*client.CourseSubmissions, error) {
	m.fetchCalls++
	if m.onFetch != nil {
		m.onFetch()
	}
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	return &client.CourseSubmissions{}, nil
}

func (m *mockClient) UpdateSubmission(ctx context.Context, courseID uint64, submission *models.Submission) error {
	if m.submissionErr != nil {
		return m.submissionErr
	}
	m.updatedSubs = append(m.updatedSubs, submission)
	return nil
}

func (m *mockClient) UpdateGrade(ctx context.Context, submissionID uint64, grade models.Grade) error {
	if m.gradeErr != nil {
		return m.gradeErr
	}
	m.updatedGrades = append(m.updatedGrades, grade)
	return nil
}

func (m *mockClient) RebuildSubmission(ctx context.Context, assignmentID, submissionID uint64) (*models.Submission, error) {
	return m.rebuilt, nil
}

func (m *mockClient) CreateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	created := review.Clone()
	if m.nextReviewID == 0 {
		m.nextReviewID = 900
	}
	created.ID = m.nextReviewID
	m.nextReviewID++
	m.createdReviews = append(m.createdReviews, created)
	return created, nil
}

func (m *mockClient) UpdateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	stored := review.Clone()
	m.updatedReviews = append(m.updatedReviews, stored)
	return stored, nil
}

func (m *mockClient) UpdateBenchmarkComment(ctx context.Context, benchmarkID uint64, comment string) error {
	if m.commentErr != nil {
		return m.commentErr
	}
	if m.benchComments == nil {
		m.benchComments = make(map[uint64]string)
	}
	m.benchComments[benchmarkID] = comment
	return nil
}

func (m *mockClient) UpdateCriterionComment(ctx context.Context, criterionID uint64, comment string) error {
	if m.commentErr != nil {
		return m.commentErr
	}
	if m.critComments == nil {
		m.critComments = make(map[uint64]string)
	}
	m.critComments[criterionID] = comment
	return nil
}

func (m *mockClient) Release(ctx context.Context, courseID uint64, submission *models.Submission, owner models.Owner) error {
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.releasedSubs = append(m.releasedSubs, submission)
	return nil
}

func (m *mockClient) ReleaseAll(ctx context.Context, courseID, assignmentID uint64, minimumScore uint32, release, approve bool) error {
	m.releaseAllCalls++
	return m.releaseAllErr
}

func soloAssignment() *models.Assignment {
	return &models.Assignment{
		ID:         10,
		CourseID:   1,
		Name:       "lab1",
		Reviewers:  2,
		ScoreLimit: 80,
		GradingBenchmarks: []models.GradingBenchmark{
			{
				ID:           1,
				AssignmentID: 10,
				Heading:      "Style",
				Criteria: []models.GradingCriterion{
					{ID: 11, BenchmarkID: 1, Points: 10},
					{ID: 12, BenchmarkID: 1, Points: 5},
				},
			},
		},
	}
}

func groupAssignment() *models.Assignment {
	return &models.Assignment{
		ID:         20,
		CourseID:   1,
		Name:       "lab2",
		IsGroupLab: true,
		Reviewers:  1,
	}
}

func userSubmission() *models.Submission {
	return &models.Submission{
		ID:           100,
		AssignmentID: 10,
		UserID:       1,
		Score:        85,
		Grades:       []models.Grade{{UserID: 1, Status: models.StatusNone}},
	}
}

func groupSubmission() *models.Submission {
	return &models.Submission{
		ID:           200,
		AssignmentID: 20,
		GroupID:      5,
		Score:        70,
		Grades: []models.Grade{
			{UserID: 1, Status: models.StatusNone},
			{UserID: 2, Status: models.StatusNone},
		},
	}
}

func newTestStore() *state.Store {
	store := state.NewStore()
	store.SetAssignments(1, []*models.Assignment{soloAssignment(), groupAssignment()})
	store.Index.SetSubmissions(state.TableUser, map[uint64][]*models.Submission{
		1: {userSubmission()},
	})
	store.Index.SetSubmissions(state.TableGroup, map[uint64][]*models.Submission{
		5: {groupSubmission()},
	})
	return store
}
