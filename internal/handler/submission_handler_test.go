package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/client"
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/service"
	"github.com/noah-isme/labreview-api/internal/state"
	"github.com/noah-isme/labreview-api/pkg/alerts"
)

// stubClient accepts every upstream call.
type stubClient struct {
	snapshot *client.CourseSubmissions
}

func (s *stubClient) GetSubmissions(ctx context.Context, courseID, userID uint64) ([]*models.Submission, error) {
	return nil, nil
}

func (s *stubClient) GetSubmissionsByCourse(ctx context.Context, courseID uint64, submissionType client.SubmissionType, withBuildInfo bool) (*client.CourseSubmissions, error) {
	if s.snapshot != nil {
		return s.snapshot, nil
	}
	return &client.CourseSubmissions{}, nil
}

func (s *stubClient) UpdateSubmission(ctx context.Context, courseID uint64, submission *models.Submission) error {
	return nil
}

func (s *stubClient) UpdateGrade(ctx context.Context, submissionID uint64, grade models.Grade) error {
	return nil
}

func (s *stubClient) RebuildSubmission(ctx context.Context, assignmentID, submissionID uint64) (*models.Submission, error) {
	return &models.Submission{ID: submissionID, AssignmentID: assignmentID}, nil
}

func (s *stubClient) CreateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	created := review.Clone()
	created.ID = 900
	return created, nil
}

func (s *stubClient) UpdateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	return review.Clone(), nil
}

func (s *stubClient) UpdateBenchmarkComment(ctx context.Context, benchmarkID uint64, comment string) error {
	return nil
}

func (s *stubClient) UpdateCriterionComment(ctx context.Context, criterionID uint64, comment string) error {
	return nil
}

func (s *stubClient) Release(ctx context.Context, courseID uint64, submission *models.Submission, owner models.Owner) error {
	return nil
}

func (s *stubClient) ReleaseAll(ctx context.Context, courseID, assignmentID uint64, minimumScore uint32, release, approve bool) error {
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *state.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := state.NewStore()
	store.SetAssignments(1, []*models.Assignment{
		{
			ID:        10,
			CourseID:  1,
			Name:      "lab1",
			Reviewers: 1,
			GradingBenchmarks: []models.GradingBenchmark{
				{ID: 1, AssignmentID: 10, Criteria: []models.GradingCriterion{{ID: 11, BenchmarkID: 1, Points: 10}}},
			},
		},
		{ID: 20, CourseID: 1, Name: "lab2", IsGroupLab: true},
	})
	store.Index.SetSubmissions(state.TableUser, map[uint64][]*models.Submission{
		1: {{ID: 100, AssignmentID: 10, UserID: 1, Score: 85, Grades: []models.Grade{{UserID: 1, Status: models.StatusNone}}}},
	})
	store.Index.SetSubmissions(state.TableGroup, map[uint64][]*models.Submission{
		5: {{ID: 200, AssignmentID: 20, GroupID: 5, Grades: []models.Grade{
			{UserID: 1, Status: models.StatusNone},
			{UserID: 2, Status: models.StatusNone},
		}}},
	})

	transport := &stubClient{}
	queue := alerts.NewQueue(10)
	validate := validator.New()
	logr := zap.NewNop()

	cacheSvc := service.NewCacheService(nil, nil, 0, logr, false)
	owners := service.NewOwnerService(store)
	grades := service.NewGradeService(store, transport, cacheSvc, queue, nil, validate, logr)
	reviews := service.NewReviewService(store, transport, cacheSvc, queue, nil, validate, logr)
	submissions := service.NewSubmissionService(store, transport, cacheSvc, queue, nil, validate, logr)

	submissionHandler := NewSubmissionHandler(submissions, owners, grades, store)
	reviewHandler := NewReviewHandler(reviews)
	alertHandler := NewAlertHandler(queue)

	r := gin.New()
	r.GET("/submissions/:id", submissionHandler.GetByID)
	r.GET("/submissions/:id/owner", submissionHandler.OwnerByID)
	r.POST("/submissions/:id/status", submissionHandler.SetStatusAll)
	r.POST("/submissions/:id/grades/:userID/status", submissionHandler.SetMemberStatus)
	r.POST("/submissions/:id/reviews", reviewHandler.Create)
	r.GET("/alerts", alertHandler.List)
	r.POST("/courses/:courseID/invalidate", submissionHandler.InvalidateCourse)
	r.POST("/session/reset", submissionHandler.ResetSession)
	return r, store
}

func performJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetSubmissionByID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performJSON(t, r, http.MethodGet, "/submissions/100", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Submission `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(100), envelope.Data.ID)
	assert.Equal(t, uint32(85), envelope.Data.Score)
}

func TestGetSubmissionNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	w := performJSON(t, r, http.MethodGet, "/submissions/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSubmissionInvalidID(t *testing.T) {
	r, _ := newTestRouter(t)
	w := performJSON(t, r, http.MethodGet, "/submissions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOwnerEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performJSON(t, r, http.MethodGet, "/submissions/200/owner", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Owner `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.GroupOwner(5), envelope.Data)
}

func TestSetStatusAllEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	w := performJSON(t, r, http.MethodPost, "/submissions/200/status", gin.H{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code)

	stored, ok := store.Index.ByID(200)
	require.True(t, ok)
	assert.True(t, stored.IsAllApproved())
}

func TestSetMemberStatusEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	w := performJSON(t, r, http.MethodPost, "/submissions/200/grades/1/status", gin.H{"status": "REVISION"})
	require.Equal(t, http.StatusOK, w.Code)

	stored, ok := store.Index.ByID(200)
	require.True(t, ok)
	assert.Equal(t, models.StatusRevision, stored.StatusByUser(1))
	assert.Equal(t, models.StatusNone, stored.StatusByUser(2))
}

func TestSetStatusRejectsUnknownValue(t *testing.T) {
	r, _ := newTestRouter(t)
	w := performJSON(t, r, http.MethodPost, "/submissions/200/status", gin.H{"status": "MAYBE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateReviewEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	w := performJSON(t, r, http.MethodPost, "/submissions/100/reviews", gin.H{"reviewer_id": 3})
	require.Equal(t, http.StatusCreated, w.Code)

	stored, ok := store.Index.ByID(100)
	require.True(t, ok)
	require.Len(t, stored.Reviews, 1)
	assert.Equal(t, uint64(3), stored.Reviews[0].ReviewerID)

	// quota of one reviewer
	w = performJSON(t, r, http.MethodPost, "/submissions/100/reviews", gin.H{"reviewer_id": 4})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionResetEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	w := performJSON(t, r, http.MethodPost, "/session/reset", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	_, ok := store.Index.ByID(100)
	assert.False(t, ok)
	assert.Empty(t, store.Assignments(1))
}

func TestInvalidateCourseEndpoint(t *testing.T) {
	r, store := newTestRouter(t)

	token := store.BeginRequest("course-submissions:1:ALL")

	w := performJSON(t, r, http.MethodPost, "/courses/1/invalidate", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// a response for the dropped fetch must not be accepted
	assert.False(t, store.AcceptResponse("course-submissions:1:ALL", token))
}

func TestAlertsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := performJSON(t, r, http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []alerts.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data)
}
