package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/pkg/config"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

// HTTPClient implements Client against the autograder backend's JSON API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs an HTTP transport client.
func NewHTTPClient(cfg config.UpstreamConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type remoteStatus struct {
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
}

type remoteEnvelope struct {
	Status remoteStatus    `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// GetSubmissions fetches one user's submissions in a course.
func (c *HTTPClient) GetSubmissions(ctx context.Context, courseID, userID uint64) ([]*models.Submission, error) {
	var out []*models.Submission
	path := fmt.Sprintf("/courses/%d/users/%d/submissions", courseID, userID)
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSubmissionsByCourse fetches per-owner submission snapshots.
func (c *HTTPClient) GetSubmissionsByCourse(ctx context.Context, courseID uint64, submissionType SubmissionType, withBuildInfo bool) (*CourseSubmissions, error) {
	out := &CourseSubmissions{}
	query := url.Values{}
	query.Set("type", string(submissionType))
	if withBuildInfo {
		query.Set("withBuildInfo", "true")
	}
	path := fmt.Sprintf("/courses/%d/submissions", courseID)
	if err := c.call(ctx, http.MethodGet, path, query, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSubmission persists a submission's status and released flag.
func (c *HTTPClient) UpdateSubmission(ctx context.Context, courseID uint64, submission *models.Submission) error {
	path := fmt.Sprintf("/courses/%d/submissions/%d", courseID, submission.ID)
	return c.call(ctx, http.MethodPost, path, nil, submission, nil)
}

// UpdateGrade persists one member's status on a group submission.
func (c *HTTPClient) UpdateGrade(ctx context.Context, submissionID uint64, grade models.Grade) error {
	path := fmt.Sprintf("/submissions/%d/grades", submissionID)
	return c.call(ctx, http.MethodPost, path, nil, grade, nil)
}

// RebuildSubmission triggers a rebuild and returns the refreshed submission.
func (c *HTTPClient) RebuildSubmission(ctx context.Context, assignmentID, submissionID uint64) (*models.Submission, error) {
	out := &models.Submission{}
	path := fmt.Sprintf("/assignments/%d/submissions/%d/rebuild", assignmentID, submissionID)
	if err := c.call(ctx, http.MethodPost, path, nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateReview persists a new review.
func (c *HTTPClient) CreateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	out := &models.Review{}
	path := fmt.Sprintf("/courses/%d/reviews", courseID)
	if err := c.call(ctx, http.MethodPost, path, nil, review, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateReview persists review mutations and returns the stored review.
func (c *HTTPClient) UpdateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error) {
	out := &models.Review{}
	path := fmt.Sprintf("/courses/%d/reviews/%d", courseID, review.ID)
	if err := c.call(ctx, http.MethodPost, path, nil, review, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateBenchmarkComment persists a benchmark comment.
func (c *HTTPClient) UpdateBenchmarkComment(ctx context.Context, benchmarkID uint64, comment string) error {
	path := fmt.Sprintf("/benchmarks/%d/comment", benchmarkID)
	return c.call(ctx, http.MethodPost, path, nil, map[string]string{"comment": comment}, nil)
}

// UpdateCriterionComment persists a criterion comment.
func (c *HTTPClient) UpdateCriterionComment(ctx context.Context, criterionID uint64, comment string) error {
	path := fmt.Sprintf("/criteria/%d/comment", criterionID)
	return c.call(ctx, http.MethodPost, path, nil, map[string]string{"comment": comment}, nil)
}

// Release persists the released flag for a submission.
func (c *HTTPClient) Release(ctx context.Context, courseID uint64, submission *models.Submission, owner models.Owner) error {
	path := fmt.Sprintf("/courses/%d/submissions/%d/release", courseID, submission.ID)
	payload := struct {
		Owner      models.Owner `json:"owner"`
		Released   bool         `json:"released"`
		Submission uint64       `json:"submission_id"`
	}{Owner: owner, Released: submission.Released, Submission: submission.ID}
	return c.call(ctx, http.MethodPost, path, nil, payload, nil)
}

// ReleaseAll releases and/or approves all manual reviews for an assignment
// scoring at or above the minimum score.
func (c *HTTPClient) ReleaseAll(ctx context.Context, courseID, assignmentID uint64, minimumScore uint32, release, approve bool) error {
	path := fmt.Sprintf("/courses/%d/assignments/%d/submissions", courseID, assignmentID)
	payload := struct {
		MinimumScore uint32 `json:"minimum_score"`
		Release      bool   `json:"release"`
		Approve      bool   `json:"approve"`
	}{MinimumScore: minimumScore, Release: release, Approve: approve}
	return c.call(ctx, http.MethodPost, path, nil, payload, nil)
}

func (c *HTTPClient) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "marshal upstream payload")
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build upstream request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "upstream request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	envelope := remoteEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "decode upstream response")
	}

	if envelope.Status.Code != 0 {
		c.logger.Warn("upstream error",
			zap.String("path", path),
			zap.Int("code", envelope.Status.Code),
			zap.String("error", envelope.Status.Error),
		)
		return appErrors.Remote(envelope.Status.Code, envelope.Status.Error)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "decode upstream data")
		}
	}
	return nil
}
