// Package client talks to the autograder backend. Every call carries the
// upstream status convention: code 0 means success, any other code carries a
// human-readable error string that is surfaced to the user verbatim.
package client

import (
	"context"

	"github.com/noah-isme/labreview-api/internal/models"
)

// SubmissionType selects which ownership tables a course-wide fetch returns.
type SubmissionType string

const (
	SubmissionsAll        SubmissionType = "ALL"
	SubmissionsIndividual SubmissionType = "INDIVIDUAL"
	SubmissionsGroup      SubmissionType = "GROUP"
)

// CourseSubmissions is the per-owner snapshot returned by a course-wide
// fetch: submissions keyed by user ID and by group ID.
type CourseSubmissions struct {
	ForUsers  map[uint64][]*models.Submission `json:"for_users,omitempty"`
	ForGroups map[uint64][]*models.Submission `json:"for_groups,omitempty"`
}

// Client is the transport collaborator the engine synchronises through.
type Client interface {
	// GetSubmissions fetches one user's submissions in a course.
	GetSubmissions(ctx context.Context, courseID, userID uint64) ([]*models.Submission, error)
	// GetSubmissionsByCourse fetches per-owner submission snapshots.
	GetSubmissionsByCourse(ctx context.Context, courseID uint64, submissionType SubmissionType, withBuildInfo bool) (*CourseSubmissions, error)
	// UpdateSubmission persists a submission's status and released flag.
	UpdateSubmission(ctx context.Context, courseID uint64, submission *models.Submission) error
	// UpdateGrade persists one member's status on a group submission.
	UpdateGrade(ctx context.Context, submissionID uint64, grade models.Grade) error
	// RebuildSubmission triggers a rebuild and returns the refreshed submission.
	RebuildSubmission(ctx context.Context, assignmentID, submissionID uint64) (*models.Submission, error)
	// CreateReview persists a new review; the server assigns its ID and
	// benchmark copy.
	CreateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error)
	// UpdateReview persists review mutations and returns the stored review.
	UpdateReview(ctx context.Context, courseID uint64, review *models.Review) (*models.Review, error)
	// UpdateBenchmarkComment persists a benchmark comment.
	UpdateBenchmarkComment(ctx context.Context, benchmarkID uint64, comment string) error
	// UpdateCriterionComment persists a criterion comment.
	UpdateCriterionComment(ctx context.Context, criterionID uint64, comment string) error
	// Release persists the released flag for a submission.
	Release(ctx context.Context, courseID uint64, submission *models.Submission, owner models.Owner) error
	// ReleaseAll releases and/or approves all manual reviews for an
	// assignment scoring at or above the minimum score.
	ReleaseAll(ctx context.Context, courseID, assignmentID uint64, minimumScore uint32, release, approve bool) error
}
