package service

import (
	"github.com/noah-isme/labreview-api/internal/models"
	"github.com/noah-isme/labreview-api/internal/state"
	appErrors "github.com/noah-isme/labreview-api/pkg/errors"
)

// OwnerService resolves submissions to their logical owner: an individual
// enrollment or a group.
type OwnerService struct {
	store *state.Store
}

// NewOwnerService constructs an OwnerService.
func NewOwnerService(store *state.Store) *OwnerService {
	return &OwnerService{store: store}
}

// Resolve decides whether a submission belongs to a group or an individual.
// A group owner is reported only when the assignment is a group lab and the
// submission carries a group ID; everything else resolves to the submitting
// user.
func (s *OwnerService) Resolve(submission *models.Submission, assignment *models.Assignment) models.Owner {
	if assignment.IsGroupLab && submission.GroupID > 0 {
		return models.GroupOwner(submission.GroupID)
	}
	return models.EnrollmentOwner(submission.UserID)
}

// OwnerByID finds the owner under which the submission with the given ID is
// stored in the index.
func (s *OwnerService) OwnerByID(submissionID uint64) (models.Owner, error) {
	owner, ok := s.store.Index.OwnerByID(submissionID)
	if !ok {
		return models.Owner{}, appErrors.ErrNotFound
	}
	return owner, nil
}

// ForAssignment returns the owner's submissions for the assignment,
// excluding any that violate the validity invariant. A group submission on a
// non-group assignment is filtered out, never crashed on.
func (s *OwnerService) ForAssignment(owner models.Owner, assignment *models.Assignment) []*models.Submission {
	stored := s.store.Index.ForOwner(owner)
	out := make([]*models.Submission, 0, len(stored))
	for _, sub := range stored {
		if sub.AssignmentID != assignment.ID {
			continue
		}
		if !sub.ValidForAssignment(assignment) {
			continue
		}
		out = append(out, sub)
	}
	return out
}
