package models

import "time"

// SubmissionStatus represents one member's approval status on a submission.
type SubmissionStatus string

const (
	// StatusNone means no decision has been made for the member.
	StatusNone SubmissionStatus = "NONE"
	// StatusApproved means the member's submission is approved.
	StatusApproved SubmissionStatus = "APPROVED"
	// StatusRejected means the member's submission is rejected.
	StatusRejected SubmissionStatus = "REJECTED"
	// StatusRevision means the member must revise and resubmit.
	StatusRevision SubmissionStatus = "REVISION"
)

// Grade is one member's approval status within a (possibly group) submission.
type Grade struct {
	UserID uint64           `json:"user_id"`
	Status SubmissionStatus `json:"status"`
}

// BuildInfo carries the test execution log for a submission.
type BuildInfo struct {
	ID        uint64    `json:"id"`
	BuildDate time.Time `json:"build_date"`
	BuildLog  string    `json:"build_log,omitempty"`
	ExecTime  int64     `json:"exec_time"`
}

// Score is a single test score entry produced by the test runner.
type Score struct {
	ID       uint64 `json:"id"`
	TestName string `json:"test_name"`
	Score    int32  `json:"score"`
	MaxScore int32  `json:"max_score"`
	Weight   int32  `json:"weight"`
}

// Submission is one graded attempt at an assignment by an owner. For a group
// submission Grades contains exactly one entry per current group member.
type Submission struct {
	ID           uint64     `json:"id"`
	AssignmentID uint64     `json:"assignment_id"`
	UserID       uint64     `json:"user_id"`
	GroupID      uint64     `json:"group_id"`
	Score        uint32     `json:"score"`
	Released     bool       `json:"released"`
	BuildInfo    *BuildInfo `json:"build_info,omitempty"`
	Scores       []Score    `json:"scores,omitempty"`
	Grades       []Grade    `json:"grades"`
	Reviews      []Review   `json:"reviews,omitempty"`
}

// IsGroupSubmission reports whether the submission was made by a group.
func (s *Submission) IsGroupSubmission() bool {
	return s.GroupID > 0
}

// ValidForAssignment reports whether the submission may appear under the
// assignment: a non-group assignment never carries a group submission.
func (s *Submission) ValidForAssignment(a *Assignment) bool {
	return a.IsGroupLab || s.GroupID == 0
}

// StatusByUser returns the status recorded for the given user, or StatusNone
// when no matching grade exists.
func (s *Submission) StatusByUser(userID uint64) SubmissionStatus {
	for _, g := range s.Grades {
		if g.UserID == userID {
			return g.Status
		}
	}
	return StatusNone
}

// UserHasStatus reports whether the given user's grade carries the status.
func (s *Submission) UserHasStatus(userID uint64, status SubmissionStatus) bool {
	for _, g := range s.Grades {
		if g.UserID == userID && g.Status == status {
			return true
		}
	}
	return false
}

// HasAllStatus reports whether every grade carries the status. It is
// vacuously true on an empty grade list.
func (s *Submission) HasAllStatus(status SubmissionStatus) bool {
	for _, g := range s.Grades {
		if g.Status != status {
			return false
		}
	}
	return true
}

// IsAllApproved reports whether every member's grade is approved.
func (s *Submission) IsAllApproved() bool { return s.HasAllStatus(StatusApproved) }

// IsAllRevision reports whether every member's grade asks for revision.
func (s *Submission) IsAllRevision() bool { return s.HasAllStatus(StatusRevision) }

// IsAllRejected reports whether every member's grade is rejected.
func (s *Submission) IsAllRejected() bool { return s.HasAllStatus(StatusRejected) }

// HasReviews reports whether any manual review exists for the submission.
func (s *Submission) HasReviews() bool { return len(s.Reviews) > 0 }

// Clone returns a structurally independent copy of the submission. Grades,
// scores and reviews are copied so prior references stay valid for compare
// and undo.
func (s *Submission) Clone() *Submission {
	clone := *s
	if s.BuildInfo != nil {
		info := *s.BuildInfo
		clone.BuildInfo = &info
	}
	if s.Scores != nil {
		clone.Scores = append([]Score(nil), s.Scores...)
	}
	if s.Grades != nil {
		clone.Grades = append([]Grade(nil), s.Grades...)
	}
	if s.Reviews != nil {
		clone.Reviews = make([]Review, len(s.Reviews))
		for i := range s.Reviews {
			clone.Reviews[i] = *s.Reviews[i].Clone()
		}
	}
	return &clone
}

// WithStatusByUser returns a new submission whose grade for the given user
// carries the status. All other grades and fields are preserved unchanged;
// no grade entry is ever dropped or duplicated.
func (s *Submission) WithStatusByUser(userID uint64, status SubmissionStatus) *Submission {
	clone := s.Clone()
	for i, g := range clone.Grades {
		if g.UserID == userID {
			clone.Grades[i].Status = status
		}
	}
	return clone
}

// WithStatusAll returns a new submission with every grade set to the status.
func (s *Submission) WithStatusAll(status SubmissionStatus) *Submission {
	clone := s.Clone()
	for i := range clone.Grades {
		clone.Grades[i].Status = status
	}
	return clone
}

// WithReleased returns a new submission with the released flag set.
func (s *Submission) WithReleased(released bool) *Submission {
	clone := s.Clone()
	clone.Released = released
	return clone
}

// TotalScore sums the scores of the given submissions.
func TotalScore(submissions []*Submission) uint32 {
	var total uint32
	for _, s := range submissions {
		total += s.Score
	}
	return total
}

// NumApproved counts the submissions approved for every member.
func NumApproved(submissions []*Submission) int {
	num := 0
	for _, s := range submissions {
		if s.IsAllApproved() {
			num++
		}
	}
	return num
}
