package models

// CriterionGrade represents the manual grading outcome for a single criterion.
type CriterionGrade string

const (
	// GradeNone means the criterion has not been graded yet.
	GradeNone CriterionGrade = "NONE"
	// GradePassed means the reviewer approved the criterion.
	GradePassed CriterionGrade = "PASSED"
	// GradeFailed means the reviewer failed the criterion.
	GradeFailed CriterionGrade = "FAILED"
)

// GradingCriterion is a single gradable item within a benchmark.
type GradingCriterion struct {
	ID          uint64         `json:"id"`
	BenchmarkID uint64         `json:"benchmark_id"`
	Description string         `json:"description"`
	Points      uint32         `json:"points"`
	Grade       CriterionGrade `json:"grade"`
	Comment     string         `json:"comment,omitempty"`
}

// GradingBenchmark groups related criteria under a heading.
type GradingBenchmark struct {
	ID           uint64             `json:"id"`
	AssignmentID uint64             `json:"assignment_id"`
	Heading      string             `json:"heading"`
	Comment      string             `json:"comment,omitempty"`
	Criteria     []GradingCriterion `json:"criteria"`
}

// Assignment describes a lab assignment within a course. Reviewers is the
// number of manual reviews the assignment expects; zero means the assignment
// is auto-graded only.
type Assignment struct {
	ID                uint64             `json:"id"`
	CourseID          uint64             `json:"course_id"`
	Name              string             `json:"name"`
	IsGroupLab        bool               `json:"is_group_lab"`
	Reviewers         int                `json:"reviewers"`
	ScoreLimit        uint32             `json:"score_limit"`
	AutoApprove       bool               `json:"auto_approve"`
	GradingBenchmarks []GradingBenchmark `json:"grading_benchmarks,omitempty"`
}

// IsManuallyGraded reports whether the assignment expects manual reviews.
func (a *Assignment) IsManuallyGraded() bool {
	return a.Reviewers > 0
}

// CriteriaCount counts the criteria reachable from the live benchmark
// template. Readiness of a review is judged against this count, not against
// the review's own cloned tree.
func (a *Assignment) CriteriaCount() int {
	total := 0
	for _, bm := range a.GradingBenchmarks {
		total += len(bm.Criteria)
	}
	return total
}

// NormalizeGrades maps unset criterion grades to NONE. Decoded template
// payloads may omit the grade field entirely, which leaves the zero value
// instead of a member of the grade domain.
func (a *Assignment) NormalizeGrades() {
	for i := range a.GradingBenchmarks {
		for j := range a.GradingBenchmarks[i].Criteria {
			if a.GradingBenchmarks[i].Criteria[j].Grade == "" {
				a.GradingBenchmarks[i].Criteria[j].Grade = GradeNone
			}
		}
	}
}

// CloneBenchmarks returns an independent deep copy of the assignment's
// benchmark tree with every criterion grade reset to NONE. Mutating the copy
// never affects the template or any other copy.
func (a *Assignment) CloneBenchmarks() []GradingBenchmark {
	if len(a.GradingBenchmarks) == 0 {
		return nil
	}
	clone := make([]GradingBenchmark, len(a.GradingBenchmarks))
	for i, bm := range a.GradingBenchmarks {
		copied := bm
		copied.Criteria = make([]GradingCriterion, len(bm.Criteria))
		for j, c := range bm.Criteria {
			c.Grade = GradeNone
			copied.Criteria[j] = c
		}
		clone[i] = copied
	}
	return clone
}
