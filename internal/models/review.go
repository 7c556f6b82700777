package models

import "time"

// Review is one reviewer's manual-grading pass over a submission. Its
// benchmark tree is an independent deep copy of the assignment template taken
// at creation time; a review created before a template edit may therefore
// disagree with the live template in criterion count.
type Review struct {
	ID                uint64             `json:"id"`
	SubmissionID      uint64             `json:"submission_id"`
	ReviewerID        uint64             `json:"reviewer_id"`
	GradingBenchmarks []GradingBenchmark `json:"grading_benchmarks"`
	Score             uint32             `json:"score"`
	Ready             bool               `json:"ready"`
	Feedback          string             `json:"feedback,omitempty"`
	Edited            time.Time          `json:"edited"`
}

// GradedCount counts the criteria in the review's own cloned tree that carry
// a grade other than NONE.
func (r *Review) GradedCount() int {
	total := 0
	for _, bm := range r.GradingBenchmarks {
		for _, c := range bm.Criteria {
			if c.Grade != GradeNone {
				total++
			}
		}
	}
	return total
}

// Clone returns a structurally independent copy of the review including its
// benchmark tree.
func (r *Review) Clone() *Review {
	clone := *r
	if r.GradingBenchmarks != nil {
		clone.GradingBenchmarks = make([]GradingBenchmark, len(r.GradingBenchmarks))
		for i, bm := range r.GradingBenchmarks {
			copied := bm
			copied.Criteria = append([]GradingCriterion(nil), bm.Criteria...)
			clone.GradingBenchmarks[i] = copied
		}
	}
	return &clone
}

// FindCriterion returns a pointer into the review's own tree for the
// criterion with the given ID, or nil when absent.
func (r *Review) FindCriterion(criterionID uint64) *GradingCriterion {
	for i := range r.GradingBenchmarks {
		for j := range r.GradingBenchmarks[i].Criteria {
			if r.GradingBenchmarks[i].Criteria[j].ID == criterionID {
				return &r.GradingBenchmarks[i].Criteria[j]
			}
		}
	}
	return nil
}

// FindBenchmark returns a pointer into the review's own tree for the
// benchmark with the given ID, or nil when absent.
func (r *Review) FindBenchmark(benchmarkID uint64) *GradingBenchmark {
	for i := range r.GradingBenchmarks {
		if r.GradingBenchmarks[i].ID == benchmarkID {
			return &r.GradingBenchmarks[i]
		}
	}
	return nil
}
