// Package state holds the engine's session state: the submission index, the
// assignment templates and the in-flight request registry. The store is an
// explicit object passed into the services; it is constructed at session
// start and reset on logout, with no other lifecycle.
package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/labreview-api/internal/models"
)

// Store is the session state shared by the engine services.
type Store struct {
	Index *SubmissionIndex

	mu          sync.RWMutex
	assignments map[uint64][]*models.Assignment
	byID        map[uint64]*models.Assignment
	inflight    map[string]string
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{
		Index:       NewSubmissionIndex(),
		assignments: make(map[uint64][]*models.Assignment),
		byID:        make(map[uint64]*models.Assignment),
		inflight:    make(map[string]string),
	}
}

// SetAssignments records the live assignment templates for a course.
func (s *Store) SetAssignments(courseID uint64, assignments []*models.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments[courseID] {
		delete(s.byID, a.ID)
	}
	s.assignments[courseID] = assignments
	for _, a := range assignments {
		a.NormalizeGrades()
		s.byID[a.ID] = a
	}
}

// Assignments returns the assignments recorded for a course.
func (s *Store) Assignments(courseID uint64) []*models.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments[courseID]
}

// AssignmentByID returns the live template for the assignment, if known.
func (s *Store) AssignmentByID(id uint64) (*models.Assignment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	return a, ok
}

// BeginRequest registers an in-flight request for the given context key
// (course or submission identity) and returns its token. Issuing a new
// request for the same key supersedes the previous one.
func (s *Store) BeginRequest(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := uuid.NewString()
	s.inflight[key] = token
	return token
}

// AcceptResponse reports whether a completed request is still current for its
// context key. A completion is stale when the context changed or a newer
// request was issued; stale completions are rejected and must not be applied.
func (s *Store) AcceptResponse(key, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.inflight[key]
	if !ok || current != token {
		return false
	}
	delete(s.inflight, key)
	return true
}

// InvalidateRequests drops any in-flight registration for the key, so late
// completions are discarded. Called when the UI context changes.
func (s *Store) InvalidateRequests(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, key)
}

// Reset returns the store to its initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Index.Reset()
	s.assignments = make(map[uint64][]*models.Assignment)
	s.byID = make(map[uint64]*models.Assignment)
	s.inflight = make(map[string]string)
}
