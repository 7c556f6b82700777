package state

import (
	"sort"
	"sync"

	"github.com/noah-isme/labreview-api/internal/models"
)

// TableKind selects one of the two ownership tables of the index.
type TableKind string

const (
	// TableUser holds submissions owned by individual enrollments.
	TableUser TableKind = "USER"
	// TableGroup holds submissions owned by groups.
	TableGroup TableKind = "GROUP"
)

// SubmissionIndex is the canonical in-memory table of at most one submission
// per (owner, assignment). Entries are created only through snapshot loads;
// Update refreshes existing entries and never creates an ownership relation.
//
// The index carries a monotonic sequence so that a slow bulk snapshot cannot
// overwrite single-item updates applied after the snapshot request was
// issued: Update stamps the touched submission, and ApplySnapshot keeps any
// local entry stamped after the snapshot's issue token.
type SubmissionIndex struct {
	mu               sync.RWMutex
	userSubmissions  map[uint64][]*models.Submission
	groupSubmissions map[uint64][]*models.Submission
	seq              uint64
	touched          map[uint64]uint64
}

// NewSubmissionIndex builds an empty index.
func NewSubmissionIndex() *SubmissionIndex {
	return &SubmissionIndex{
		userSubmissions:  make(map[uint64][]*models.Submission),
		groupSubmissions: make(map[uint64][]*models.Submission),
		touched:          make(map[uint64]uint64),
	}
}

// ForOwner returns the submissions stored for the owner, or an empty slice
// when the owner is unknown. It never fails.
func (idx *SubmissionIndex) ForOwner(owner models.Owner) []*models.Submission {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stored := idx.table(owner)[owner.ID]
	out := make([]*models.Submission, len(stored))
	copy(out, stored)
	return out
}

// ByID scans both tables for the submission with the given ID.
func (idx *SubmissionIndex) ByID(id uint64) (*models.Submission, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.findByID(id)
}

// OwnerByID returns the owner under which the submission with the given ID
// is stored. The user table is scanned first; when the hit itself carries a
// group ID the submission's own field wins and the group owner is reported.
func (idx *SubmissionIndex) OwnerByID(id uint64) (models.Owner, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for key, subs := range idx.userSubmissions {
		for _, s := range subs {
			if s.ID != id {
				continue
			}
			if s.GroupID > 0 {
				return models.GroupOwner(s.GroupID), true
			}
			return models.EnrollmentOwner(key), true
		}
	}
	for key, subs := range idx.groupSubmissions {
		for _, s := range subs {
			if s.ID == id {
				return models.GroupOwner(key), true
			}
		}
	}
	return models.Owner{}, false
}

// Owners lists the owner keys present in one table, sorted ascending.
func (idx *SubmissionIndex) Owners(kind TableKind) []models.Owner {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	table := idx.userSubmissions
	if kind == TableGroup {
		table = idx.groupSubmissions
	}
	keys := make([]uint64, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	owners := make([]models.Owner, len(keys))
	for i, key := range keys {
		if kind == TableGroup {
			owners[i] = models.GroupOwner(key)
		} else {
			owners[i] = models.EnrollmentOwner(key)
		}
	}
	return owners
}

// Update replaces the owner's entry whose AssignmentID matches the given
// submission. It is a no-op when no such entry exists: updates refresh
// ownership relations, they never create them.
func (idx *SubmissionIndex) Update(owner models.Owner, submission *models.Submission) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	table := idx.table(owner)
	stored, ok := table[owner.ID]
	if !ok {
		return
	}
	for i, s := range stored {
		if s.AssignmentID == submission.AssignmentID {
			replaced := make([]*models.Submission, len(stored))
			copy(replaced, stored)
			replaced[i] = submission
			table[owner.ID] = replaced
			idx.seq++
			idx.touched[submission.ID] = idx.seq
			return
		}
	}
}

// SetSubmissions wholly replaces one table from a server snapshot. A
// refreshed course never retains stale entries.
func (idx *SubmissionIndex) SetSubmissions(kind TableKind, snapshot map[uint64][]*models.Submission) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.replaceTable(kind, snapshot)
}

// Snapshot returns the current sequence number. Callers grab it when issuing
// a bulk request and pass it back to ApplySnapshot so freshness can be
// judged.
func (idx *SubmissionIndex) Snapshot() uint64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.seq
}

// ApplySnapshot replaces one table from a bulk snapshot issued at the given
// token, reconciling against newer single-item updates: any submission the
// index touched after the token keeps its local value in preference to the
// incoming copy. It returns the number of incoming entries discarded that
// way.
func (idx *SubmissionIndex) ApplySnapshot(kind TableKind, snapshot map[uint64][]*models.Submission, token uint64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	discarded := 0
	reconciled := make(map[uint64][]*models.Submission, len(snapshot))
	for key, subs := range snapshot {
		merged := make([]*models.Submission, len(subs))
		for i, incoming := range subs {
			if stamp, ok := idx.touched[incoming.ID]; ok && stamp > token {
				if local, found := idx.findByID(incoming.ID); found {
					merged[i] = local
					discarded++
					continue
				}
			}
			merged[i] = incoming
		}
		reconciled[key] = merged
	}
	idx.replaceTable(kind, reconciled)
	return discarded
}

// Reset drops both tables and the freshness bookkeeping.
func (idx *SubmissionIndex) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.userSubmissions = make(map[uint64][]*models.Submission)
	idx.groupSubmissions = make(map[uint64][]*models.Submission)
	idx.touched = make(map[uint64]uint64)
	idx.seq = 0
}

func (idx *SubmissionIndex) table(owner models.Owner) map[uint64][]*models.Submission {
	if owner.IsGroup() {
		return idx.groupSubmissions
	}
	return idx.userSubmissions
}

func (idx *SubmissionIndex) replaceTable(kind TableKind, snapshot map[uint64][]*models.Submission) {
	table := make(map[uint64][]*models.Submission, len(snapshot))
	for key, subs := range snapshot {
		table[key] = append([]*models.Submission(nil), subs...)
	}
	switch kind {
	case TableGroup:
		idx.groupSubmissions = table
	default:
		idx.userSubmissions = table
	}
}

func (idx *SubmissionIndex) findByID(id uint64) (*models.Submission, bool) {
	for _, subs := range idx.userSubmissions {
		for _, s := range subs {
			if s.ID == id {
				return s, true
			}
		}
	}
	for _, subs := range idx.groupSubmissions {
		for _, s := range subs {
			if s.ID == id {
				return s, true
			}
		}
	}
	return nil, false
}
