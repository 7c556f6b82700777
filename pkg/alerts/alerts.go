// Package alerts implements the process-wide alert queue. Remote failures and
// other user-facing notices are pushed here with a severity and drained by the
// presentation layer; internal computations never alert.
package alerts

import (
	"sync"

	"github.com/google/uuid"
)

// Severity classifies an alert for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

// Alert is a single user-facing notice. Text from upstream failures is
// carried verbatim.
type Alert struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

// Queue is a bounded FIFO of pending alerts. When full, the oldest alert is
// dropped to make room.
type Queue struct {
	mu      sync.Mutex
	alerts  []Alert
	maxSize int
}

// NewQueue builds an alert queue holding at most maxSize entries.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Queue{maxSize: maxSize}
}

// Push appends an alert and returns its generated ID.
func (q *Queue) Push(text string, severity Severity) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	alert := Alert{ID: uuid.NewString(), Text: text, Severity: severity}
	q.alerts = append(q.alerts, alert)
	if len(q.alerts) > q.maxSize {
		q.alerts = q.alerts[len(q.alerts)-q.maxSize:]
	}
	return alert.ID
}

// List returns a copy of the pending alerts in arrival order.
func (q *Queue) List() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Alert, len(q.alerts))
	copy(out, q.alerts)
	return out
}

// Dismiss removes the alert with the given ID. Unknown IDs are ignored.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, a := range q.alerts {
		if a.ID == id {
			q.alerts = append(q.alerts[:i], q.alerts[i+1:]...)
			return
		}
	}
}

// Clear drops every pending alert.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.alerts = nil
}

// Len reports the number of pending alerts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}
