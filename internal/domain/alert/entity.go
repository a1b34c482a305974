// Package alert models accuracy alerts: a persistent record that a student's
// accuracy on a scope fell below the teacher's threshold, and the rules that
// move an alert between open and resolved.
package alert

import (
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KEY
// ══════════════════════════════════════════════════════════════════════════════

// Key identifies the scope an alert is raised for. Empty TopicID and
// LessonID together mean the student-wide scope. At most one unresolved
// alert exists per key.
type Key struct {
	StudentID string
	TopicID   string
	LessonID  string
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Alert records a below-threshold accuracy observation.
type Alert struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	TopicID   string `json:"topic_id,omitempty"`
	LessonID  string `json:"lesson_id,omitempty"`

	// Accuracy is the value observed at the latest breach.
	Accuracy float64 `json:"accuracy"`

	// Threshold is the threshold in force at the latest breach.
	Threshold float64 `json:"threshold"`

	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// New opens an alert for a breach observed at now.
func New(id string, key Key, accuracy, threshold float64, now time.Time) *Alert {
	return &Alert{
		ID:        id,
		StudentID: key.StudentID,
		TopicID:   key.TopicID,
		LessonID:  key.LessonID,
		Accuracy:  accuracy,
		Threshold: threshold,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Key returns the scope key of the alert.
func (a *Alert) Key() Key {
	return Key{StudentID: a.StudentID, TopicID: a.TopicID, LessonID: a.LessonID}
}

// Breach refreshes an open alert with a newer observation.
func (a *Alert) Breach(accuracy, threshold float64, now time.Time) {
	a.Accuracy = accuracy
	a.Threshold = threshold
	a.UpdatedAt = now
}

// Resolve closes the alert. Resolving twice keeps the first ResolvedAt.
func (a *Alert) Resolve(now time.Time) {
	if a.Resolved {
		return
	}
	a.Resolved = true
	a.ResolvedAt = &now
	a.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISION
// ══════════════════════════════════════════════════════════════════════════════

// Decision is what the alert check should do with an observation.
type Decision int

const (
	// DecisionNone leaves storage untouched.
	DecisionNone Decision = iota
	// DecisionCreate opens a new alert.
	DecisionCreate
	// DecisionUpdate refreshes the open alert.
	DecisionUpdate
	// DecisionResolve closes the open alert.
	DecisionResolve
)

func (d Decision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionUpdate:
		return "update"
	case DecisionResolve:
		return "resolve"
	default:
		return "none"
	}
}

// Evaluate decides the transition for an observed accuracy against the
// threshold. existing is the unresolved alert for the key, or nil.
// A nil accuracy never changes anything. Accuracy equal to the threshold
// is not a breach.
func Evaluate(existing *Alert, accuracy *float64, threshold float64) Decision {
	if accuracy == nil {
		return DecisionNone
	}
	breach := *accuracy < threshold
	switch {
	case breach && existing == nil:
		return DecisionCreate
	case breach:
		return DecisionUpdate
	case existing != nil:
		return DecisionResolve
	default:
		return DecisionNone
	}
}
