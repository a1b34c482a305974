package alert

import (
	"context"
	"time"
)

// ListFilter narrows Repository.List. Alerts are matched to the tenant
// through their student's teacher.
type ListFilter struct {
	TenantID  string
	StudentID string // optional
	Resolved  bool
}

// Repository stores alerts.
type Repository interface {
	// FindUnresolved returns the open alert for the key, or
	// shared.ErrAlertNotFound.
	FindUnresolved(ctx context.Context, key Key) (*Alert, error)

	// Create inserts an open alert. Returns shared.ErrAlertAlreadyExists
	// when another open alert already holds the key.
	Create(ctx context.Context, a *Alert) error

	// Update persists accuracy, threshold and timestamps of an alert.
	Update(ctx context.Context, a *Alert) error

	// MarkResolved closes the alert. Closing a resolved alert is a no-op.
	MarkResolved(ctx context.Context, id string, at time.Time) error

	// GetByID returns shared.ErrAlertNotFound when absent.
	GetByID(ctx context.Context, id string) (*Alert, error)

	// List returns matching alerts, newest first.
	List(ctx context.Context, filter ListFilter) ([]Alert, error)
}
