package query

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ALERTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAlertsQuery selects a tenant's alerts.
type GetAlertsQuery struct {
	TenantID string

	// StudentID narrows the list to one student of the tenant.
	StudentID string

	// Resolved selects resolved alerts when true. nil means unresolved.
	Resolved *bool
}

// GetAlertsHandler lists alerts, newest first.
type GetAlertsHandler struct {
	alerts  alert.Repository
	catalog progress.CatalogRepository
}

// NewGetAlertsHandler creates a new GetAlertsHandler.
func NewGetAlertsHandler(alerts alert.Repository, catalog progress.CatalogRepository) *GetAlertsHandler {
	return &GetAlertsHandler{alerts: alerts, catalog: catalog}
}

// Handle executes the query. The result is never nil.
func (h *GetAlertsHandler) Handle(ctx context.Context, q GetAlertsQuery) ([]alert.Alert, error) {
	if q.TenantID == "" {
		return nil, shared.InvalidInput("alert", "GetAlerts", "tenant id is required")
	}

	if q.StudentID != "" {
		student, err := h.catalog.GetStudent(ctx, q.StudentID)
		if err != nil {
			return nil, shared.StorageFailure("alert", "GetAlerts", err)
		}
		if !student.BelongsTo(q.TenantID) {
			return nil, shared.ErrStudentNotInTenant
		}
	}

	resolved := false
	if q.Resolved != nil {
		resolved = *q.Resolved
	}

	out, err := h.alerts.List(ctx, alert.ListFilter{
		TenantID:  q.TenantID,
		StudentID: q.StudentID,
		Resolved:  resolved,
	})
	if err != nil {
		return nil, shared.StorageFailure("alert", "GetAlerts", err)
	}
	if out == nil {
		out = []alert.Alert{}
	}
	return out, nil
}
