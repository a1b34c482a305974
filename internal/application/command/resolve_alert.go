package command

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE ALERT COMMAND
// A teacher closes an alert by hand. Closing an already resolved alert
// succeeds and keeps its original resolution time.
// ══════════════════════════════════════════════════════════════════════════════

// ResolveAlertCommand identifies the alert to close.
type ResolveAlertCommand struct {
	AlertID  string `validate:"required"`
	TenantID string `validate:"required"`
}

// Validate validates the command.
func (c ResolveAlertCommand) Validate() error {
	return validateStruct("alert", "ResolveAlert", c)
}

// ResolveAlertHandler handles the ResolveAlertCommand.
type ResolveAlertHandler struct {
	alerts  alert.Repository
	catalog progress.CatalogRepository
	events  shared.EventPublisher
	clock   timeutil.Clock
	log     *logger.Logger
}

// NewResolveAlertHandler creates a new ResolveAlertHandler.
func NewResolveAlertHandler(
	alerts alert.Repository,
	catalog progress.CatalogRepository,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *ResolveAlertHandler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ResolveAlertHandler{
		alerts:  alerts,
		catalog: catalog,
		events:  events,
		clock:   clock,
		log:     log.With(logger.Component("resolve_alert")),
	}
}

// Handle executes the resolve command and returns the alert as stored.
func (h *ResolveAlertHandler) Handle(ctx context.Context, cmd ResolveAlertCommand) (*alert.Alert, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := h.alerts.GetByID(ctx, cmd.AlertID)
	if err != nil {
		return nil, shared.StorageFailure("alert", "ResolveAlert", err)
	}

	student, err := h.catalog.GetStudent(ctx, a.StudentID)
	if err != nil {
		return nil, shared.StorageFailure("alert", "ResolveAlert", err)
	}
	if !student.BelongsTo(cmd.TenantID) {
		return nil, shared.ErrAlertNotInTenant
	}

	wasResolved := a.Resolved
	now := h.clock()
	if err := h.alerts.MarkResolved(ctx, a.ID, now); err != nil {
		return nil, shared.StorageFailure("alert", "ResolveAlert", err)
	}
	a.Resolve(now)

	if !wasResolved {
		h.log.Info("alert resolved manually",
			logger.AlertID(a.ID),
			logger.StudentID(a.StudentID),
			logger.TenantID(cmd.TenantID))
		publish(h.events, h.log, shared.NewAlertEvent(shared.EventAlertResolved, a.ID, a.StudentID,
			a.TopicID, a.LessonID, a.Accuracy, a.Threshold, now))
	}
	return a, nil
}
