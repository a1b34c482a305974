package command

import (
	"context"
	"time"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOG PROGRESS COMMAND
// Records a student's tallies for one assignment on one day. A second log
// for the same day replaces the first.
// ══════════════════════════════════════════════════════════════════════════════

// LogProgressCommand contains the data to record a daily log.
type LogProgressCommand struct {
	// TenantID is the calling teacher.
	TenantID string `validate:"required"`

	StudentID    string `validate:"required"`
	AssignmentID string `validate:"required"`

	// Date is truncated to the calendar day. Zero means today.
	Date time.Time

	Right int `validate:"gte=0"`
	Wrong int `validate:"gte=0"`
	Empty int `validate:"gte=0"`
	Bonus int `validate:"gte=0"`
}

// Validate validates the command.
func (c LogProgressCommand) Validate() error {
	return validateStruct("progress", "LogProgress", c)
}

// LogProgressResult contains the stored log.
type LogProgressResult struct {
	Log *progress.ProgressLog
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// LogProgressHandler handles the LogProgressCommand.
type LogProgressHandler struct {
	logs        progress.LogRepository
	assignments progress.AssignmentRepository
	catalog     progress.CatalogRepository
	invalidator *CacheInvalidator
	events      shared.EventPublisher // optional
	clock       timeutil.Clock
	loc         *time.Location
	log         *logger.Logger
}

// NewLogProgressHandler creates a new LogProgressHandler. loc is the
// timezone that decides which calendar day a timestamp belongs to.
func NewLogProgressHandler(
	logs progress.LogRepository,
	assignments progress.AssignmentRepository,
	catalog progress.CatalogRepository,
	invalidator *CacheInvalidator,
	events shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *LogProgressHandler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &LogProgressHandler{
		logs:        logs,
		assignments: assignments,
		catalog:     catalog,
		invalidator: invalidator,
		events:      events,
		clock:       clock,
		loc:         loc,
		log:         log.With(logger.Component("log_progress")),
	}
}

// Handle executes the log progress command.
func (h *LogProgressHandler) Handle(ctx context.Context, cmd LogProgressCommand) (*LogProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := authorizeStudent(ctx, h.catalog, cmd.StudentID, cmd.TenantID); err != nil {
		return nil, err
	}

	assignment, err := h.assignments.GetAssignment(ctx, cmd.AssignmentID)
	if err != nil {
		return nil, shared.StorageFailure("progress", "LogProgress", err)
	}
	if assignment.StudentID != cmd.StudentID {
		return nil, shared.NewDomainError("progress", "LogProgress", shared.ErrAccessDenied,
			"assignment belongs to another student")
	}

	now := h.clock()
	date := cmd.Date
	if date.IsZero() {
		date = now
	}

	stored, err := h.logs.UpsertLog(ctx, &progress.ProgressLog{
		StudentID:    cmd.StudentID,
		AssignmentID: cmd.AssignmentID,
		Date:         timeutil.Day(date, h.loc),
		Counts: progress.Counts{
			Right: cmd.Right,
			Wrong: cmd.Wrong,
			Empty: cmd.Empty,
			Bonus: cmd.Bonus,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, shared.StorageFailure("progress", "LogProgress", err)
	}

	h.invalidator.InvalidateAfterWrite(ctx, cmd.StudentID)

	h.log.Info("progress logged",
		logger.StudentID(cmd.StudentID),
		logger.AssignmentID(cmd.AssignmentID),
		logger.String("date", timeutil.FormatDay(stored.Date)))

	publish(h.events, h.log, shared.NewProgressLoggedEvent(
		stored.ID, stored.StudentID, stored.AssignmentID,
		timeutil.FormatDay(stored.Date), stored.Total(), now))

	return &LogProgressResult{Log: stored}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// authorizeStudent loads the student and checks tenant ownership.
func authorizeStudent(ctx context.Context, catalog progress.CatalogRepository, studentID, tenantID string) error {
	student, err := catalog.GetStudent(ctx, studentID)
	if err != nil {
		return shared.StorageFailure("progress", "Authorize", err)
	}
	if !student.BelongsTo(tenantID) {
		return shared.ErrStudentNotInTenant
	}
	return nil
}

// publish sends an event if a publisher is configured. Failures are logged.
func publish(p shared.EventPublisher, log *logger.Logger, event shared.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(event); err != nil {
		log.Warn("event publish failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err))
	}
}
