package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE ASSIGNMENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssignmentCommand assigns a block of questions on a topic.
type CreateAssignmentCommand struct {
	TenantID  string `validate:"required"`
	StudentID string `validate:"required"`
	TopicID   string `validate:"required"`

	QuestionCount int `validate:"gte=0"`
	DailyTarget   int `validate:"gte=0"`

	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
}

// Validate validates the command.
func (c CreateAssignmentCommand) Validate() error {
	if err := validateStruct("progress", "CreateAssignment", c); err != nil {
		return err
	}
	if timeutil.Day(c.EndDate, nil).Before(timeutil.Day(c.StartDate, nil)) {
		return shared.InvalidInput("progress", "CreateAssignment", "end date before start date")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateAssignmentHandler handles the CreateAssignmentCommand.
type CreateAssignmentHandler struct {
	assignments progress.AssignmentRepository
	catalog     progress.CatalogRepository
	invalidator *CacheInvalidator
	events      shared.EventPublisher
	clock       timeutil.Clock
	log         *logger.Logger
}

// NewCreateAssignmentHandler creates a new CreateAssignmentHandler.
func NewCreateAssignmentHandler(
	assignments progress.AssignmentRepository,
	catalog progress.CatalogRepository,
	invalidator *CacheInvalidator,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *CreateAssignmentHandler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CreateAssignmentHandler{
		assignments: assignments,
		catalog:     catalog,
		invalidator: invalidator,
		events:      events,
		clock:       clock,
		log:         log.With(logger.Component("create_assignment")),
	}
}

// Handle executes the create assignment command.
func (h *CreateAssignmentHandler) Handle(ctx context.Context, cmd CreateAssignmentCommand) (*progress.Assignment, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if err := authorizeStudent(ctx, h.catalog, cmd.StudentID, cmd.TenantID); err != nil {
		return nil, err
	}

	topic, err := h.catalog.GetTopic(ctx, cmd.TopicID)
	if err != nil {
		return nil, shared.StorageFailure("progress", "CreateAssignment", err)
	}
	if !topic.AccessibleBy(cmd.TenantID) {
		// Private topics of other tenants are reported as absent.
		return nil, shared.ErrTopicNotFound
	}

	now := h.clock()
	a := &progress.Assignment{
		ID:            uuid.NewString(),
		StudentID:     cmd.StudentID,
		TopicID:       cmd.TopicID,
		QuestionCount: cmd.QuestionCount,
		DailyTarget:   cmd.DailyTarget,
		StartDate:     timeutil.Day(cmd.StartDate, nil),
		EndDate:       timeutil.Day(cmd.EndDate, nil),
		CreatedAt:     now,
	}
	if err := h.assignments.CreateAssignment(ctx, a); err != nil {
		return nil, shared.StorageFailure("progress", "CreateAssignment", err)
	}

	h.invalidator.InvalidateAfterWrite(ctx, cmd.StudentID)

	h.log.Info("assignment created",
		logger.AssignmentID(a.ID),
		logger.StudentID(a.StudentID),
		logger.TopicID(a.TopicID),
		logger.Int("question_count", a.QuestionCount))

	publish(h.events, h.log, shared.NewAssignmentCreatedEvent(a.ID, a.StudentID, a.TopicID, a.QuestionCount, now))
	return a, nil
}
