// Package eventhandler contains handlers for domain events.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS LOGGED HANDLER
// Runs the accuracy alert check for the scopes a new log touches. It is an
// opt-in subscriber: writers that want alerts evaluated on write subscribe
// it, everyone else keeps the check as a separate step.
// ═══════════════════════════════════════════════════════════════════════════

// ProgressLoggedConfig selects which scopes are re-checked.
type ProgressLoggedConfig struct {
	CheckTopic   bool
	CheckLesson  bool
	CheckStudent bool

	// Timeout bounds one event's processing.
	Timeout time.Duration
}

// DefaultProgressLoggedConfig checks every scope.
func DefaultProgressLoggedConfig() ProgressLoggedConfig {
	return ProgressLoggedConfig{
		CheckTopic:   true,
		CheckLesson:  true,
		CheckStudent: true,
		Timeout:      10 * time.Second,
	}
}

// OnProgressLoggedHandler handles shared.ProgressLoggedEvent.
type OnProgressLoggedHandler struct {
	catalog     progress.CatalogRepository
	assignments progress.AssignmentRepository
	metrics     command.MetricReader
	thresholds  command.ThresholdSource
	checker     *command.CheckAccuracyAlertHandler
	log         *logger.Logger
	config      ProgressLoggedConfig
}

// NewOnProgressLoggedHandler creates the handler.
func NewOnProgressLoggedHandler(
	catalog progress.CatalogRepository,
	assignments progress.AssignmentRepository,
	metrics command.MetricReader,
	thresholds command.ThresholdSource,
	checker *command.CheckAccuracyAlertHandler,
	log *logger.Logger,
	config ProgressLoggedConfig,
) *OnProgressLoggedHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &OnProgressLoggedHandler{
		catalog:     catalog,
		assignments: assignments,
		metrics:     metrics,
		thresholds:  thresholds,
		checker:     checker,
		log:         log.With(logger.Component("on-progress-logged")),
		config:      config,
	}
}

// EventType returns the event type this handler consumes.
func (h *OnProgressLoggedHandler) EventType() shared.EventType {
	return shared.EventProgressLogged
}

// Handle implements shared.EventHandler.
func (h *OnProgressLoggedHandler) Handle(event shared.Event) error {
	var ev shared.ProgressLoggedEvent
	switch e := event.(type) {
	case shared.ProgressLoggedEvent:
		ev = e
	case *shared.ProgressLoggedEvent:
		ev = *e
	default:
		h.log.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx := context.Background()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	student, err := h.catalog.GetStudent(ctx, ev.StudentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	a, err := h.assignments.GetAssignment(ctx, ev.AssignmentID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}
	topic, err := h.catalog.GetTopic(ctx, a.TopicID)
	if err != nil {
		return fmt.Errorf("get topic: %w", err)
	}

	// The student's own teacher is the caller for every read below.
	tenant := student.TeacherID
	threshold, err := h.thresholds.ResolveAccuracyThreshold(ctx, tenant, nil)
	if err != nil {
		return fmt.Errorf("resolve threshold: %w", err)
	}

	log := h.log.With(logger.StudentID(student.ID), logger.AssignmentID(a.ID))
	check := func(scope string, accuracy *float64, topicID, lessonID string) {
		out := h.checker.Handle(ctx, command.CheckAccuracyAlertCommand{
			StudentID: student.ID,
			Accuracy:  accuracy,
			Threshold: threshold,
			TopicID:   topicID,
			LessonID:  lessonID,
		})
		if out != nil {
			log.Debug("alert touched",
				logger.String("scope", scope),
				logger.AlertID(out.ID),
				logger.Bool("resolved", out.Resolved))
		}
	}

	if h.config.CheckTopic {
		m, err := h.metrics.GetTopicProgress(ctx, student.ID, topic.ID, tenant)
		if err != nil {
			log.Warn("topic metric unavailable", logger.TopicID(topic.ID), logger.Err(err))
		} else {
			check("topic", m.Accuracy, topic.ID, "")
		}
	}
	if h.config.CheckLesson {
		m, err := h.metrics.GetLessonProgress(ctx, student.ID, topic.LessonID, tenant)
		if err != nil {
			log.Warn("lesson metric unavailable", logger.LessonID(topic.LessonID), logger.Err(err))
		} else {
			check("lesson", m.Accuracy, "", topic.LessonID)
		}
	}
	if h.config.CheckStudent {
		m, err := h.metrics.GetDualMetrics(ctx, student.ID, tenant)
		if err != nil {
			log.Warn("dual metric unavailable", logger.Err(err))
		} else {
			check("student", m.ConceptMastery, "", "")
		}
	}
	return nil
}
