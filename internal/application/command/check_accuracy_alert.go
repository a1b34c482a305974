package command

import (
	"context"

	"github.com/google/uuid"
	"github.com/moby/locker"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK ACCURACY ALERT COMMAND
// Compares an observed accuracy with the threshold and opens, refreshes or
// resolves the single unresolved alert for the scope.
// ══════════════════════════════════════════════════════════════════════════════

// CheckAccuracyAlertCommand carries one accuracy observation.
type CheckAccuracyAlertCommand struct {
	StudentID string

	// Accuracy is nil when the scope has no attempts; nothing happens then.
	Accuracy *float64

	// Threshold is the resolved threshold for the owning teacher.
	Threshold float64

	// TopicID and LessonID select the scope. Both empty means student-wide.
	TopicID  string
	LessonID string
}

func (c CheckAccuracyAlertCommand) key() alert.Key {
	return alert.Key{StudentID: c.StudentID, TopicID: c.TopicID, LessonID: c.LessonID}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CheckAccuracyAlertHandler handles the CheckAccuracyAlertCommand.
type CheckAccuracyAlertHandler struct {
	alerts alert.Repository
	events shared.EventPublisher
	clock  timeutil.Clock
	log    *logger.Logger
	locks  *locker.Locker
}

// NewCheckAccuracyAlertHandler creates a new CheckAccuracyAlertHandler.
func NewCheckAccuracyAlertHandler(
	alerts alert.Repository,
	events shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *CheckAccuracyAlertHandler {
	if clock == nil {
		clock = timeutil.SystemClock
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CheckAccuracyAlertHandler{
		alerts: alerts,
		events: events,
		clock:  clock,
		log:    log.With(logger.Component("alert_engine")),
		locks:  locker.New(),
	}
}

// Handle applies the observation and returns the alert it touched, or nil
// when nothing changed. It never fails: storage errors are logged and the
// check becomes a no-op.
func (h *CheckAccuracyAlertHandler) Handle(ctx context.Context, cmd CheckAccuracyAlertCommand) *alert.Alert {
	if cmd.Accuracy == nil {
		return nil
	}
	if cmd.StudentID == "" {
		h.log.Warn("alert check without student id")
		return nil
	}

	key := cmd.key()
	name := lockName(key)
	h.locks.Lock(name)
	defer func() { _ = h.locks.Unlock(name) }()

	log := h.log.With(
		logger.StudentID(key.StudentID),
		logger.TopicID(key.TopicID),
		logger.LessonID(key.LessonID))

	existing, err := h.alerts.FindUnresolved(ctx, key)
	if err != nil && !shared.IsNotFound(err) {
		log.Error("alert lookup failed", logger.Err(err))
		return nil
	}

	now := h.clock()
	accuracy := *cmd.Accuracy

	switch alert.Evaluate(existing, cmd.Accuracy, cmd.Threshold) {
	case alert.DecisionCreate:
		return h.create(ctx, log, key, accuracy, cmd.Threshold)

	case alert.DecisionUpdate:
		existing.Breach(accuracy, cmd.Threshold, now)
		if err := h.alerts.Update(ctx, existing); err != nil {
			log.Error("alert update failed", logger.AlertID(existing.ID), logger.Err(err))
			return nil
		}
		h.emit(shared.EventAlertUpdated, existing)
		return existing

	case alert.DecisionResolve:
		existing.Resolve(now)
		if err := h.alerts.MarkResolved(ctx, existing.ID, now); err != nil {
			log.Error("alert resolve failed", logger.AlertID(existing.ID), logger.Err(err))
			return nil
		}
		log.Info("alert resolved", logger.AlertID(existing.ID), logger.Float64("accuracy", accuracy))
		h.emit(shared.EventAlertResolved, existing)
		return existing
	}
	return nil
}

// create opens a new alert. Another process may have opened one for the
// same key since the lookup; the unique index rejects the insert and the
// winner's row is refreshed instead.
func (h *CheckAccuracyAlertHandler) create(ctx context.Context, log *logger.Logger, key alert.Key, accuracy, threshold float64) *alert.Alert {
	now := h.clock()
	a := alert.New(uuid.NewString(), key, accuracy, threshold, now)

	err := h.alerts.Create(ctx, a)
	if err == nil {
		log.Info("alert opened",
			logger.AlertID(a.ID),
			logger.Float64("accuracy", accuracy),
			logger.Float64("threshold", threshold))
		h.emit(shared.EventAlertOpened, a)
		return a
	}
	if !shared.IsAlreadyExists(err) {
		log.Error("alert create failed", logger.Err(err))
		return nil
	}

	winner, err := h.alerts.FindUnresolved(ctx, key)
	if err != nil {
		log.Error("alert re-read after conflict failed", logger.Err(err))
		return nil
	}
	winner.Breach(accuracy, threshold, now)
	if err := h.alerts.Update(ctx, winner); err != nil {
		log.Error("alert update after conflict failed", logger.AlertID(winner.ID), logger.Err(err))
		return nil
	}
	h.emit(shared.EventAlertUpdated, winner)
	return winner
}

func (h *CheckAccuracyAlertHandler) emit(t shared.EventType, a *alert.Alert) {
	publish(h.events, h.log, shared.NewAlertEvent(t, a.ID, a.StudentID, a.TopicID, a.LessonID,
		a.Accuracy, a.Threshold, a.UpdatedAt))
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYED MUTEX
// ══════════════════════════════════════════════════════════════════════════════

// lockName encodes an alert key for the per-key locker. NUL cannot appear
// in ids, so distinct keys never share a name.
func lockName(k alert.Key) string {
	return k.StudentID + "\x00" + k.TopicID + "\x00" + k.LessonID
}
