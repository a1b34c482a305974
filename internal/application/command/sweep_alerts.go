package command

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP ALERTS COMMAND
// Re-evaluates every open alert of a tenant against fresh metrics, so alerts
// of students whose accuracy recovered get closed even when nobody reads
// that scope again.
// ══════════════════════════════════════════════════════════════════════════════

// SweepAlertsCommand selects the tenant whose open alerts are re-checked.
type SweepAlertsCommand struct {
	TenantID string `validate:"required"`
}

// SweepAlertsResult counts what happened to the open alerts.
type SweepAlertsResult struct {
	Checked   int `json:"checked"`
	Resolved  int `json:"resolved"`
	StillOpen int `json:"still_open"`
	Failed    int `json:"failed"`
}

// MetricReader reads the scope metrics an alert is about.
type MetricReader interface {
	GetTopicProgress(ctx context.Context, studentID, topicID, tenantID string) (*progress.ScopeMetric, error)
	GetLessonProgress(ctx context.Context, studentID, lessonID, tenantID string) (*progress.ScopeMetric, error)
	GetDualMetrics(ctx context.Context, studentID, tenantID string) (*progress.DualMetric, error)
}

// ThresholdSource resolves the tenant's alert threshold.
type ThresholdSource interface {
	ResolveAccuracyThreshold(ctx context.Context, userID string, override *float64) (float64, error)
}

// SweepAlertsHandler handles the SweepAlertsCommand.
type SweepAlertsHandler struct {
	alerts     alert.Repository
	metrics    MetricReader
	thresholds ThresholdSource
	checker    *CheckAccuracyAlertHandler
	log        *logger.Logger
}

// NewSweepAlertsHandler creates a new SweepAlertsHandler.
func NewSweepAlertsHandler(
	alerts alert.Repository,
	metrics MetricReader,
	thresholds ThresholdSource,
	checker *CheckAccuracyAlertHandler,
	log *logger.Logger,
) *SweepAlertsHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SweepAlertsHandler{
		alerts:     alerts,
		metrics:    metrics,
		thresholds: thresholds,
		checker:    checker,
		log:        log.With(logger.Component("alert-sweep")),
	}
}

// Handle re-checks the tenant's open alerts. A failure on one alert is
// counted and logged; only listing the alerts can fail the whole sweep.
func (h *SweepAlertsHandler) Handle(ctx context.Context, cmd SweepAlertsCommand) (*SweepAlertsResult, error) {
	if err := validateStruct("alert", "SweepAlerts", cmd); err != nil {
		return nil, err
	}

	open, err := h.alerts.List(ctx, alert.ListFilter{TenantID: cmd.TenantID})
	if err != nil {
		return nil, err
	}

	threshold, err := h.thresholds.ResolveAccuracyThreshold(ctx, cmd.TenantID, nil)
	if err != nil {
		return nil, err
	}

	res := &SweepAlertsResult{}
	for i := range open {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		a := &open[i]
		res.Checked++

		accuracy, err := h.currentAccuracy(ctx, a, cmd.TenantID)
		if err != nil {
			res.Failed++
			h.log.Warn("alert sweep could not read metric",
				logger.AlertID(a.ID),
				logger.StudentID(a.StudentID),
				logger.Err(err),
			)
			continue
		}

		after := h.checker.Handle(ctx, CheckAccuracyAlertCommand{
			StudentID: a.StudentID,
			Accuracy:  accuracy,
			Threshold: threshold,
			TopicID:   a.TopicID,
			LessonID:  a.LessonID,
		})
		if after != nil && after.Resolved {
			res.Resolved++
		} else {
			res.StillOpen++
		}
	}

	h.log.Info("alert sweep finished",
		logger.TenantID(cmd.TenantID),
		logger.Int("checked", res.Checked),
		logger.Int("resolved", res.Resolved),
		logger.Int("failed", res.Failed),
	)
	return res, nil
}

func (h *SweepAlertsHandler) currentAccuracy(ctx context.Context, a *alert.Alert, tenantID string) (*float64, error) {
	switch {
	case a.TopicID != "":
		m, err := h.metrics.GetTopicProgress(ctx, a.StudentID, a.TopicID, tenantID)
		if err != nil {
			return nil, err
		}
		return m.Accuracy, nil
	case a.LessonID != "":
		m, err := h.metrics.GetLessonProgress(ctx, a.StudentID, a.LessonID, tenantID)
		if err != nil {
			return nil, err
		}
		return m.Accuracy, nil
	default:
		m, err := h.metrics.GetDualMetrics(ctx, a.StudentID, tenantID)
		if err != nil {
			return nil, err
		}
		return m.ConceptMastery, nil
	}
}
