// Package jobs contains the scheduled jobs of the progress engine.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
	"github.com/edutrack/progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ALERT SWEEP JOB
// ══════════════════════════════════════════════════════════════════════════════

// AlertSweeper re-checks the open alerts of one tenant.
type AlertSweeper interface {
	Handle(ctx context.Context, cmd command.SweepAlertsCommand) (*command.SweepAlertsResult, error)
}

// AlertSweepConfig contains configuration for the alert sweep job.
type AlertSweepConfig struct {
	// Tenants whose alerts are swept, in order.
	Tenants []string

	// Timeout bounds one run over all tenants.
	Timeout time.Duration

	// MaxAttempts and RetryDelay govern retries of a tenant sweep that
	// failed on storage.
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultAlertSweepConfig returns sensible defaults.
func DefaultAlertSweepConfig() AlertSweepConfig {
	return AlertSweepConfig{
		Timeout:     5 * time.Minute,
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// AlertSweepJob closes alerts whose scope recovered without anyone
// looking at it again.
type AlertSweepJob struct {
	sweeper AlertSweeper
	config  AlertSweepConfig
	retrier *retry.Retrier
	log     *logger.Logger

	mu   sync.Mutex
	last map[string]command.SweepAlertsResult
}

// NewAlertSweepJob creates the job.
func NewAlertSweepJob(sweeper AlertSweeper, config AlertSweepConfig, log *logger.Logger) *AlertSweepJob {
	if log == nil {
		log = logger.NewNop()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	log = log.With(logger.Component("alert-sweep-job"))
	return &AlertSweepJob{
		sweeper: sweeper,
		config:  config,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithInitialDelay(config.RetryDelay),
			retry.WithMaxDelay(10*config.RetryDelay),
			retry.WithRetryIf(shared.IsStorageFailure),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("retrying tenant sweep",
					logger.Int("attempt", attempt),
					logger.Duration("delay", delay),
					logger.Err(err))
			}),
		),
		log: log,
	}
}

// Name returns the job name.
func (j *AlertSweepJob) Name() string {
	return "alert_sweep"
}

// Run sweeps every configured tenant. A tenant that keeps failing does not
// stop the others; all failures are returned together.
func (j *AlertSweepJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	results := make(map[string]command.SweepAlertsResult, len(j.config.Tenants))
	var errs []error
	for _, tenant := range j.config.Tenants {
		var res *command.SweepAlertsResult
		err := j.retrier.Do(ctx, func(ctx context.Context) error {
			var err error
			res, err = j.sweeper.Handle(ctx, command.SweepAlertsCommand{TenantID: tenant})
			return err
		})
		if err != nil {
			j.log.Error("tenant sweep failed", logger.TenantID(tenant), logger.Err(err))
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenant, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		results[tenant] = *res
	}
	j.mu.Lock()
	j.last = results
	j.mu.Unlock()
	return errors.Join(errs...)
}

// LastResults returns the per-tenant results of the latest run.
func (j *AlertSweepJob) LastResults() map[string]command.SweepAlertsResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}
