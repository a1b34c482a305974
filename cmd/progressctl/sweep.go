package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edutrack/progress-engine/internal/infrastructure/scheduler"
	"github.com/edutrack/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/edutrack/progress-engine/internal/interface/health"
	"github.com/edutrack/progress-engine/pkg/logger"
)

func newSweepCmd(c *cli) *cobra.Command {
	var (
		tenants    []string
		every      time.Duration
		healthAddr string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-check open alerts against fresh metrics",
		Long: "sweep re-evaluates every open alert of the given tenants and closes the " +
			"ones whose accuracy recovered. With --every it keeps running until interrupted.",
		Args: cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			if len(tenants) == 0 {
				tenant, err := c.requireTenant()
				if err != nil {
					return err
				}
				tenants = []string{tenant}
			}

			cfg := jobs.DefaultAlertSweepConfig()
			cfg.Tenants = tenants
			job := jobs.NewAlertSweepJob(a.sweepAlerts, cfg, a.log)

			ctx := cmd.Context()
			if every <= 0 {
				err := job.Run(ctx)
				if perr := printJSON(cmd, job.LastResults()); perr != nil {
					return perr
				}
				return err
			}

			s := scheduler.New(scheduler.Config{Logger: a.log})
			if err := s.Register(job, scheduler.Every(every)); err != nil {
				return err
			}
			// First pass right away, then on schedule.
			if _, err := s.RunNow(ctx, job.Name()); err != nil {
				a.log.Warn("initial sweep failed", logger.Err(err))
			}
			if err := s.Start(ctx); err != nil {
				return err
			}

			var served <-chan error
			if healthAddr != "" {
				_, served = health.Serve(ctx, healthAddr, a.healthChecker(s, job.Name()), a.log)
			}
			select {
			case <-ctx.Done():
			case err := <-served:
				if err != nil {
					_ = s.Stop()
					return fmt.Errorf("health endpoint: %w", err)
				}
				<-ctx.Done()
			}
			return s.Stop()
		}),
	}
	cmd.Flags().StringSliceVar(&tenants, "tenants", nil, "Tenants to sweep (default: --tenant)")
	cmd.Flags().DurationVar(&every, "every", 0, "Repeat at this interval until interrupted")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "Serve /healthz and /readyz on this address while repeating")
	return cmd
}
