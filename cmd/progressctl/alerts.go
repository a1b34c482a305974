package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/application/query"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func newAlertsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List and resolve low-accuracy alerts",
	}

	var (
		student  string
		resolved bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			alerts, err := a.getAlerts.Handle(cmd.Context(), query.GetAlertsQuery{
				TenantID:  tenant,
				StudentID: student,
				Resolved:  &resolved,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, alerts)
		}),
	}
	list.Flags().StringVar(&student, "student", "", "Only this student's alerts")
	list.Flags().BoolVar(&resolved, "resolved", false, "List resolved alerts instead of open ones")

	resolve := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Mark an alert resolved",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			out, err := a.resolveAlert.Handle(cmd.Context(), command.ResolveAlertCommand{
				AlertID:  args[0],
				TenantID: tenant,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		}),
	}

	cmd.AddCommand(list, resolve)
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// THRESHOLD PREFERENCE
// ══════════════════════════════════════════════════════════════════════════════

type thresholdOutput struct {
	TeacherID string  `json:"teacher_id"`
	Threshold float64 `json:"threshold"`
}

func newThresholdCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "threshold",
		Short: "Read or change the tenant's accuracy alert threshold",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the effective threshold",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			v, err := a.thresholds.ResolveAccuracyThreshold(cmd.Context(), tenant, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd, thresholdOutput{TeacherID: tenant, Threshold: v})
		}),
	}

	set := &cobra.Command{
		Use:   "set <percent>",
		Short: "Store a threshold between 0 and 100",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return shared.InvalidInput("preference", "SetThreshold", "threshold must be a number")
			}
			if _, err := a.updatePrefs.Handle(cmd.Context(), command.UpdatePreferencesCommand{
				UserID:            tenant,
				AccuracyThreshold: &v,
			}); err != nil {
				return err
			}
			return printJSON(cmd, thresholdOutput{TeacherID: tenant, Threshold: v})
		}),
	}

	cmd.AddCommand(get, set)
	return cmd
}
