package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/preference"
)

func newLogCmd(c *cli) *cobra.Command {
	var (
		in     command.LogProgressCommand
		date   string
		checks bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record (or overwrite) a student's counts for one day",
		Long: "log upserts one day of counts. With --check-alerts the student's topic, " +
			"lesson and overall accuracy are re-checked against the teacher's threshold " +
			"once the write lands. FEATURE_ALERTS_ON_WRITE turns this on per tenant.",
		Args: cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			req := in
			req.TenantID = tenant
			if req.Date, err = a.parseDay(date); err != nil {
				return err
			}
			if checks || a.onWriteChecks(tenant) {
				if err := a.watchProgress(tenant); err != nil {
					return err
				}
			}
			res, err := a.logProgress.Handle(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, res.Log)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&in.StudentID, "student", "", "Student ID")
	f.StringVar(&in.AssignmentID, "assignment", "", "Assignment ID")
	f.StringVar(&date, "date", "", "Day of the log (YYYY-MM-DD, default today)")
	f.IntVar(&in.Right, "right", 0, "Correct answers")
	f.IntVar(&in.Wrong, "wrong", 0, "Wrong answers")
	f.IntVar(&in.Empty, "empty", 0, "Unanswered questions")
	f.IntVar(&in.Bonus, "bonus", 0, "Bonus questions solved")
	f.BoolVar(&checks, "check-alerts", false, "Re-check accuracy alerts after the write")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("assignment")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// alertCheck is printed next to a metric when --check-alert is given.
type alertCheck struct {
	Threshold float64         `json:"threshold"`
	Band      preference.Band `json:"band"`
	Alert     *alert.Alert    `json:"alert"`
}

type metricOutput struct {
	Metric any         `json:"metric"`
	Check  *alertCheck `json:"alert_check,omitempty"`
}

// alertFlags are shared by the metric subcommands.
type alertFlags struct {
	check     bool
	threshold float64
}

func (f *alertFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.check, "check-alert", false, "Evaluate the accuracy alert for this scope after reading")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "Threshold override (default: the teacher's preference, else 70)")
}

// evaluate resolves the threshold and runs the alert check. The check is an
// explicit step; reading a metric alone never touches alerts.
func (f *alertFlags) evaluate(ctx context.Context, cmd *cobra.Command, a *app, tenant string, check command.CheckAccuracyAlertCommand) (*alertCheck, error) {
	if !f.check {
		return nil, nil
	}
	var override *float64
	if cmd.Flags().Changed("threshold") {
		override = &f.threshold
	}
	threshold, err := a.thresholds.ResolveAccuracyThreshold(ctx, tenant, override)
	if err != nil {
		return nil, err
	}
	check.Threshold = threshold
	return &alertCheck{
		Threshold: threshold,
		Band:      preference.BandFor(check.Accuracy, threshold),
		Alert:     a.checkAlert.Handle(ctx, check),
	}, nil
}

func newMetricsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Read progress metrics",
	}

	var topicAlert alertFlags
	topic := &cobra.Command{
		Use:   "topic <student> <topic>",
		Short: "Accuracy and counts of a student on one topic",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			m, err := a.progress.GetTopicProgress(ctx, args[0], args[1], tenant)
			if err != nil {
				return err
			}
			chk, err := topicAlert.evaluate(ctx, cmd, a, tenant, command.CheckAccuracyAlertCommand{
				StudentID: args[0],
				Accuracy:  m.Accuracy,
				TopicID:   args[1],
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, metricOutput{Metric: m, Check: chk})
		}),
	}
	topicAlert.bind(topic)

	var lessonAlert alertFlags
	lesson := &cobra.Command{
		Use:   "lesson <student> <lesson>",
		Short: "Accuracy and counts of a student across a lesson's topics",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			m, err := a.progress.GetLessonProgress(ctx, args[0], args[1], tenant)
			if err != nil {
				return err
			}
			chk, err := lessonAlert.evaluate(ctx, cmd, a, tenant, command.CheckAccuracyAlertCommand{
				StudentID: args[0],
				Accuracy:  m.Accuracy,
				LessonID:  args[1],
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, metricOutput{Metric: m, Check: chk})
		}),
	}
	lessonAlert.bind(lesson)

	var dualAlert alertFlags
	dual := &cobra.Command{
		Use:   "dual <student>",
		Short: "Program progress and concept mastery of a student",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			m, err := a.progress.GetDualMetrics(ctx, args[0], tenant)
			if err != nil {
				return err
			}
			chk, err := dualAlert.evaluate(ctx, cmd, a, tenant, command.CheckAccuracyAlertCommand{
				StudentID: args[0],
				Accuracy:  m.ConceptMastery,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, metricOutput{Metric: m, Check: chk})
		}),
	}
	dualAlert.bind(dual)

	var day string
	pace := &cobra.Command{
		Use:   "pace <assignment>",
		Short: "Daily target and lifetime progress of an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			d, err := a.parseDay(day)
			if err != nil {
				return err
			}
			p, err := a.progress.GetAssignmentPace(cmd.Context(), args[0], tenant, d)
			if err != nil {
				return err
			}
			return printJSON(cmd, p)
		}),
	}
	pace.Flags().StringVar(&day, "day", "", "Day to report (YYYY-MM-DD, default today)")

	cmd.AddCommand(topic, lesson, dual, pace)
	return cmd
}
