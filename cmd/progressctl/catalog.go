package main

import (
	"github.com/spf13/cobra"

	"github.com/edutrack/progress-engine/internal/application/command"
	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
)

func newMigrateCmd(c *cli) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  "migrate applies pending migrations. With --down it reverts the newest applied one.",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			if down {
				v, err := a.rollback(cmd.Context())
				if err != nil {
					return err
				}
				a.log.Info("migration rolled back", logger.Int("version", v))
				return printJSON(cmd, map[string]int{"rolled_back": v})
			}
			n, err := a.migrate(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("migrations applied", logger.Int("count", n))
			return printJSON(cmd, map[string]int{"applied": n})
		}),
	}
	cmd.Flags().BoolVar(&down, "down", false, "Revert the newest applied migration")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

func newCatalogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Register students, lessons and topics",
	}

	var name string
	student := &cobra.Command{
		Use:   "add-student <id>",
		Short: "Register a student owned by --tenant",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			s := &progress.Student{ID: args[0], TeacherID: tenant, Name: name, CreatedAt: a.clock().UTC()}
			if err := a.catalog.CreateStudent(cmd.Context(), s); err != nil {
				return err
			}
			return printJSON(cmd, s)
		}),
	}
	student.Flags().StringVar(&name, "name", "", "Display name")

	var global bool
	lesson := &cobra.Command{
		Use:   "add-lesson <id>",
		Short: "Register a lesson owned by --tenant, or a global one",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			owner := ""
			if !global {
				tenant, err := c.requireTenant()
				if err != nil {
					return err
				}
				owner = tenant
			}
			l := &progress.Lesson{ID: args[0], TeacherID: owner, Name: name, CreatedAt: a.clock().UTC()}
			if err := a.catalog.CreateLesson(cmd.Context(), l); err != nil {
				return err
			}
			return printJSON(cmd, l)
		}),
	}
	lesson.Flags().StringVar(&name, "name", "", "Display name")
	lesson.Flags().BoolVar(&global, "global", false, "Visible to every teacher")

	var lessonID string
	topic := &cobra.Command{
		Use:   "add-topic <id>",
		Short: "Register a topic under a lesson visible to --tenant",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			l, err := a.catalog.GetLesson(cmd.Context(), lessonID)
			if err != nil {
				return err
			}
			if !l.AccessibleBy(tenant) {
				return shared.ErrLessonNotFound
			}
			t := &progress.Topic{ID: args[0], LessonID: l.ID, Name: name, CreatedAt: a.clock().UTC()}
			if err := a.catalog.CreateTopic(cmd.Context(), t); err != nil {
				return err
			}
			return printJSON(cmd, t)
		}),
	}
	topic.Flags().StringVar(&name, "name", "", "Display name")
	topic.Flags().StringVar(&lessonID, "lesson", "", "Owning lesson ID")
	_ = topic.MarkFlagRequired("lesson")

	cmd.AddCommand(student, lesson, topic)
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENTS
// ══════════════════════════════════════════════════════════════════════════════

func newAssignCmd(c *cli) *cobra.Command {
	var (
		cmdArgs    command.CreateAssignmentCommand
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Create a question assignment for a student",
		Args:  cobra.NoArgs,
		RunE: c.run(func(cmd *cobra.Command, _ []string, a *app) error {
			tenant, err := c.requireTenant()
			if err != nil {
				return err
			}
			in := cmdArgs
			in.TenantID = tenant
			if in.StartDate, err = parseCalendarDay(start); err != nil {
				return err
			}
			if in.EndDate, err = parseCalendarDay(end); err != nil {
				return err
			}
			created, err := a.createAssignment.Handle(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, created)
		}),
	}

	f := cmd.Flags()
	f.StringVar(&cmdArgs.StudentID, "student", "", "Student ID")
	f.StringVar(&cmdArgs.TopicID, "topic", "", "Topic ID")
	f.IntVar(&cmdArgs.QuestionCount, "questions", 0, "Total questions assigned")
	f.IntVar(&cmdArgs.DailyTarget, "daily", 0, "Questions expected per day")
	f.StringVar(&start, "start", "", "First day (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "Last day (YYYY-MM-DD)")
	for _, name := range []string{"student", "topic", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
