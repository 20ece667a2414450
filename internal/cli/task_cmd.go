package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newTaskCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"t"},
		Short:   "Manage tasks",
	}

	cmd.AddCommand(
		newTaskAddCmd(st),
		newTaskListCmd(st),
		newTaskShowCmd(st),
		newTaskStartCmd(st),
		newTaskCompleteCmd(st),
		newTaskDeleteCmd(st),
		newTaskImportCmd(st),
	)

	return cmd
}

func newTaskAddCmd(st *state) *cobra.Command {
	var (
		title, description, priority, deadline, prefer string
		estimate, minSession                           int
		split, deepFocus                               bool
		tags, dependsOn                                []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			loc := s.Location(ctx)

			var t *domain.Task
			if title == "" {
				if !s.IsInteractive() {
					return fmt.Errorf("--title is required")
				}
				var v taskFormValues
				if err := taskForm(&v).Run(); err != nil {
					return err
				}
				var err error
				if t, err = taskFromForm(v, s.UserID, loc); err != nil {
					return err
				}
			} else {
				t = &domain.Task{
					UserID:             s.UserID,
					Title:              title,
					Description:        description,
					Priority:           domain.Priority(priority),
					Tags:               tags,
					EstimatedMin:       estimate,
					CanSplit:           split,
					MinSessionMin:      minSession,
					PreferredTimeOfDay: domain.TimeOfDay(prefer),
					RequiresDeepFocus:  deepFocus,
				}
				if deadline != "" {
					d, err := parseWhen(deadline, loc)
					if err != nil {
						return err
					}
					t.Deadline = &d
				}
			}

			for _, dep := range dependsOn {
				id, err := resolveTaskID(ctx, s, dep)
				if err != nil {
					return err
				}
				t.Dependencies = append(t.Dependencies, id)
			}

			if err := s.Tasks.Add(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added task %s [%s]\n", t.Title, formatter.ShortID(t.ID))
			return nil
		}),
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title (omit for the interactive form)")
	cmd.Flags().StringVar(&description, "description", "", "Longer description")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "low|medium|high|urgent")
	cmd.Flags().IntVar(&estimate, "minutes", 0, "Estimated duration in minutes")
	cmd.Flags().BoolVar(&split, "split", false, "Allow the task to be split into sessions")
	cmd.Flags().IntVar(&minSession, "min-session", 0, "Shortest session in minutes when split")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD or YYYY-MM-DDTHH:MM)")
	cmd.Flags().StringVar(&prefer, "prefer", string(domain.TimeOfDayNone), "Preferred time of day: none|morning|afternoon|evening")
	cmd.Flags().BoolVar(&deepFocus, "deep-focus", false, "Task needs uninterrupted focus")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringSliceVar(&dependsOn, "depends-on", nil, "ID of a task that must finish first (repeatable)")

	return cmd
}

func newTaskListCmd(st *state) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			var filter []domain.TaskStatus
			for _, raw := range statuses {
				if !domain.ValidTaskStatuses[raw] {
					return fmt.Errorf("unknown status %q", raw)
				}
				filter = append(filter, domain.TaskStatus(raw))
			}
			tasks, err := s.Tasks.List(cmd.Context(), s.UserID, filter...)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTaskList(tasks, s.Location(cmd.Context()), s.Now()))
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only tasks in these statuses")

	return cmd
}

func newTaskShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, s, args[0])
			if err != nil {
				return err
			}
			t, err := s.Tasks.Get(ctx, s.UserID, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatTask(t, s.Location(ctx), s.Now()))
			return nil
		}),
	}
}

func newTaskStartCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "start ID",
		Short: "Mark a task as started now",
		Args:  cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, s, args[0])
			if err != nil {
				return err
			}
			t, err := s.Tasks.Start(ctx, s.UserID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %s at %s\n", t.Title,
				formatter.FormatWhen(*t.ActualStart, s.Location(ctx)))
			return nil
		}),
	}
}

func newTaskCompleteCmd(st *state) *cobra.Command {
	var startedAt, endedAt string

	cmd := &cobra.Command{
		Use:     "complete ID",
		Aliases: []string{"done"},
		Short:   "Mark a task as completed",
		Args:    cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			loc := s.Location(ctx)
			id, err := resolveTaskID(ctx, s, args[0])
			if err != nil {
				return err
			}

			var req service.CompleteRequest
			if startedAt != "" {
				t, err := parseWhen(startedAt, loc)
				if err != nil {
					return err
				}
				req.ActualStart = &t
			}
			if endedAt != "" {
				t, err := parseWhen(endedAt, loc)
				if err != nil {
					return err
				}
				req.ActualEnd = &t
			}

			res, err := s.Tasks.Complete(ctx, s.UserID, id, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Completed %s in %s (estimated %s), %s\n",
				res.Task.Title,
				formatter.FormatMinutes(res.Record.ActualMin),
				formatter.FormatMinutes(res.Record.EstimatedMin),
				formatter.OutcomeLabel(res.Record.Outcome))
			if res.StaleProfile {
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warn("profile changed concurrently; the latest learning update won"))
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&startedAt, "started", "", "When work actually started (default: recorded start)")
	cmd.Flags().StringVar(&endedAt, "ended", "", "When work actually ended (default: now)")

	return cmd
}

func newTaskDeleteCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolveTaskID(ctx, s, args[0])
			if err != nil {
				return err
			}
			if err := s.Tasks.Delete(ctx, s.UserID, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", formatter.ShortID(id))
			return nil
		}),
	}
}

func newTaskImportCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import tasks and busy time from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			res, err := s.Import.Import(cmd.Context(), s.UserID, args[0])
			if err != nil {
				return err
			}
			titles := make([]string, len(res.Tasks))
			for i, t := range res.Tasks {
				titles[i] = t.Title
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d tasks, %d dependencies, busy time for %d weeks\n",
				len(res.Tasks), res.Dependencies, res.BusyWeeks)
			if len(titles) > 0 {
				fmt.Fprintln(out, formatter.Dim("  "+strings.Join(titles, ", ")))
			}
			return nil
		}),
	}
}
