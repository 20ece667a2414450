package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// FormatTaskList renders tasks as a table; scheduled times are shown in loc.
func FormatTaskList(tasks []*domain.Task, loc *time.Location, now time.Time) string {
	if len(tasks) == 0 {
		return Dim("No tasks.") + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		when := Dim("—")
		if t.ScheduledStart != nil && t.ScheduledEnd != nil {
			when = FormatSpan(*t.ScheduledStart, *t.ScheduledEnd, loc)
		}
		rows = append(rows, []string{
			ShortID(t.ID),
			Truncate(t.Title, 40),
			PriorityLabel(t.Priority),
			FormatMinutes(t.EstimatedMin),
			DeadlineLabel(t.Deadline, now),
			StatusIndicator(t.Status),
			when,
		})
	}
	return RenderTable([]string{"ID", "Title", "Priority", "Est", "Deadline", "Status", "Scheduled"}, rows)
}

// FormatTask renders every field of one task.
func FormatTask(t *domain.Task, loc *time.Location, now time.Time) string {
	var b strings.Builder
	b.WriteString(Header(t.Title) + "\n")
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %-14s %s\n", label+":", value)
	}
	line("ID", t.ID)
	line("Status", StatusIndicator(t.Status))
	line("Priority", PriorityLabel(t.Priority))
	line("Estimate", FormatMinutes(t.EstimatedMin))
	if t.CanSplit {
		line("Sessions", "split, at least "+FormatMinutes(t.MinSessionMin))
	}
	if t.Deadline != nil {
		line("Deadline", FormatWhen(*t.Deadline, loc)+" ("+DeadlineLabel(t.Deadline, now)+")")
	}
	if t.PreferredTimeOfDay != "" && t.PreferredTimeOfDay != domain.TimeOfDayNone {
		line("Prefers", string(t.PreferredTimeOfDay))
	}
	if t.RequiresDeepFocus {
		line("Focus", "deep")
	}
	if len(t.Tags) > 0 {
		line("Tags", strings.Join(t.Tags, ", "))
	}
	if len(t.Dependencies) > 0 {
		ids := make([]string, len(t.Dependencies))
		for i, d := range t.Dependencies {
			ids[i] = ShortID(d)
		}
		line("Depends on", strings.Join(ids, ", "))
	}
	if t.ScheduledStart != nil && t.ScheduledEnd != nil {
		line("Scheduled", FormatSpan(*t.ScheduledStart, *t.ScheduledEnd, loc))
	}
	if t.ActualStart != nil {
		end := "…"
		if t.ActualEnd != nil {
			end = FormatWhen(*t.ActualEnd, loc)
		}
		line("Worked", FormatWhen(*t.ActualStart, loc)+" → "+end)
	}
	if t.Description != "" {
		b.WriteString("\n" + indent(t.Description, 2))
	}
	return b.String()
}
