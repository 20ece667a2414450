package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

func FormatInsights(in *domain.Insights) string {
	var b strings.Builder
	b.WriteString(Header("Insights") + "\n")
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %-18s %s\n", label+":", value)
	}
	line("Adherence", RenderProgress(in.AdherenceRate, 20))
	line("Duration bias", fmt.Sprintf("×%.2f", in.DurationBias))
	if len(in.PeakHours) > 0 {
		hours := make([]string, len(in.PeakHours))
		for i, h := range in.PeakHours {
			hours[i] = fmt.Sprintf("%02d:00", h)
		}
		line("Peak hours", strings.Join(hours, ", "))
	} else {
		line("Peak hours", Dim("not learned yet"))
	}
	if in.AverageFocusSpanMin > 0 {
		line("Focus span", FormatMinutes(int(in.AverageFocusSpanMin+0.5)))
	}
	line("Buffer", FormatMinutes(in.MinBufferMin))
	line("Tracked", fmt.Sprintf("%d (%d on time, %d early, %d late)", in.TasksTracked, in.OnTimeCount, in.EarlyCount, in.LateCount))
	if in.TasksTracked > 0 {
		line("Avg delay", fmt.Sprintf("%.0fm", in.AvgDelayMin))
		line("Estimate error", fmt.Sprintf("%.0f%%", in.AvgEstimationError*100))
	}
	line("Reviews", fmt.Sprintf("%d", in.ReviewsProcessed))
	line("Plans", fmt.Sprintf("%d", in.PlansGenerated))
	line("Feedback", fmt.Sprintf("%d", in.FeedbackReceived))

	if len(in.TagBias) > 0 {
		tags := make([]string, 0, len(in.TagBias))
		for tag := range in.TagBias {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		rows := make([][]string, len(tags))
		for i, tag := range tags {
			rows[i] = []string{tag, fmt.Sprintf("×%.2f", in.TagBias[tag])}
		}
		b.WriteString("\n" + indent(RenderTable([]string{"Tag", "Bias"}, rows), 2))
	}
	if len(in.Recommendations) > 0 {
		b.WriteString("\n")
		for _, r := range in.Recommendations {
			fmt.Fprintf(&b, "  %s %s\n", StylePurple.Render("→"), r)
		}
	}
	return b.String()
}

// FormatReview summarizes an applied weekly review.
func FormatReview(deltas []domain.ReviewDelta, nudged bool, bufferMin int) string {
	var b strings.Builder
	b.WriteString(Header("Review") + "\n")
	if len(deltas) == 0 {
		b.WriteString(Dim("  No deviations recorded.") + "\n")
	} else {
		rows := make([][]string, len(deltas))
		for i, d := range deltas {
			rows[i] = []string{
				d.Date.Format("Mon 02 Jan"), d.Event, string(d.Kind),
				FormatMinutes(d.PlannedMin), FormatMinutes(d.ActualMin),
			}
		}
		b.WriteString(indent(RenderTable([]string{"Date", "Event", "Kind", "Planned", "Actual"}, rows), 2))
	}
	if nudged {
		fmt.Fprintf(&b, "\n  Buffer between tasks raised to %s.\n", Bold(FormatMinutes(bufferMin)))
	}
	return b.String()
}

// FormatHistory renders completion records newest first.
func FormatHistory(records []domain.CompletionRecord, loc *time.Location) string {
	if len(records) == 0 {
		return Dim("No completed tasks yet.") + "\n"
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		delay := Dim("—")
		if r.ScheduledEnd != nil {
			delay = fmt.Sprintf("%+dm", r.DelayMin)
		}
		rows[i] = []string{
			FormatWhen(r.ActualEnd, loc),
			Truncate(r.Title, 36),
			FormatMinutes(r.EstimatedMin),
			FormatMinutes(r.ActualMin),
			OutcomeLabel(r.Outcome),
			delay,
		}
	}
	return RenderTable([]string{"Finished", "Task", "Est", "Actual", "Outcome", "Delay"}, rows)
}
