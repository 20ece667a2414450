package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// FormatPlan renders a plan grouped by day, followed by the tasks that
// could not be placed.
func FormatPlan(p *domain.Plan, loc *time.Location) string {
	var b strings.Builder
	title := fmt.Sprintf("Plan %s (%s)", ShortID(p.ID), p.Status)
	b.WriteString(Header(title) + "\n")
	fmt.Fprintf(&b, "  %s\n", Dim(FormatWhen(p.HorizonStart, loc)+" → "+FormatWhen(p.HorizonEnd, loc)))
	if p.Context != "" {
		fmt.Fprintf(&b, "  %s\n", Dim(p.Context))
	}
	if p.RefinedFrom != "" {
		fmt.Fprintf(&b, "  %s\n", Dim("refined from "+ShortID(p.RefinedFrom)))
	}
	b.WriteString("\n")

	if len(p.Entries) == 0 {
		b.WriteString(Dim("  Nothing placed.") + "\n")
	}
	var day string
	for _, e := range p.Entries {
		d := e.Start.In(loc).Format("Monday 02 Jan")
		if d != day {
			if day != "" {
				b.WriteString("\n")
			}
			day = d
			b.WriteString("  " + Bold(d) + "\n")
		}
		session := ""
		if e.Sessions > 1 {
			session = Dim(fmt.Sprintf(" [%d/%d]", e.Session, e.Sessions))
		}
		fmt.Fprintf(&b, "    %s–%s  %s%s  %s\n",
			e.Start.In(loc).Format("15:04"), e.End.In(loc).Format("15:04"),
			e.Title, session, Dim(FormatMinutes(e.Minutes())))
		if e.Rationale != "" {
			fmt.Fprintf(&b, "      %s\n", Dim(e.Rationale))
		}
	}

	if issues := p.Issues(); len(issues) > 0 {
		b.WriteString("\n" + Header("Not placed") + "\n")
		rows := make([][]string, 0, len(issues))
		for _, is := range issues {
			rows = append(rows, []string{Truncate(is.Title, 36), StyleYellow.Render(string(is.Code)), is.Reason})
		}
		b.WriteString(indent(RenderTable([]string{"Task", "Code", "Reason"}, rows), 2))
	}
	if p.Reasoning != "" {
		b.WriteString("\n" + Dim(p.Reasoning) + "\n")
	}
	return b.String()
}

// FormatPlanList renders recent plans newest first.
func FormatPlanList(plans []*domain.Plan, loc *time.Location) string {
	if len(plans) == 0 {
		return Dim("No plans yet.") + "\n"
	}
	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{
			ShortID(p.ID),
			string(p.Status),
			FormatWhen(p.CreatedAt, loc),
			fmt.Sprintf("%d", len(p.Entries)),
			fmt.Sprintf("%d", len(p.Issues())),
		})
	}
	return RenderTable([]string{"ID", "Status", "Created", "Sessions", "Issues"}, rows)
}
