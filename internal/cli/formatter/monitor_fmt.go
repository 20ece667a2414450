package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/monitor"
)

func flagLabel(k monitor.FlagKind) string {
	switch k {
	case monitor.FlagLateStart:
		return StyleYellow.Render("late start")
	case monitor.FlagWindowElapsed:
		return StyleRed.Render("missed")
	case monitor.FlagOverrun:
		return StylePurple.Render("overrun")
	case monitor.FlagMissedDeadline:
		return StyleRed.Render("deadline")
	default:
		return string(k)
	}
}

// FormatFlags renders monitor flags one per line.
func FormatFlags(flags []monitor.Flag, loc *time.Location) string {
	if len(flags) == 0 {
		return Dim("  All on track.") + "\n"
	}
	var b strings.Builder
	for _, f := range flags {
		fmt.Fprintf(&b, "  %s  %-12s %s", f.At.In(loc).Format("15:04"), flagLabel(f.Kind), Truncate(f.Title, 40))
		if f.Detail != "" {
			b.WriteString(" " + Dim(f.Detail))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatReport summarizes one monitor tick.
func FormatReport(r monitor.Report, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(FormatFlags(r.Flags, loc))
	if len(r.Overdue) > 0 {
		fmt.Fprintf(&b, "  %d tasks moved to overdue\n", len(r.Overdue))
	}
	if r.ReplanNeeded {
		b.WriteString(Warn("replan suggested: "+r.ReplanReason) + "\n")
	}
	return b.String()
}
