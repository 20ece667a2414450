package formatter

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// FormatWeek lists busy and occupied intervals of one week in start order.
func FormatWeek(weekStart time.Time, busy, occupied []domain.Interval, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(Header("Week of "+weekStart.In(loc).Format("02 Jan 2006")) + "\n")

	all := make([]domain.Interval, 0, len(busy)+len(occupied))
	all = append(all, busy...)
	all = append(all, occupied...)
	if len(all) == 0 {
		b.WriteString(Dim("  Nothing booked.") + "\n")
		return b.String()
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })

	rows := make([][]string, 0, len(all))
	for _, iv := range all {
		kind := StyleRed.Render("busy")
		if iv.Kind == domain.IntervalOccupied {
			kind = StyleBlue.Render("task")
		}
		span := FormatSpan(iv.Start, iv.End, loc)
		if iv.AllDay {
			span = iv.Start.In(loc).Format("Mon 02 Jan") + " all day"
		}
		rows = append(rows, []string{span, kind, iv.Label})
	}
	b.WriteString(indent(RenderTable([]string{"When", "Kind", "Label"}, rows), 2))
	return b.String()
}

// FormatConflicts warns about scheduled tasks that now overlap busy time.
func FormatConflicts(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	short := make([]string, len(ids))
	for i, id := range ids {
		short[i] = ShortID(id)
	}
	return Warn(fmt.Sprintf("busy time overlaps scheduled sessions of %s; run replan", strings.Join(short, ", "))) + "\n"
}
