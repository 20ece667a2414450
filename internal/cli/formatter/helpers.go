package formatter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FormatMinutes renders a duration in minutes as "45m", "2h" or "1h30m".
func FormatMinutes(min int) string {
	if min < 0 {
		return "-" + FormatMinutes(-min)
	}
	h, m := min/60, min%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}

// FormatWhen renders a time as "Mon 16 Jun 09:00" in loc.
func FormatWhen(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("Mon 02 Jan 15:04")
}

// FormatSpan renders a half-open span, omitting the end date when both
// ends fall on the same day.
func FormatSpan(start, end time.Time, loc *time.Location) string {
	s, e := start.In(loc), end.In(loc)
	if s.YearDay() == e.YearDay() && s.Year() == e.Year() {
		return fmt.Sprintf("%s–%s", s.Format("Mon 02 Jan 15:04"), e.Format("15:04"))
	}
	return fmt.Sprintf("%s – %s", FormatWhen(s, loc), FormatWhen(e, loc))
}

// RelativeDate describes t relative to now in whole days.
func RelativeDate(t, now time.Time) string {
	days := int(math.Round(t.Sub(now).Hours() / 24))
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days == -1:
		return "yesterday"
	case days > 0:
		return fmt.Sprintf("in %dd", days)
	default:
		return fmt.Sprintf("%dd ago", -days)
	}
}

// DeadlineLabel colors a deadline by urgency.
func DeadlineLabel(deadline *time.Time, now time.Time) string {
	if deadline == nil {
		return Dim("—")
	}
	text := RelativeDate(*deadline, now)
	left := deadline.Sub(now)
	switch {
	case left < 48*time.Hour:
		return StyleRed.Render(text)
	case left < 7*24*time.Hour:
		return StyleYellow.Render(text)
	default:
		return StyleFg.Render(text)
	}
}

// Truncate shortens s to max visible cells with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 || lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return "…"
	}
	for len(r) > 0 && lipgloss.Width(string(r)) > max-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

// ShortID returns the first eight characters of an id.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n") + "\n"
}
