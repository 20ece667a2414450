package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// cadenceHuhTheme returns a huh theme using the formatter palette.
func cadenceHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// taskFormValues holds the raw answers of the task form.
type taskFormValues struct {
	Title      string
	Priority   string
	Estimate   string
	CanSplit   bool
	MinSession string
	Deadline   string
	TimeOfDay  string
	DeepFocus  bool
	Tags       string
}

// taskForm builds the interactive "task add" form over v.
func taskForm(v *taskFormValues) *huh.Form {
	if v.Priority == "" {
		v.Priority = string(domain.PriorityMedium)
	}
	if v.TimeOfDay == "" {
		v.TimeOfDay = string(domain.TimeOfDayNone)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&v.Title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Priority").
				Options(
					huh.NewOption("Low", string(domain.PriorityLow)),
					huh.NewOption("Medium", string(domain.PriorityMedium)),
					huh.NewOption("High", string(domain.PriorityHigh)),
					huh.NewOption("Urgent", string(domain.PriorityUrgent)),
				).
				Value(&v.Priority),
			huh.NewInput().
				Title("Estimated Minutes").
				Placeholder("60").
				Value(&v.Estimate).
				Validate(validateRequiredPositiveInt),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Can it be split into sessions?").
				Value(&v.CanSplit),
			huh.NewInput().
				Title("Shortest Session (minutes)").
				Placeholder("30").
				Value(&v.MinSession).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Deadline (YYYY-MM-DD or YYYY-MM-DDTHH:MM, blank for none)").
				Value(&v.Deadline).
				Validate(validateOptionalWhen),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Preferred Time of Day").
				Options(
					huh.NewOption("Any", string(domain.TimeOfDayNone)),
					huh.NewOption("Morning", string(domain.TimeOfDayMorning)),
					huh.NewOption("Afternoon", string(domain.TimeOfDayAfternoon)),
					huh.NewOption("Evening", string(domain.TimeOfDayEvening)),
				).
				Value(&v.TimeOfDay),
			huh.NewConfirm().
				Title("Needs deep focus?").
				Value(&v.DeepFocus),
			huh.NewInput().
				Title("Tags (comma separated)").
				Value(&v.Tags),
		),
	).WithTheme(cadenceHuhTheme()).WithShowHelp(false)
}

// taskFromForm converts validated form answers into a task for userID.
func taskFromForm(v taskFormValues, userID string, loc *time.Location) (*domain.Task, error) {
	est, err := strconv.Atoi(strings.TrimSpace(v.Estimate))
	if err != nil || est <= 0 {
		return nil, fmt.Errorf("estimated minutes must be a positive number")
	}
	t := &domain.Task{
		UserID:             userID,
		Title:              strings.TrimSpace(v.Title),
		Priority:           domain.Priority(v.Priority),
		EstimatedMin:       est,
		CanSplit:           v.CanSplit,
		PreferredTimeOfDay: domain.TimeOfDay(v.TimeOfDay),
		RequiresDeepFocus:  v.DeepFocus,
	}
	if t.CanSplit {
		t.MinSessionMin = parsePositiveInt(v.MinSession, est)
	}
	if v.Deadline != "" {
		d, err := parseWhen(v.Deadline, loc)
		if err != nil {
			return nil, err
		}
		t.Deadline = &d
	}
	for _, tag := range strings.Split(v.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			t.Tags = append(t.Tags, tag)
		}
	}
	return t, nil
}

// parsePositiveInt parses s, returning fallback when it is empty or not a
// positive integer.
func parsePositiveInt(s string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// validatePositiveInt accepts empty or a positive integer.
func validatePositiveInt(s string) error {
	if s == "" {
		return nil
	}
	return validateRequiredPositiveInt(s)
}

func validateRequiredPositiveInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func validateOptionalWhen(s string) error {
	if s == "" {
		return nil
	}
	_, err := parseWhen(s, time.UTC)
	return err
}
