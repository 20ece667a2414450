package cli

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/monitor"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxRecentFlags bounds the flag log shown under the task table.
const maxRecentFlags = 8

var (
	watchQuitKey    = key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit"))
	watchRefreshKey = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh"))
)

// watchRefreshedMsg carries the result of one monitor pass.
type watchRefreshedMsg struct {
	report monitor.Report
	tasks  []*domain.Task
	replan *service.ReplanResult
	err    error
}

// watchTickMsg fires every refresh interval.
type watchTickMsg time.Time

// watchModel keeps the active tasks and recent monitor flags on screen.
type watchModel struct {
	ctx        context.Context
	s          *session
	loc        *time.Location
	interval   time.Duration
	autoReplan bool

	spinner    spinner.Model
	refreshing bool
	tasks      []*domain.Task
	flags      []monitor.Flag
	lastReplan *service.ReplanResult
	lastTick   time.Time
	err        error
}

func newWatchModel(ctx context.Context, s *session, loc *time.Location, interval time.Duration, autoReplan bool) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = formatter.StylePurple
	return watchModel{
		ctx:        ctx,
		s:          s,
		loc:        loc,
		interval:   interval,
		autoReplan: autoReplan,
		spinner:    sp,
		refreshing: true,
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), m.scheduleTick())
}

func (m watchModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

// refresh runs one monitor tick, replans when asked to, and reloads the
// active tasks.
func (m watchModel) refresh() tea.Cmd {
	ctx, s, autoReplan := m.ctx, m.s, m.autoReplan
	return func() tea.Msg {
		report, err := s.Monitor.Tick(ctx, s.UserID)
		if err != nil {
			return watchRefreshedMsg{err: err}
		}
		msg := watchRefreshedMsg{report: report}
		if autoReplan && report.ReplanNeeded {
			res, err := s.Replan.Replan(ctx, s.UserID, service.ReplanRequest{Reason: report.ReplanReason})
			if err != nil {
				return watchRefreshedMsg{report: report, err: err}
			}
			msg.replan = res
		}
		msg.tasks, msg.err = s.Tasks.List(ctx, s.UserID,
			domain.TaskScheduled, domain.TaskInProgress, domain.TaskOverdue)
		return msg
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, watchQuitKey):
			return m, tea.Quit
		case key.Matches(msg, watchRefreshKey):
			if m.refreshing {
				return m, nil
			}
			m.refreshing = true
			return m, m.refresh()
		}
		return m, nil

	case watchTickMsg:
		m.refreshing = true
		return m, tea.Batch(m.refresh(), m.scheduleTick())

	case watchRefreshedMsg:
		m.refreshing = false
		m.lastTick = m.s.Now()
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.tasks = msg.tasks
		m.flags = append(m.flags, msg.report.Flags...)
		if n := len(m.flags); n > maxRecentFlags {
			m.flags = m.flags[n-maxRecentFlags:]
		}
		if msg.replan != nil {
			m.lastReplan = msg.replan
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	title := formatter.Header("cadence watch") + " " + formatter.Dim(m.s.UserID)
	if m.refreshing {
		title += " " + m.spinner.View()
	} else if !m.lastTick.IsZero() {
		title += " " + formatter.Dim("checked "+m.lastTick.In(m.loc).Format("15:04"))
	}
	b.WriteString(title + "\n\n")

	if m.err != nil {
		b.WriteString(formatter.StyleRed.Render("Error: "+m.err.Error()) + "\n\n")
	}
	b.WriteString(formatter.FormatTaskList(m.tasks, m.loc, m.s.Now()))
	b.WriteString("\n" + formatter.Bold("Flags") + "\n")
	b.WriteString(formatter.FormatFlags(m.flags, m.loc))
	if m.lastReplan != nil {
		b.WriteString("\n" + formatter.Dim("replanned "+formatter.ShortID(m.lastReplan.Plan.ID)+
			", released tasks: ") + formatter.Bold(strconv.Itoa(len(m.lastReplan.Reset))) + "\n")
	}

	var help []string
	for _, k := range []key.Binding{watchRefreshKey, watchQuitKey} {
		h := k.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString("\n" + formatter.Dim(strings.Join(help, " • ")) + "\n")
	return b.String()
}
