// Package monitor compares the wall clock against scheduled task windows,
// flags deviations and decides when a replan is warranted. It only ever
// changes task status, through compare-and-set, and never touches
// scheduled times or intervals.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/domain"
	"go.uber.org/zap"
)

type FlagKind string

const (
	FlagLateStart      FlagKind = "late_start"
	FlagWindowElapsed  FlagKind = "window_elapsed"
	FlagOverrun        FlagKind = "overrun"
	FlagMissedDeadline FlagKind = "missed_deadline"
)

type Flag struct {
	TaskID         string
	Title          string
	Kind           FlagKind
	ScheduledStart *time.Time
	Detail         string
	At             time.Time
}

// Report is the outcome of one tick for one user. Flags holds only flags
// that are new in this tick.
type Report struct {
	UserID       string
	At           time.Time
	Flags        []Flag
	Overdue      []string // tasks moved to overdue by this tick
	ReplanNeeded bool
	ReplanReason string
}

// Store is the slice of the task registry the monitor needs.
type Store interface {
	ListByStatus(ctx context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error)
	CompareAndSetStatus(ctx context.Context, userID, taskID string, from, to domain.TaskStatus, at time.Time) (bool, error)
}

// SeenStore keeps the set of already reported flags across monitor
// instances, so a fresh process does not report them again.
type SeenStore interface {
	LoadSeenFlags(ctx context.Context, userID string) ([]domain.SeenFlag, error)
	ReplaceSeenFlags(ctx context.Context, userID string, flags []domain.SeenFlag) error
}

// Locker serializes mutating work per user. Lock returns the unlock func.
type Locker interface {
	Lock(userID string) func()
}

type Config struct {
	Interval  time.Duration
	Grace     time.Duration
	Threshold int // replan once more than this many new flags accrue in a tick
}

func DefaultConfig() Config {
	return Config{Interval: 15 * time.Minute, Grace: 15 * time.Minute, Threshold: 3}
}

type Monitor struct {
	store  Store
	clock  clock.Clock
	cfg    Config
	log    *zap.Logger
	locker Locker
	saved  SeenStore

	mu     sync.Mutex
	seen   map[string]map[flagKey]bool
	loaded map[string]bool
}

// flagKey identifies a reported flag. ref is the scheduled start, or the
// deadline for missed deadlines, so a rescheduled window flags again while
// a deadline flags once.
type flagKey struct {
	taskID string
	kind   FlagKind
	ref    int64
}

type Option func(*Monitor)

func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.log = l } }
func WithLocker(l Locker) Option      { return func(m *Monitor) { m.locker = l } }

// WithSeenStore persists flag dedup state per user.
func WithSeenStore(s SeenStore) Option { return func(m *Monitor) { m.saved = s } }

func New(store Store, clk clock.Clock, cfg Config, opts ...Option) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Grace < 0 {
		cfg.Grace = def.Grace
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	m := &Monitor{
		store:  store,
		clock:  clk,
		cfg:    cfg,
		log:    zap.NewNop(),
		seen:   make(map[string]map[flagKey]bool),
		loaded: make(map[string]bool),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Tick evaluates one user's tasks against the current time. Ticking twice
// at the same instant yields no new flags and no new transitions.
func (m *Monitor) Tick(ctx context.Context, userID string) (Report, error) {
	if m.locker != nil {
		defer m.locker.Lock(userID)()
	}
	now := m.clock.Now()
	report := Report{UserID: userID, At: now}

	if err := m.load(ctx, userID); err != nil {
		return report, err
	}
	tasks, err := m.store.ListByStatus(ctx, userID,
		domain.TaskPending, domain.TaskScheduled, domain.TaskInProgress, domain.TaskOverdue)
	if err != nil {
		return report, fmt.Errorf("listing active tasks: %w", err)
	}

	live := make(map[string]bool, len(tasks))
	missed := ""
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		live[t.ID] = true
		if t.Status == domain.TaskOverdue {
			continue
		}

		if t.Deadline != nil && now.After(*t.Deadline) {
			moved, err := m.store.CompareAndSetStatus(ctx, userID, t.ID, t.Status, domain.TaskOverdue, now)
			if err != nil {
				return report, fmt.Errorf("marking %s overdue: %w", t.ID, err)
			}
			if moved {
				report.Overdue = append(report.Overdue, t.ID)
				detail := fmt.Sprintf("deadline %s passed", t.Deadline.Format(time.RFC3339))
				if m.emit(&report, t, FlagMissedDeadline, t.Deadline, detail) && missed == "" {
					missed = t.Title
				}
			}
			continue
		}

		switch t.Status {
		case domain.TaskScheduled:
			if t.ScheduledStart == nil || t.ScheduledEnd == nil {
				continue
			}
			if now.After(*t.ScheduledEnd) {
				moved, err := m.store.CompareAndSetStatus(ctx, userID, t.ID, domain.TaskScheduled, domain.TaskOverdue, now)
				if err != nil {
					return report, fmt.Errorf("marking %s overdue: %w", t.ID, err)
				}
				if moved {
					report.Overdue = append(report.Overdue, t.ID)
					m.emit(&report, t, FlagWindowElapsed, t.ScheduledStart, "window ended without a start")
				}
				continue
			}
			if now.After(t.ScheduledStart.Add(m.cfg.Grace)) {
				late := now.Sub(*t.ScheduledStart).Round(time.Minute)
				m.emit(&report, t, FlagLateStart, t.ScheduledStart, fmt.Sprintf("not started %s after scheduled start", late))
			}
		case domain.TaskInProgress:
			if t.ScheduledEnd != nil && now.After(*t.ScheduledEnd) {
				over := now.Sub(*t.ScheduledEnd).Round(time.Minute)
				m.emit(&report, t, FlagOverrun, t.ScheduledStart, fmt.Sprintf("running %s past scheduled end", over))
			}
		}
	}
	if m.forget(userID, live) || len(report.Flags) > 0 {
		if err := m.save(ctx, userID); err != nil {
			m.log.Warn("saving monitor flags", zap.String("user_id", userID), zap.Error(err))
		}
	}

	switch {
	case missed != "":
		report.ReplanNeeded = true
		report.ReplanReason = "missed deadline: " + missed
	case len(report.Flags) > m.cfg.Threshold:
		report.ReplanNeeded = true
		report.ReplanReason = fmt.Sprintf("%d schedule deviations", len(report.Flags))
	}

	if len(report.Flags) > 0 {
		m.log.Info("monitor tick",
			zap.String("user_id", userID),
			zap.Int("flags", len(report.Flags)),
			zap.Strings("overdue", report.Overdue),
			zap.Bool("replan_needed", report.ReplanNeeded),
		)
	}
	return report, nil
}

// Run ticks every configured interval for each user until ctx is done.
// Tick errors are logged and do not stop the loop.
func (m *Monitor) Run(ctx context.Context, userIDs []string, onReport func(Report)) error {
	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, uid := range userIDs {
				report, err := m.Tick(ctx, uid)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					m.log.Warn("monitor tick failed", zap.String("user_id", uid), zap.Error(err))
					continue
				}
				if onReport != nil {
					onReport(report)
				}
			}
		}
	}
}

// emit appends a flag unless the same key was already reported, and
// reports whether it did.
func (m *Monitor) emit(r *Report, t *domain.Task, kind FlagKind, ref *time.Time, detail string) bool {
	key := flagKey{taskID: t.ID, kind: kind}
	if ref != nil {
		key.ref = ref.Unix()
	}

	m.mu.Lock()
	seen := m.seen[r.UserID]
	if seen == nil {
		seen = make(map[flagKey]bool)
		m.seen[r.UserID] = seen
	}
	dup := seen[key]
	seen[key] = true
	m.mu.Unlock()

	if dup {
		return false
	}
	r.Flags = append(r.Flags, Flag{
		TaskID:         t.ID,
		Title:          t.Title,
		Kind:           kind,
		ScheduledStart: t.ScheduledStart,
		Detail:         detail,
		At:             r.At,
	})
	return true
}

// forget drops dedup state for tasks that are completed or gone so the map
// does not grow without bound. It reports whether anything was dropped.
func (m *Monitor) forget(userID string, live map[string]bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := false
	for k := range m.seen[userID] {
		if !live[k.taskID] {
			delete(m.seen[userID], k)
			dropped = true
		}
	}
	return dropped
}

func (m *Monitor) load(ctx context.Context, userID string) error {
	if m.saved == nil {
		return nil
	}
	m.mu.Lock()
	done := m.loaded[userID]
	m.mu.Unlock()
	if done {
		return nil
	}

	flags, err := m.saved.LoadSeenFlags(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading monitor flags: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := m.seen[userID]
	if seen == nil {
		seen = make(map[flagKey]bool, len(flags))
		m.seen[userID] = seen
	}
	for _, f := range flags {
		seen[flagKey{taskID: f.TaskID, kind: FlagKind(f.Kind), ref: f.Ref.Unix()}] = true
	}
	m.loaded[userID] = true
	return nil
}

func (m *Monitor) save(ctx context.Context, userID string) error {
	if m.saved == nil {
		return nil
	}
	m.mu.Lock()
	flags := make([]domain.SeenFlag, 0, len(m.seen[userID]))
	for k := range m.seen[userID] {
		flags = append(flags, domain.SeenFlag{TaskID: k.taskID, Kind: string(k.kind), Ref: time.Unix(k.ref, 0).UTC()})
	}
	m.mu.Unlock()
	return m.saved.ReplaceSeenFlags(ctx, userID, flags)
}
