// Package app wires repositories, services and optional upstream
// integrations into one container shared by the CLI and the HTTP API.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/gcal"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/llm"
	"github.com/alexanderramin/cadence/internal/monitor"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Log    *zap.Logger
	Clock  clock.Clock

	Tasks    service.TaskService
	Schedule service.ScheduleService
	Plans    service.PlanService
	Replan   service.ReplanService
	Profiles service.ProfileService
	Import   service.ImportService
	Monitor  *monitor.Monitor

	// IsInteractive reports whether stdin is a terminal.
	IsInteractive func() bool

	db *sql.DB
}

type Option func(*options)

type options struct {
	clock    clock.Clock
	exporter service.CalendarExporter
	llm      llm.LLMClient
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithCalendarExporter overrides the exporter built from the calendar
// settings.
func WithCalendarExporter(e service.CalendarExporter) Option {
	return func(o *options) { o.exporter = e }
}

// WithLLMClient overrides the model client built from the llm settings.
// The intelligence services are wired whenever a client is given.
func WithLLMClient(c llm.LLMClient) Option { return func(o *options) { o.llm = c } }

// New opens the database at cfg.DBPath and wires every service.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*App, error) {
	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tasks := repository.NewSQLiteTaskRepo(database)
	intervals := repository.NewSQLiteIntervalRepo(database)
	profiles := repository.NewSQLiteProfileRepo(database)
	plans := repository.NewSQLitePlanRepo(database)
	completions := repository.NewSQLiteCompletionRepo(database)
	uow := db.NewSQLiteUnitOfWork(database)

	locks := service.NewUserLocks()
	svcOpts := []service.Option{
		service.WithClock(o.clock),
		service.WithLogger(log),
		service.WithLocks(locks),
		service.WithObserver(service.NewZapUseCaseObserver(log)),
		service.WithLearningParams(cfg.LearningParams()),
		service.WithBiasThreshold(cfg.Planner.BiasThreshold),
		service.WithHorizonDays(cfg.Planner.HorizonDays),
	}

	var (
		interpreter intelligence.ScheduleInterpreter
		reviewer    intelligence.PlanReviewer
		parser      intelligence.ReviewParser
	)
	client := o.llm
	llmCfg := cfg.LLMClientConfig()
	var observer llm.Observer = llm.NoopObserver{}
	if llmCfg.LogCalls {
		observer = llm.NewZapObserver(log.Named("llm"))
	}
	if client == nil && llmCfg.Enabled {
		client = llm.NewOllamaClient(llmCfg, observer)
	}
	if client != nil {
		interpreter = intelligence.NewScheduleInterpreter(client, observer, llmCfg.CacheSize, cfg.LLM.CacheTTL)
		reviewer = intelligence.NewPlanReviewer(client, observer)
		parser = intelligence.NewReviewParser(client, observer)
	}

	exporter := o.exporter
	if exporter == nil && cfg.Calendar.Enabled {
		exp, err := gcal.NewFromCredentialsFile(ctx, cfg.Calendar.CredentialsPath, cfg.Calendar.TokenPath, cfg.Calendar.CalendarID)
		if err != nil {
			// Export is best-effort; planning works without it.
			log.Warn("calendar export disabled", zap.Error(err))
		} else {
			exporter = exp
		}
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Clock:    o.clock,
		Tasks:    service.NewTaskService(tasks, uow, svcOpts...),
		Schedule: service.NewScheduleService(intervals, profiles, interpreter, uow, svcOpts...),
		Plans:    service.NewPlanService(tasks, intervals, profiles, plans, reviewer, exporter, uow, svcOpts...),
		Replan:   service.NewReplanService(tasks, intervals, profiles, plans, uow, svcOpts...),
		Profiles: service.NewProfileService(profiles, completions, parser, uow, svcOpts...),
		Import:   service.NewImportService(profiles, uow, svcOpts...),
		Monitor: monitor.New(tasks, o.clock, cfg.MonitorConfig(),
			monitor.WithLogger(log.Named("monitor")), monitor.WithLocker(locks),
			monitor.WithSeenStore(repository.NewSQLiteMonitorFlagRepo(database))),
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
		db: database,
	}
	return a, nil
}

// Close releases the database.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
