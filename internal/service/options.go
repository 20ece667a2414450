package service

import (
	"context"
	"time"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/learning"
	"github.com/alexanderramin/cadence/internal/scheduler"
	"go.uber.org/zap"
)

// Option configures the ambient collaborators shared by every service.
type Option func(*env)

type env struct {
	clock         clock.Clock
	log           *zap.Logger
	locks         *UserLocks
	observer      UseCaseObserver
	params        learning.Params
	biasThreshold float64
	horizonDays   int
}

// WithClock sets the time source. Defaults to the wall clock.
func WithClock(c clock.Clock) Option { return func(e *env) { e.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(e *env) { e.log = l } }

// WithLocks shares one per-user lock table between services. Services that
// mutate the same user's data must share it.
func WithLocks(l *UserLocks) Option { return func(e *env) { e.locks = l } }

func WithObserver(o UseCaseObserver) Option { return func(e *env) { e.observer = o } }

func WithLearningParams(p learning.Params) Option { return func(e *env) { e.params = p } }

func WithBiasThreshold(t float64) Option { return func(e *env) { e.biasThreshold = t } }

// WithHorizonDays sets the default planning window length.
func WithHorizonDays(days int) Option { return func(e *env) { e.horizonDays = days } }

func newEnv(opts []Option) env {
	e := env{
		clock:         clock.Real(),
		log:           zap.NewNop(),
		params:        learning.DefaultParams(),
		biasThreshold: scheduler.DefaultBiasThreshold,
		horizonDays:   7,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.locks == nil {
		e.locks = NewUserLocks()
	}
	if e.observer == nil {
		e.observer = NoopUseCaseObserver{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e
}

func (e *env) now() time.Time { return e.clock.Now().UTC() }

// observe reports a finished use case. Call it deferred with a pointer to
// the named error result.
func (e *env) observe(ctx context.Context, name, userID string, startedAt time.Time, fields map[string]any, err *error) {
	var failure error
	if err != nil {
		failure = *err
	}
	e.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		UserID:    userID,
		StartedAt: startedAt,
		Duration:  e.clock.Now().Sub(startedAt),
		Success:   failure == nil,
		Err:       failure,
		Fields:    fields,
	})
}
