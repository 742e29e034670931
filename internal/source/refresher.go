package source

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/DoyleJ11/trivia-backend/internal/questions"
)

// Refresher periodically imports new questions from a source into the bank.
type Refresher struct {
	sched   gocron.Scheduler
	bank    *questions.Bank
	src     questions.Source
	log     *zap.Logger
	timeout time.Duration
}

func NewRefresher(ctx context.Context, bank *questions.Bank, src questions.Source, interval time.Duration, log *zap.Logger) (*Refresher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}

	r := &Refresher{sched: sched, bank: bank, src: src, log: log, timeout: time.Minute}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { r.Refresh(ctx) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("question-refresh"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}
	return r, nil
}

func (r *Refresher) Start() { r.sched.Start() }

func (r *Refresher) Shutdown() error { return r.sched.Shutdown() }

// Refresh runs one import and returns the number of questions added.
func (r *Refresher) Refresh(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	added, err := r.bank.Load(ctx, r.src)
	if err != nil {
		r.log.Warn("question refresh failed", zap.Error(err))
		return 0
	}
	r.log.Info("questions refreshed", zap.Int("added", added), zap.Int("total", r.bank.Len()))
	return added
}
