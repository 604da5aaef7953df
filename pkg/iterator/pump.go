package iterator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/vigneswara-propelo/harness-core-sub203/pkg/logger"
)

// ProcessFunc is one pass of an iterator, usually Iterator.Process.
type ProcessFunc func(ctx context.Context) (int, error)

// PumpTrigger is the fixed-rate trigger of a PUMP iterator. Passes never overlap: a pass still running
// when the next tick fires makes the scheduler skip that tick.
type PumpTrigger struct {
	name      string
	interval  time.Duration
	scheduler gocron.Scheduler
	cancel    context.CancelFunc
	logger    *slog.Logger
}

// NewPump creates a trigger calling process every interval, the first time right after Start.
func NewPump(name string, interval time.Duration, process ProcessFunc, log *slog.Logger) (*PumpTrigger, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval=%s", ErrInvalidPoolOptions, interval)
	}
	if log == nil {
		log = slog.Default()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create pump scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := process(ctx); err != nil && ctx.Err() == nil {
				log.Error("pump pass failed", logger.Iterator(name), logger.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule pump %q: %w", name, err)
	}

	return &PumpTrigger{
		name:      name,
		interval:  interval,
		scheduler: scheduler,
		cancel:    cancel,
		logger:    log,
	}, nil
}

// Start begins triggering passes.
func (p *PumpTrigger) Start() {
	p.scheduler.Start()
	p.logger.Info("pump started", logger.Iterator(p.name), slog.Duration("interval", p.interval))
}

// Stop cancels the running pass, if any, and stops the scheduler.
func (p *PumpTrigger) Stop() error {
	p.cancel()
	if err := p.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop pump %q: %w", p.name, err)
	}
	p.logger.Info("pump stopped", logger.Iterator(p.name))
	return nil
}
