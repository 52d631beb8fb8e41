package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/domain"
	"github.com/fastygo/taskplanner/internal/infrastructure/buffer"
	"github.com/fastygo/taskplanner/repository"
	"github.com/fastygo/taskplanner/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// DeadRetention bounds how long dead-lettered events are kept.
	DeadRetention time.Duration
}

// EventProcessor accepts task events from the use cases and delivers them to the
// event log. With an outbox the events are persisted first and delivered by a
// cron-driven drain; without one they are written through directly.
type EventProcessor struct {
	outbox  *buffer.Outbox
	events  repository.EventRepository
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig

	drainMu sync.Mutex
}

var _ usecase.EventSink = (*EventProcessor)(nil)

func NewEventProcessor(
	outbox *buffer.Outbox,
	events repository.EventRepository,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *EventProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DeadRetention <= 0 {
		cfg.DeadRetention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ep := &EventProcessor{
		outbox:  outbox,
		events:  events,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ep.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := ep.Drain(ctx); err != nil {
			ep.logger.Error("outbox drain failed", zap.Error(err))
		}
	})
	_, _ = ep.cron.AddFunc("@hourly", func() {
		if err := ep.outbox.Cleanup(time.Now().Add(-cfg.DeadRetention)); err != nil {
			ep.logger.Warn("outbox cleanup failed", zap.Error(err))
		}
	})

	return ep
}

// Start launches the cron scheduler.
func (ep *EventProcessor) Start() {
	if ep == nil || ep.outbox == nil {
		return
	}
	ep.cron.Start()
	ep.logger.Info("event processor started", zap.Duration("interval", ep.cfg.Interval))
}

// Stop halts the scheduler and makes a final drain attempt.
func (ep *EventProcessor) Stop(ctx context.Context) error {
	if ep == nil || ep.outbox == nil {
		return nil
	}
	stopCtx := ep.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := ep.Drain(ctx)
	ep.logger.Info("event processor stopped")
	return err
}

// Record implements usecase.EventSink.
func (ep *EventProcessor) Record(ctx context.Context, event domain.Event) error {
	if ep == nil {
		return nil
	}
	if ep.outbox == nil {
		if ep.events == nil {
			return nil
		}
		return ep.events.Append(ctx, event)
	}
	return ep.outbox.Enqueue(event)
}

// Drain delivers up to one batch of pending events and returns how many were delivered.
func (ep *EventProcessor) Drain(ctx context.Context) (int, error) {
	if ep == nil || ep.outbox == nil || ep.events == nil {
		return 0, nil
	}
	if ep.monitor != nil && !ep.monitor.IsOnline() {
		ep.logger.Debug("skipping outbox drain (offline)")
		return 0, nil
	}

	ep.drainMu.Lock()
	defer ep.drainMu.Unlock()

	entries, err := ep.outbox.Peek(ep.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	var (
		delivered []buffer.Entry
		errs      error
	)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = errors.Join(errs, err)
			break
		}
		if err := ep.events.Append(ctx, entry.Event); err != nil {
			dead, failErr := ep.outbox.Fail(entry, err, ep.cfg.MaxRetries)
			if failErr != nil {
				errs = errors.Join(errs, failErr)
			}
			if dead {
				ep.logger.Warn("event moved to dead letter (max retries reached)",
					zap.String("event_id", entry.Event.ID),
					zap.String("event", entry.Event.Name),
					zap.Error(err))
			} else {
				ep.logger.Debug("event delivery failed",
					zap.String("event_id", entry.Event.ID),
					zap.Int("attempts", entry.Attempts+1),
					zap.Error(err))
			}
			continue
		}
		delivered = append(delivered, entry)
	}

	if err := ep.outbox.Ack(delivered...); err != nil {
		errs = errors.Join(errs, err)
	}
	return len(delivered), errs
}

// Size returns the number of pending events.
func (ep *EventProcessor) Size() int {
	if ep == nil || ep.outbox == nil {
		return 0
	}
	size, err := ep.outbox.Size()
	if err != nil {
		return 0
	}
	return size
}
