// Package notify runs scheduled checks and delivers their results.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/maptrack/maptrack/internal/messenger"
	"github.com/maptrack/maptrack/internal/metrics"
	"github.com/maptrack/maptrack/internal/service"
	"github.com/maptrack/maptrack/internal/tracking"
	"github.com/maptrack/maptrack/internal/worker"
)

// Dispatcher is the timer-side consumer: each fired schedule entry becomes a
// pool job that runs the check and sends the outcome. Failures are logged
// and counted; nothing propagates back into the scheduler.
type Dispatcher struct {
	tracker *service.Tracker
	sender  messenger.Messenger
	pool    *worker.Pool
	ctx     context.Context
	log     *zap.Logger
}

// NewDispatcher builds a dispatcher whose jobs inherit ctx: cancelling it
// drains the timer work at shutdown.
func NewDispatcher(ctx context.Context, tracker *service.Tracker, sender messenger.Messenger, pool *worker.Pool, log *zap.Logger) *Dispatcher {
	return &Dispatcher{tracker: tracker, sender: sender, pool: pool, ctx: ctx, log: log}
}

// Fire is the schedule.FireFunc wired into the registry. It never blocks the
// scheduler longer than a pool-slot acquire and never panics out.
func (d *Dispatcher) Fire(subscriber int64, target tracking.Target) {
	err := d.pool.Submit(d.ctx, func(ctx context.Context) {
		d.run(ctx, subscriber, target)
	})
	if err != nil {
		metrics.ScheduledChecks.WithLabelValues("dropped").Inc()
		d.log.Warn("scheduled check dropped",
			zap.Int64("subscriber", subscriber),
			zap.String("target", target.ID),
			zap.Error(err))
	}
}

func (d *Dispatcher) run(ctx context.Context, subscriber int64, target tracking.Target) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ScheduledChecks.WithLabelValues("panic").Inc()
			d.log.Error("scheduled check panicked",
				zap.Int64("subscriber", subscriber),
				zap.String("target", target.ID),
				zap.Any("panic", r))
		}
	}()

	result, err := d.tracker.Check(ctx, subscriber, target)
	text := result.Message
	if err != nil {
		metrics.ScheduledChecks.WithLabelValues("error").Inc()
		d.log.Warn("scheduled check failed",
			zap.Int64("subscriber", subscriber),
			zap.String("target", target.ID),
			zap.Error(err))
		text = service.UserMessage(err)
	} else {
		metrics.ScheduledChecks.WithLabelValues("ok").Inc()
	}

	if err := d.sender.Send(ctx, subscriber, text, result.Actions); err != nil {
		metrics.ErrorsTotal.WithLabelValues("delivery").Inc()
		d.log.Error("scheduled notification delivery failed",
			zap.Int64("subscriber", subscriber),
			zap.Error(err))
	}
}
