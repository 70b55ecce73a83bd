// Package jobs holds the scheduled background work run by robfig/cron.
package jobs

import (
	"context"
	"fmt"
	"time"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/anjiri1684/campus_manager/metrics"
	"github.com/anjiri1684/campus_manager/notifications"
	"github.com/anjiri1684/campus_manager/services"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	jobTimeout = 2 * time.Minute

	notificationRetention = 7 * 24 * time.Hour
	reconcileAfter        = 10 * time.Minute
)

type Runner struct {
	db            *gorm.DB
	notifications *services.NotificationService
	payments      *services.PaymentService
	mailer        *notifications.Mailer
	log           logger.Logger
	now           func() time.Time
}

func NewRunner(db *gorm.DB, ns *services.NotificationService, ps *services.PaymentService, mailer *notifications.Mailer, log logger.Logger) *Runner {
	return &Runner{
		db:            db,
		notifications: ns,
		payments:      ps,
		mailer:        mailer,
		log:           log,
		now:           time.Now,
	}
}

// Schedule registers every job on c using the configured specs.
func (r *Runner) Schedule(c *cron.Cron, cfg config.JobsConfig) error {
	entries := []struct {
		name string
		spec string
		fn   func(context.Context) (int64, error)
	}{
		{"dispatch-scheduled-notifications", cfg.ScheduledDispatch, r.DispatchScheduled},
		{"purge-expired-notifications", cfg.PurgeNotifications, r.PurgeExpired},
		{"reconcile-pending-payments", cfg.ReconcilePayments, r.ReconcilePayments},
		{"mark-overdue-fees", cfg.OverdueFees, r.MarkOverdueFees},
	}
	for _, e := range entries {
		if e.spec == "" {
			continue
		}
		if _, err := c.AddFunc(e.spec, r.wrap(e.name, e.fn)); err != nil {
			return fmt.Errorf("schedule %s: %w", e.name, err)
		}
		r.log.Info("Job scheduled", map[string]interface{}{"job": e.name, "spec": e.spec})
	}
	return nil
}

func (r *Runner) wrap(name string, fn func(context.Context) (int64, error)) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := r.now()
		n, err := fn(ctx)
		fields := map[string]interface{}{"job": name, "affected": n, "duration": time.Since(start).String()}
		if err != nil {
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
			r.log.WithError(err).Error("Job failed", fields)
			return
		}
		metrics.JobRuns.WithLabelValues(name, "ok").Inc()
		if n > 0 {
			r.log.Info("Job finished", fields)
		} else {
			r.log.Debug("Job finished", fields)
		}
	}
}

func (r *Runner) DispatchScheduled(ctx context.Context) (int64, error) {
	n, err := r.notifications.DispatchDue(ctx)
	return int64(n), err
}

func (r *Runner) PurgeExpired(ctx context.Context) (int64, error) {
	return r.notifications.PurgeExpired(ctx, r.now().Add(-notificationRetention))
}

func (r *Runner) ReconcilePayments(ctx context.Context) (int64, error) {
	n, err := r.payments.ReconcilePending(ctx, reconcileAfter)
	return int64(n), err
}
