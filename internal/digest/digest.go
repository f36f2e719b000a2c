// Package digest builds and schedules the daily activity summary.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/mizajour/leadline/internal/models"
	"github.com/mizajour/leadline/internal/notify"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Scheduler fires a daily summary of inbound activity on a cron schedule and
// posts it to the configured notifiers.
type Scheduler struct {
	db       *gorm.DB
	notifier *notify.Multi
	cronExpr string
	logger   zerolog.Logger
}

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	DB       *gorm.DB
	Notifier *notify.Multi // optional; digest is logged either way
	CronExpr string
	Logger   zerolog.Logger
}

// NewScheduler creates a digest Scheduler.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("digest: db is required")
	}
	if opts.CronExpr == "" {
		return nil, fmt.Errorf("digest: cron expression is required")
	}
	if _, err := cronParser.Parse(opts.CronExpr); err != nil {
		return nil, fmt.Errorf("digest: parse cron expression %q: %w", opts.CronExpr, err)
	}
	return &Scheduler{
		db:       opts.DB,
		notifier: opts.Notifier,
		cronExpr: opts.CronExpr,
		logger:   opts.Logger.With().Str("component", "digest").Logger(),
	}, nil
}

// Run blocks until the context is cancelled, firing one digest per cron
// occurrence. Intended to run in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	d := nextCronDuration(s.cronExpr)
	if d <= 0 {
		s.logger.Warn().Str("cron", s.cronExpr).Msg("unschedulable cron expression, digest disabled")
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.fire(ctx)
			if d := nextCronDuration(s.cronExpr); d > 0 {
				timer.Reset(d)
			}
		}
	}
}

// fire builds and delivers one digest.
func (s *Scheduler) fire(ctx context.Context) {
	text, err := s.Build(time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("build digest")
		return
	}
	s.logger.Info().Str("digest", text).Msg("daily digest")
	if s.notifier != nil && s.notifier.Enabled() {
		s.notifier.Post(ctx, text)
	}
}

// Build summarizes the 24 hours leading up to now: new customers and inbound
// messages received.
func (s *Scheduler) Build(now time.Time) (string, error) {
	since := now.Add(-24 * time.Hour)

	var newCustomers int64
	if err := s.db.Model(&models.Customer{}).
		Where("created_at >= ?", since).
		Count(&newCustomers).Error; err != nil {
		return "", fmt.Errorf("digest: count customers: %w", err)
	}

	var inbound int64
	if err := s.db.Model(&models.Message{}).
		Where("sender = ? AND created_at >= ?", models.SenderCustomer, since).
		Count(&inbound).Error; err != nil {
		return "", fmt.Errorf("digest: count messages: %w", err)
	}

	return fmt.Sprintf("Daily digest: %d new customer(s), %d inbound message(s) in the last 24h.",
		newCustomers, inbound), nil
}
