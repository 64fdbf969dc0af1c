package worker

import (
	"context"
	"time"

	"dripcast/engine"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler drives the two periodic entry points: the drip engine once
// a day and the reply pipeline every half hour. Both operations are
// idempotent, so an overlapping or repeated run is safe.
type Scheduler struct {
	cron    *cron.Cron
	drips   *engine.DripEngine
	replies *engine.ReplyPipeline
	logger  *logrus.Logger
}

func NewScheduler(drips *engine.DripEngine, replies *engine.ReplyPipeline, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		drips:   drips,
		replies: replies,
		logger:  logger,
	}
}

// Setup registers the scheduled jobs.
func (s *Scheduler) Setup() error {
	// Daily at 8 AM: initial emails for new contacts, then due drips.
	if _, err := s.cron.AddFunc("0 8 * * *", s.runDrips); err != nil {
		return err
	}

	// Every 30 minutes: poll the inbox for replies.
	if _, err := s.cron.AddFunc("*/30 * * * *", s.runReplies); err != nil {
		return err
	}
	return nil
}

func (s *Scheduler) runDrips() {
	s.logger.Info("running daily drip job")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	resolved, err := s.drips.ResolveIndustries(ctx)
	if err != nil {
		s.logger.Errorf("industry resolution pass failed: %v", err)
	}
	if resolved > 0 {
		s.logger.WithField("resolved", resolved).Info("industries resolved")
	}

	initial, err := s.drips.ProcessInitialEmails(ctx)
	if err != nil {
		s.logger.Errorf("initial email pass failed: %v", err)
	}
	sent, err := s.drips.ProcessDrips(ctx)
	if err != nil {
		s.logger.Errorf("drip pass failed: %v", err)
	}
	s.logger.WithFields(logrus.Fields{
		"initial": initial,
		"drips":   sent,
	}).Info("daily drip job completed")
}

func (s *Scheduler) runReplies() {
	s.logger.Info("running reply check job")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	count, err := s.replies.CheckReplies(ctx)
	if err != nil {
		s.logger.Errorf("reply check failed: %v", err)
		return
	}
	s.logger.WithField("processed", count).Info("reply check job completed")
}

// Start launches the cron loop and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started")
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("scheduler shutting down...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
