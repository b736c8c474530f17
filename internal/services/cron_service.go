package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// jobTimeout bounds a single scheduled run
const jobTimeout = 2 * time.Minute

// CronService manages scheduled background jobs
type CronService struct {
	cron           *cron.Cron
	reconciliation *ReconciliationService
	refundSpec     string
	logger         *logrus.Logger
}

// NewCronService creates a new CronService. refundSpec is a standard five-field cron expression.
func NewCronService(reconciliation *ReconciliationService, refundSpec string, logger *logrus.Logger) *CronService {
	return &CronService{
		cron:           cron.New(),
		reconciliation: reconciliation,
		refundSpec:     refundSpec,
		logger:         logger,
	}
}

// Start schedules the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.refundSpec, s.refundReconcileJob); err != nil {
		return fmt.Errorf("failed to schedule refund reconciliation job: %w", err)
	}
	s.logger.WithField("spec", s.refundSpec).Info("Scheduled: refund reconciliation")

	// 3:30 AM daily
	if _, err := s.cron.AddFunc("30 3 * * *", s.reservationAuditJob); err != nil {
		return fmt.Errorf("failed to schedule reservation audit job: %w", err)
	}
	s.logger.Info("Scheduled: reservation audit (daily at 3:30 AM)")

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	<-s.cron.Stop().Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) refundReconcileJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	count, err := s.reconciliation.ReportPendingRefunds(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Refund reconciliation failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"pending_refunds": count,
		"duration":        time.Since(start).String(),
	}).Info("[CRON] Refund reconciliation finished")
}

func (s *CronService) reservationAuditJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	count, err := s.reconciliation.ReportReservationViolations(ctx)
	if err != nil {
		s.logger.WithError(err).Error("[CRON] Reservation audit failed")
		return
	}
	s.logger.WithField("violations", count).Info("[CRON] Reservation audit finished")
}

// Schedule adds an extra job; call it before Start
func (s *CronService) Schedule(spec, name string, job func()) error {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Scheduled job")
	return nil
}

// RunRefundReconcileNow runs the refund job immediately
func (s *CronService) RunRefundReconcileNow() {
	s.refundReconcileJob()
}
