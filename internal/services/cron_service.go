package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// CronService manages scheduled background jobs
type CronService struct {
	cron      *cron.Cron
	backupSvc *BackupService
	schedule  string
	logger    *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(backupSvc *BackupService, schedule string, logger *logrus.Logger) *CronService {
	// Seconds precision: "0 0 3 * * *" = 3:00 AM every day
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:      c,
		backupSvc: backupSvc,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start schedules the nightly backup job and starts the scheduler
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.backupJob)
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.logger.WithField("schedule", s.schedule).Info("Scheduled nightly backup job")

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// backupJob creates a backup and prunes expired archives
func (s *CronService) backupJob() {
	startTime := time.Now()
	s.logger.Info("Starting scheduled backup")

	info, err := s.backupSvc.Create()
	if err != nil {
		s.logger.WithError(err).Error("Scheduled backup failed")
		return
	}

	if err := s.backupSvc.Sweep(); err != nil {
		s.logger.WithError(err).Warn("Backup retention sweep failed")
	}

	s.logger.WithFields(logrus.Fields{
		"archive":  info.Name,
		"size":     info.Size,
		"duration": time.Since(startTime).String(),
	}).Info("Scheduled backup completed")
}

// RunBackupNow runs the backup job immediately
func (s *CronService) RunBackupNow() (*BackupInfo, error) {
	info, err := s.backupSvc.Create()
	if err != nil {
		return nil, err
	}
	if err := s.backupSvc.Sweep(); err != nil {
		s.logger.WithError(err).Warn("Backup retention sweep failed")
	}
	return info, nil
}

// JobStatus returns the scheduler state for the admin dashboard
func (s *CronService) JobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
