package reliability

import (
	"context"
	"time"
)

// jobTimeout bounds one backup upload.
const jobTimeout = 15 * time.Minute

// BackupJob adapts the backup service for the scheduler.
type BackupJob struct {
	service *BackupService
}

func NewBackupJob(service *BackupService) *BackupJob {
	return &BackupJob{service: service}
}

func (j *BackupJob) Name() string { return "weekly_backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.service.CreateAndUpload(ctx)
}
