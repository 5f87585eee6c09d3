// Package jobs contains the periodic jobs run by the scheduler.
package jobs

import (
	"context"
	"fmt"

	"github.com/alem-hub/student-tracker/pkg/logger"
)

// Exporter is the part of the tracker the backup job needs.
type Exporter interface {
	ExportToTxt(ctx context.Context, path string) (string, error)
}

// BackupJob writes the export file on a schedule.
type BackupJob struct {
	exporter Exporter
	path     string
	log      *logger.Logger
}

// NewBackupJob creates a backup job. An empty path uses the exporter's default.
func NewBackupJob(exporter Exporter, path string, log *logger.Logger) *BackupJob {
	if log == nil {
		log = logger.Nop()
	}
	return &BackupJob{
		exporter: exporter,
		path:     path,
		log:      log.With(logger.Component("backup_job")),
	}
}

// Name implements scheduler.Job.
func (j *BackupJob) Name() string { return "backup" }

// Description implements scheduler.Job.
func (j *BackupJob) Description() string {
	return "Writes every student as one JSON line to the backup file"
}

// Run implements scheduler.Job.
func (j *BackupJob) Run(ctx context.Context) error {
	written, err := j.exporter.ExportToTxt(ctx, j.path)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	j.log.Debug("backup written", logger.String("path", written))
	return nil
}
