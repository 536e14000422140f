package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-backoffice/pkg/jobs"
	"github.com/noah-isme/sma-backoffice/pkg/storage"
)

const jobTypeDeleteFile = "delete_file"

// FileJanitor retries removal of stored files whose inline delete failed, so
// orphaned uploads and files of archived documents do not accumulate.
type FileJanitor struct {
	queue   *jobs.Queue
	storage storage.FileStorage
	logger  *zap.Logger
}

// NewFileJanitor builds a janitor over files. Call Start before scheduling.
func NewFileJanitor(files storage.FileStorage, cfg jobs.QueueConfig, logger *zap.Logger) *FileJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	j := &FileJanitor{storage: files, logger: logger}
	j.queue = jobs.NewQueue("file-janitor", j.handle, cfg)
	return j
}

// Start launches the workers.
func (j *FileJanitor) Start(ctx context.Context) { j.queue.Start(ctx) }

// Stop waits for workers to exit.
func (j *FileJanitor) Stop() { j.queue.Stop() }

// Schedule queues key for deletion. Failures to queue are logged only.
func (j *FileJanitor) Schedule(key string) {
	if j == nil || key == "" {
		return
	}
	if err := j.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: jobTypeDeleteFile, Payload: key}); err != nil {
		j.logger.Warn("failed to schedule file cleanup", zap.String("file_path", key), zap.Error(err))
	}
}

func (j *FileJanitor) handle(ctx context.Context, job jobs.Job) error {
	err := j.storage.Delete(ctx, job.Payload)
	if err == nil || errors.Is(err, storage.ErrFileNotFound) {
		j.logger.Debug("removed stored file", zap.String("file_path", job.Payload), zap.Int("attempt", job.Attempt))
		return nil
	}
	return err
}
