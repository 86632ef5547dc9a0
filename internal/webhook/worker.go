package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 10
	defaultMaxBackoff   = 5 * time.Minute
)

// Worker retries queued deliveries with capped exponential backoff.
// Several processes may share one queue: jobs are claimed with
// FOR UPDATE SKIP LOCKED before they are delivered.
type Worker struct {
	db         DB
	service    *Service
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	maxBackoff time.Duration
	stopCh     chan struct{}
	stopOnce   sync.Once
}

type WorkerOption func(*Worker)

func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) { w.batchSize = n }
}

func WithMaxBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) { w.maxBackoff = d }
}

func NewWorker(db DB, service *Service, logger *slog.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		db:         db,
		service:    service,
		logger:     logger,
		interval:   defaultPollInterval,
		batchSize:  defaultBatchSize,
		maxBackoff: defaultMaxBackoff,
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("notification retry worker started", "interval", w.interval)
	defer w.logger.Info("notification retry worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.processQueue(ctx); err != nil {
				w.logger.Error("failed to process notification queue", "error", err)
			}
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Flush delivers due jobs batch by batch until none is left or ctx ends.
// Jobs that fail again are rescheduled, not retried inside Flush.
func (w *Worker) Flush(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := w.processQueue(ctx)
		if err != nil {
			return err
		}
		if n < w.batchSize {
			return nil
		}
	}
	return ctx.Err()
}

// processQueue handles one batch and reports how many jobs it claimed.
func (w *Worker) processQueue(ctx context.Context) (int, error) {
	jobs, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}

	for i := range jobs {
		if err := w.processJob(ctx, &jobs[i]); err != nil {
			w.logger.Error("failed to process notification job",
				"job_id", jobs[i].ID,
				"attempts", jobs[i].Attempts,
				"error", err,
			)
		}
	}

	return len(jobs), nil
}

// claim moves a batch of due jobs to 'delivering' so no other worker
// picks them up. Claims older than five minutes belong to a crashed
// process and are taken over. Rows are read in full before any HTTP call.
func (w *Worker) claim(ctx context.Context) ([]Job, error) {
	query := `
		UPDATE notification_queue
		SET status = 'delivering', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE (status = 'pending' AND next_retry_at <= NOW())
			   OR (status = 'delivering' AND updated_at < NOW() - INTERVAL '5 minutes')
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, attempts, max_attempts
	`

	rows, err := w.db.Query(ctx, query, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim notification jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.EventType, &job.Payload, &job.Attempts, &job.MaxAttempts); err != nil {
			return nil, fmt.Errorf("scan notification job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification jobs: %w", err)
	}

	return jobs, nil
}

func (w *Worker) processJob(ctx context.Context, job *Job) error {
	if err := w.service.deliver(ctx, job.EventType, job.Payload); err != nil {
		return w.scheduleRetry(ctx, job, err.Error())
	}
	return w.markDelivered(ctx, job.ID)
}

// backoff is 1s, 2s, 4s... capped at maxBackoff.
func (w *Worker) backoff(attempts int) time.Duration {
	if attempts > 20 {
		return w.maxBackoff
	}
	d := time.Duration(1<<attempts) * time.Second
	if d > w.maxBackoff {
		return w.maxBackoff
	}
	return d
}

func (w *Worker) scheduleRetry(ctx context.Context, job *Job, errorMsg string) error {
	if job.Attempts+1 >= job.MaxAttempts {
		return w.markFailed(ctx, job.ID, errorMsg)
	}

	nextRetry := time.Now().Add(w.backoff(job.Attempts))

	query := `
		UPDATE notification_queue
		SET attempts = attempts + 1,
		    next_retry_at = $1,
		    last_error = $2,
		    status = 'pending',
		    updated_at = NOW()
		WHERE id = $3
	`

	if _, err := w.db.Exec(ctx, query, nextRetry, errorMsg, job.ID); err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	w.logger.Info("notification rescheduled",
		"job_id", job.ID,
		"attempts", job.Attempts+1,
		"next_retry", nextRetry,
	)
	return nil
}

func (w *Worker) markDelivered(ctx context.Context, jobID uuid.UUID) error {
	query := `
		UPDATE notification_queue
		SET status = 'delivered', updated_at = NOW()
		WHERE id = $1
	`

	if _, err := w.db.Exec(ctx, query, jobID); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	w.logger.Info("queued notification delivered", "job_id", jobID)
	return nil
}

func (w *Worker) markFailed(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	query := `
		UPDATE notification_queue
		SET status = 'failed',
		    attempts = attempts + 1,
		    last_error = $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	if _, err := w.db.Exec(ctx, query, errorMsg, jobID); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	w.logger.Warn("notification abandoned", "job_id", jobID, "error", errorMsg)
	return nil
}
