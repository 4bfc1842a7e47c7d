package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/pkg/queue"
)

// AttendanceStore is the subset of the attendance repository the reconciler
// needs to re-apply a missed write.
type AttendanceStore interface {
	RecordJoin(ctx context.Context, sessionID, userID uuid.UUID, courseRef string, at time.Time) error
	RecordLeave(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error
}

// AttendanceReconciler re-applies attendance writes that failed during a live
// session. Jobs land on the queue when the in-line write plus its retry both
// failed; the reconciler replays them against the store with the original
// timestamps so durations stay correct.
type AttendanceReconciler struct {
	store  AttendanceStore
	queue  *queue.Queue
	logger *zap.Logger
}

// NewAttendanceReconciler creates an attendance reconciliation worker.
func NewAttendanceReconciler(store AttendanceStore, q *queue.Queue, logger *zap.Logger) *AttendanceReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceReconciler{store: store, queue: q, logger: logger}
}

// Process executes one attendance reconciliation job.
func (r *AttendanceReconciler) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAttendanceReconcile {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AttendancePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	switch payload.Action {
	case queue.AttendanceJoin:
		if err := r.store.RecordJoin(ctx, payload.SessionID, payload.UserID, payload.CourseRef, payload.At); err != nil {
			return fmt.Errorf("record join: %w", err)
		}
	case queue.AttendanceLeave:
		if err := r.store.RecordLeave(ctx, payload.SessionID, payload.UserID, payload.At); err != nil {
			return fmt.Errorf("record leave: %w", err)
		}
	default:
		return fmt.Errorf("unknown attendance action: %s", payload.Action)
	}

	r.logger.Info("attendance reconciled",
		zap.String("session_id", payload.SessionID.String()),
		zap.String("user_id", payload.UserID.String()),
		zap.String("action", string(payload.Action)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *AttendanceReconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("attendance worker stopping")
			return
		default:
		}

		job, _, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("attendance worker stopping")
				return
			}
			r.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := r.Process(ctx, job); err != nil {
			r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := r.queue.Retry(ctx, job); reErr != nil {
				r.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
