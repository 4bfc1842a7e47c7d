// Package attendance persists per-user attendance records for live sessions.
// There is one record per (session, user): a rejoin reopens the existing
// record rather than starting a second one.
package attendance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlearn/backend/internal/models"
)

// Repository handles attendance_records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordJoin creates the record on first join, or reopens it on rejoin:
// left_at is cleared, presence restored, and the activity log gains a
// rejoined entry. joined_at keeps the first join time.
func (r *Repository) RecordJoin(ctx context.Context, sessionID, userID uuid.UUID, courseRef string, at time.Time) error {
	joined, err := activityJSON(at, "joined")
	if err != nil {
		return err
	}
	rejoined, err := activityJSON(at, "rejoined")
	if err != nil {
		return err
	}
	const q = `INSERT INTO attendance_records (session_id, user_id, course_ref, joined_at, present, activity_log)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (session_id, user_id) DO UPDATE SET
			left_at = NULL,
			present = TRUE,
			activity_log = attendance_records.activity_log || $6`
	_, err = r.pool.Exec(ctx, q, sessionID, userID, courseRef, at, joined, rejoined)
	return err
}

// RecordLeave closes the record: sets left_at and recomputes the duration as
// left_at minus joined_at.
func (r *Repository) RecordLeave(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error {
	left, err := activityJSON(at, "left")
	if err != nil {
		return err
	}
	const q = `UPDATE attendance_records SET
			left_at = $1,
			present = FALSE,
			duration_minutes = GREATEST(0, EXTRACT(EPOCH FROM ($1::timestamptz - joined_at)) / 60)::INT,
			activity_log = activity_log || $2
		WHERE session_id = $3 AND user_id = $4`
	_, err = r.pool.Exec(ctx, q, at, left, sessionID, userID)
	return err
}

// ListBySession returns the attendance records of one session, earliest join first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	const q = `SELECT id, session_id, user_id, course_ref, joined_at, left_at, duration_minutes, present, activity_log, created_at
		FROM attendance_records WHERE session_id = $1 ORDER BY joined_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		var activity []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.CourseRef, &rec.JoinedAt, &rec.LeftAt,
			&rec.DurationMinutes, &rec.Present, &activity, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(activity, &rec.ActivityLog); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func activityJSON(at time.Time, action string) ([]byte, error) {
	return json.Marshal([]models.ActivityEntry{{Timestamp: at, Action: action}})
}
