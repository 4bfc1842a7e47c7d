package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
)

// Repository handles live-session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session.
func (r *Repository) Create(ctx context.Context, s *models.LiveSession) error {
	const q = `INSERT INTO live_sessions (title, owner_id, course_ref, type, status, scheduled_at, duration_minutes, max_attendees, meeting_id, meeting_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		s.Title, s.OwnerID, s.CourseRef, s.Type, s.Status, s.ScheduledAt, s.DurationMinutes, s.MaxAttendees, s.MeetingID, s.MeetingSecret).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Get returns a session by ID with its current attendee set.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	const q = `SELECT id, title, owner_id, course_ref, type, status, scheduled_at, started_at, ended_at, duration_minutes, max_attendees, meeting_id, meeting_secret, recording_url, created_at, updated_at
		FROM live_sessions WHERE id = $1`
	var s models.LiveSession
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.Title, &s.OwnerID, &s.CourseRef, &s.Type, &s.Status, &s.ScheduledAt, &s.StartedAt, &s.EndedAt,
		&s.DurationMinutes, &s.MaxAttendees, &s.MeetingID, &s.MeetingSecret, &s.RecordingURL, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT user_id FROM session_attendees WHERE session_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.Attendees = []uuid.UUID{}
	for rows.Next() {
		var userID uuid.UUID
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		s.Attendees = append(s.Attendees, userID)
	}
	return &s, rows.Err()
}

// List returns sessions, optionally filtered by owner, newest schedule first.
func (r *Repository) List(ctx context.Context, ownerID *uuid.UUID) ([]models.LiveSession, error) {
	base := `SELECT s.id, s.title, s.owner_id, s.course_ref, s.type, s.status, s.scheduled_at, s.started_at, s.ended_at, s.duration_minutes, s.max_attendees, s.meeting_id, s.meeting_secret, s.recording_url, s.created_at, s.updated_at
		FROM live_sessions s`
	var args []interface{}
	if ownerID != nil {
		base += ` WHERE s.owner_id = $1`
		args = append(args, *ownerID)
	}
	rows, err := r.pool.Query(ctx, base+` ORDER BY s.scheduled_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.LiveSession
	for rows.Next() {
		var s models.LiveSession
		if err := rows.Scan(
			&s.ID, &s.Title, &s.OwnerID, &s.CourseRef, &s.Type, &s.Status, &s.ScheduledAt, &s.StartedAt, &s.EndedAt,
			&s.DurationMinutes, &s.MaxAttendees, &s.MeetingID, &s.MeetingSecret, &s.RecordingURL, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// AddAttendee adds a user to the attendee set. Duplicate adds are a no-op.
func (r *Repository) AddAttendee(ctx context.Context, sessionID, userID uuid.UUID) error {
	const q = `INSERT INTO session_attendees (session_id, user_id) VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, sessionID, userID)
	return err
}

// RemoveAttendee removes a user from the attendee set.
func (r *Repository) RemoveAttendee(ctx context.Context, sessionID, userID uuid.UUID) error {
	const q = `DELETE FROM session_attendees WHERE session_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, sessionID, userID)
	return err
}

// SetStatus updates the lifecycle columns. Nil pointers leave the existing
// values in place.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, startedAt, endedAt *time.Time, recordingURL *string) error {
	const q = `UPDATE live_sessions SET
			status = $1,
			started_at = COALESCE($2, started_at),
			ended_at = COALESCE($3, ended_at),
			recording_url = COALESCE($4, recording_url),
			updated_at = NOW()
		WHERE id = $5`
	_, err := r.pool.Exec(ctx, q, status, startedAt, endedAt, recordingURL, id)
	return err
}
