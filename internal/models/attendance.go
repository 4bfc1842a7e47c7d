package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityEntry is one timestamped action in an attendance activity log.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"` // joined, left, rejoined
}

// AttendanceRecord is the durable record of one user's presence in one
// session. There is one record per (session, user): leaving and rejoining
// reopens the same record instead of creating a second one.
type AttendanceRecord struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	UserID          uuid.UUID       `json:"user_id"`
	CourseRef       string          `json:"course_ref,omitempty"`
	JoinedAt        time.Time       `json:"joined_at"`
	LeftAt          *time.Time      `json:"left_at,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	Present         bool            `json:"present"`
	ActivityLog     []ActivityEntry `json:"activity_log"`
	CreatedAt       time.Time       `json:"created_at"`
}
