package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of a live session.
// Transitions are monotonic: scheduled -> live -> ended, or
// scheduled|live -> cancelled. Nothing leaves ended or cancelled.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionEnded     SessionStatus = "ended"
	SessionCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionEnded || s == SessionCancelled
}

// SessionType classifies a live session.
type SessionType string

const (
	SessionClass    SessionType = "class"
	SessionWebinar  SessionType = "webinar"
	SessionOneOnOne SessionType = "one_on_one"
	SessionGroup    SessionType = "group"
)

// LiveSession represents one scheduled or ongoing meeting.
type LiveSession struct {
	ID              uuid.UUID     `json:"id"`
	Title           string        `json:"title"`
	OwnerID         uuid.UUID     `json:"owner_id"`
	CourseRef       string        `json:"course_ref,omitempty"`
	Type            SessionType   `json:"type"`
	Status          SessionStatus `json:"status"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	MaxAttendees    int           `json:"max_attendees"`
	Attendees       []uuid.UUID   `json:"attendees"`
	MeetingID       string        `json:"meeting_id"`
	MeetingSecret   string        `json:"-"`
	RecordingURL    *string       `json:"recording_url,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasAttendee reports whether userID is currently in the attendee set.
func (s *LiveSession) HasAttendee(userID uuid.UUID) bool {
	for _, id := range s.Attendees {
		if id == userID {
			return true
		}
	}
	return false
}

// SessionStats summarizes attendance and duration for one session.
type SessionStats struct {
	SessionID        uuid.UUID     `json:"session_id"`
	Status           SessionStatus `json:"status"`
	AttendeeCount    int           `json:"attendee_count"`
	MaxAttendees     int           `json:"max_attendees"`
	CapacityPercent  float64       `json:"capacity_percent"`
	ScheduledMinutes int           `json:"scheduled_minutes"`
	ActualMinutes    int           `json:"actual_minutes"`
}
