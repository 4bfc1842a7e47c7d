package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/pkg/queue"
)

// Store persists live sessions.
type Store interface {
	Create(ctx context.Context, s *models.LiveSession) error
	Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error)
	List(ctx context.Context, ownerID *uuid.UUID) ([]models.LiveSession, error)
	AddAttendee(ctx context.Context, sessionID, userID uuid.UUID) error
	RemoveAttendee(ctx context.Context, sessionID, userID uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, startedAt, endedAt *time.Time, recordingURL *string) error
}

// AttendanceStore persists attendance records.
type AttendanceStore interface {
	RecordJoin(ctx context.Context, sessionID, userID uuid.UUID, courseRef string, at time.Time) error
	RecordLeave(ctx context.Context, sessionID, userID uuid.UUID, at time.Time) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error)
}

// Enqueuer hands failed attendance writes to the reconciliation queue.
type Enqueuer interface {
	EnqueueAttendanceReconcile(ctx context.Context, payload queue.AttendancePayload) error
}

// Notifier pushes a persistent notice to one user.
type Notifier interface {
	Push(ctx context.Context, userID uuid.UUID, kind, title, body string) (*models.Notification, error)
}

// CreateSpec is the input for scheduling a session.
type CreateSpec struct {
	Title           string             `json:"title"`
	CourseRef       string             `json:"course_ref"`
	Type            models.SessionType `json:"type"`
	ScheduledAt     time.Time          `json:"scheduled_at"`
	DurationMinutes int                `json:"duration_minutes"`
	MaxAttendees    int                `json:"max_attendees"`
}

// Service is the live-session state machine. All mutating operations on one
// session are serialized through a per-session lock so the capacity check in
// Join is check-then-act safe; different sessions never contend.
type Service struct {
	store      Store
	attendance AttendanceStore
	recQueue   Enqueuer
	notifier   Notifier
	logger     *zap.Logger

	joinWindow  time.Duration
	minDuration time.Duration
	now         func() time.Time

	locks keyedMutex
}

// NewService creates a session lifecycle service. recQueue and notifier may
// be nil (attendance failures are then only logged, and no notices are sent).
func NewService(store Store, attendance AttendanceStore, recQueue Enqueuer, notifier Notifier, joinWindowMinutes, minDurationMinutes int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		attendance:  attendance,
		recQueue:    recQueue,
		notifier:    notifier,
		logger:      logger,
		joinWindow:  time.Duration(joinWindowMinutes) * time.Minute,
		minDuration: time.Duration(minDurationMinutes) * time.Minute,
		now:         time.Now,
	}
}

// Create schedules a new session owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, spec CreateSpec) (*models.LiveSession, error) {
	if spec.Title == "" {
		return nil, domain.Validationf("title is required")
	}
	if !spec.ScheduledAt.After(s.now()) {
		return nil, domain.Validationf("scheduled_at must be in the future")
	}
	if time.Duration(spec.DurationMinutes)*time.Minute < s.minDuration {
		return nil, domain.Validationf("duration must be at least %d minutes", int(s.minDuration.Minutes()))
	}
	if spec.MaxAttendees <= 0 {
		return nil, domain.Validationf("max_attendees must be positive")
	}
	if spec.Type == "" {
		spec.Type = models.SessionClass
	}

	secret, err := newMeetingSecret()
	if err != nil {
		return nil, err
	}
	session := &models.LiveSession{
		Title:           spec.Title,
		OwnerID:         ownerID,
		CourseRef:       spec.CourseRef,
		Type:            spec.Type,
		Status:          models.SessionScheduled,
		ScheduledAt:     spec.ScheduledAt,
		DurationMinutes: spec.DurationMinutes,
		MaxAttendees:    spec.MaxAttendees,
		MeetingID:       uuid.New().String(),
		MeetingSecret:   secret,
		Attendees:       []uuid.UUID{},
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns one session.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.LiveSession, error) {
	return s.store.Get(ctx, id)
}

// List returns sessions, optionally filtered by owner.
func (s *Service) List(ctx context.Context, ownerID *uuid.UUID) ([]models.LiveSession, error) {
	return s.store.List(ctx, ownerID)
}

// Join admits userID into the session. Re-joining is idempotent: a current
// member is never rejected for capacity and never counted twice. The owner's
// first join of a scheduled session starts it.
func (s *Service) Join(ctx context.Context, sessionID, userID uuid.UUID) (*models.LiveSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	switch session.Status {
	case models.SessionCancelled:
		return nil, domain.InvalidStatef("session is cancelled")
	case models.SessionEnded:
		return nil, domain.InvalidStatef("session has ended")
	}
	if session.Status == models.SessionScheduled && now.Before(session.ScheduledAt.Add(-s.joinWindow)) {
		return nil, domain.TooEarlyf("session opens at %s", session.ScheduledAt.Add(-s.joinWindow).Format(time.RFC3339))
	}

	if !session.HasAttendee(userID) {
		if len(session.Attendees) >= session.MaxAttendees {
			return nil, domain.Fullf("session is full (%d/%d)", len(session.Attendees), session.MaxAttendees)
		}
		if err := s.store.AddAttendee(ctx, sessionID, userID); err != nil {
			return nil, err
		}
		session.Attendees = append(session.Attendees, userID)
		s.recordAttendance(ctx, queue.AttendancePayload{
			SessionID: sessionID,
			UserID:    userID,
			CourseRef: session.CourseRef,
			Action:    queue.AttendanceJoin,
			At:        now,
		})
	}

	if userID == session.OwnerID && session.Status == models.SessionScheduled {
		if err := s.store.SetStatus(ctx, sessionID, models.SessionLive, &now, nil, nil); err != nil {
			return nil, err
		}
		session.Status = models.SessionLive
		session.StartedAt = &now
		s.notifyAttendees(ctx, session, "session_started", session.Title, "The session is now live.")
	}
	return session, nil
}

// Leave removes userID from the attendee set. The attendance record keeps
// its history; only its leave time is updated. Leaving a session one is not
// in is a no-op.
func (s *Service) Leave(ctx context.Context, sessionID, userID uuid.UUID) (*models.LiveSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.HasAttendee(userID) {
		return session, nil
	}
	if err := s.store.RemoveAttendee(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	remaining := session.Attendees[:0]
	for _, id := range session.Attendees {
		if id != userID {
			remaining = append(remaining, id)
		}
	}
	session.Attendees = remaining
	s.recordAttendance(ctx, queue.AttendancePayload{
		SessionID: sessionID,
		UserID:    userID,
		Action:    queue.AttendanceLeave,
		At:        s.now(),
	})
	return session, nil
}

// Start transitions a scheduled session to live. Owner only.
func (s *Service) Start(ctx context.Context, sessionID, callerID uuid.UUID) (*models.LiveSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, domain.AccessDeniedf("only the session owner can start it")
	}
	if session.Status != models.SessionScheduled {
		return nil, domain.InvalidStatef("cannot start a %s session", session.Status)
	}
	now := s.now()
	if err := s.store.SetStatus(ctx, sessionID, models.SessionLive, &now, nil, nil); err != nil {
		return nil, err
	}
	session.Status = models.SessionLive
	session.StartedAt = &now
	s.notifyAttendees(ctx, session, "session_started", session.Title, "The session is now live.")
	return session, nil
}

// End transitions a live session to ended, optionally attaching a recording
// URL. Owner only; a session that is not live cannot be ended.
func (s *Service) End(ctx context.Context, sessionID, callerID uuid.UUID, recordingURL *string) (*models.LiveSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, domain.AccessDeniedf("only the session owner can end it")
	}
	if session.Status != models.SessionLive {
		return nil, domain.InvalidStatef("cannot end a %s session", session.Status)
	}
	now := s.now()
	if err := s.store.SetStatus(ctx, sessionID, models.SessionEnded, nil, &now, recordingURL); err != nil {
		return nil, err
	}
	session.Status = models.SessionEnded
	session.EndedAt = &now
	session.RecordingURL = recordingURL
	s.notifyAttendees(ctx, session, "session_ended", session.Title, "The session has ended.")
	return session, nil
}

// Cancel transitions a scheduled session to cancelled. A live session must
// be ended, not cancelled.
func (s *Service) Cancel(ctx context.Context, sessionID, callerID uuid.UUID) (*models.LiveSession, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OwnerID != callerID {
		return nil, domain.AccessDeniedf("only the session owner can cancel it")
	}
	if session.Status == models.SessionLive {
		return nil, domain.InvalidStatef("a live session must be ended, not cancelled")
	}
	if session.Status.Terminal() {
		return nil, domain.InvalidStatef("cannot cancel a %s session", session.Status)
	}
	if err := s.store.SetStatus(ctx, sessionID, models.SessionCancelled, nil, nil, nil); err != nil {
		return nil, err
	}
	session.Status = models.SessionCancelled
	s.notifyAttendees(ctx, session, "session_cancelled", session.Title, "The session was cancelled.")
	return session, nil
}

// Stats returns attendance and duration figures for one session.
func (s *Service) Stats(ctx context.Context, sessionID uuid.UUID) (*models.SessionStats, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	stats := &models.SessionStats{
		SessionID:        session.ID,
		Status:           session.Status,
		AttendeeCount:    len(session.Attendees),
		MaxAttendees:     session.MaxAttendees,
		ScheduledMinutes: session.DurationMinutes,
	}
	if session.MaxAttendees > 0 {
		stats.CapacityPercent = float64(len(session.Attendees)) / float64(session.MaxAttendees) * 100
	}
	if session.StartedAt != nil {
		end := s.now()
		if session.EndedAt != nil {
			end = *session.EndedAt
		}
		stats.ActualMinutes = int(end.Sub(*session.StartedAt).Minutes())
	}
	return stats, nil
}

// Attendance returns the attendance records of one session.
func (s *Service) Attendance(ctx context.Context, sessionID uuid.UUID) ([]models.AttendanceRecord, error) {
	if _, err := s.store.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.attendance.ListBySession(ctx, sessionID)
}

// recordAttendance applies the attendance side effect with one retry. On
// repeated failure the admission stands; the write is queued for out-of-band
// reconciliation instead of failing the join.
func (s *Service) recordAttendance(ctx context.Context, p queue.AttendancePayload) {
	write := func() error {
		if p.Action == queue.AttendanceJoin {
			return s.attendance.RecordJoin(ctx, p.SessionID, p.UserID, p.CourseRef, p.At)
		}
		return s.attendance.RecordLeave(ctx, p.SessionID, p.UserID, p.At)
	}
	err := write()
	if err != nil {
		err = write()
	}
	if err == nil {
		return
	}
	s.logger.Error("attendance write failed",
		zap.Error(err),
		zap.String("session_id", p.SessionID.String()),
		zap.String("user_id", p.UserID.String()),
		zap.String("action", string(p.Action)))
	if s.recQueue != nil {
		if qErr := s.recQueue.EnqueueAttendanceReconcile(ctx, p); qErr != nil {
			s.logger.Error("attendance reconcile enqueue failed", zap.Error(qErr))
		}
	}
}

func (s *Service) notifyAttendees(ctx context.Context, session *models.LiveSession, kind, title, body string) {
	if s.notifier == nil {
		return
	}
	for _, userID := range session.Attendees {
		if userID == session.OwnerID {
			continue
		}
		if _, err := s.notifier.Push(ctx, userID, kind, title, body); err != nil {
			s.logger.Warn("session notice failed",
				zap.Error(err),
				zap.String("session_id", session.ID.String()),
				zap.String("user_id", userID.String()))
		}
	}
}

func newMeetingSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// keyedMutex serializes work per session ID. Entries are reference counted
// and removed when the last holder unlocks, so the map does not grow with
// the number of sessions ever seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id uuid.UUID) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*lockEntry)
	}
	e := k.locks[id]
	if e == nil {
		e = &lockEntry{}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
