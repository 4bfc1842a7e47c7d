package sessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightlearn/backend/internal/middleware"
	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/pkg/response"
)

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	Title           string `json:"title" binding:"required"`
	CourseRef       string `json:"course_ref"`
	Type            string `json:"type"`
	ScheduledAt     string `json:"scheduled_at" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"required"`
	MaxAttendees    int    `json:"max_attendees" binding:"required"`
}

// EndRequest is the body for POST /sessions/:id/end.
type EndRequest struct {
	RecordingURL *string `json:"recording_url"`
}

// Handler handles live-session HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a session handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Create handles POST /sessions (instructor or admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		response.BadRequest(c, "invalid scheduled_at")
		return
	}
	ownerID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	session, err := h.svc.Create(c.Request.Context(), ownerID, CreateSpec{
		Title:           req.Title,
		CourseRef:       req.CourseRef,
		Type:            models.SessionType(req.Type),
		ScheduledAt:     scheduledAt,
		DurationMinutes: req.DurationMinutes,
		MaxAttendees:    req.MaxAttendees,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, session)
}

// List handles GET /sessions. ?mine=true filters to the caller's sessions.
func (h *Handler) List(c *gin.Context) {
	var owner *uuid.UUID
	if c.Query("mine") == "true" {
		id := c.MustGet(middleware.ContextUserID).(uuid.UUID)
		owner = &id
	}
	list, err := h.svc.List(c.Request.Context(), owner)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Join handles POST /sessions/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	session, err := h.svc.Join(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Leave handles POST /sessions/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	session, err := h.svc.Leave(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	session, err := h.svc.Start(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// End handles POST /sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req EndRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	session, err := h.svc.End(c.Request.Context(), id, userID, req.RecordingURL)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Cancel handles POST /sessions/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	session, err := h.svc.Cancel(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, session)
}

// Stats handles GET /sessions/:id/stats.
func (h *Handler) Stats(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, stats)
}

// Attendance handles GET /sessions/:id/attendance (owner/admin views).
func (h *Handler) Attendance(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}
	records, err := h.svc.Attendance(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.OK(c, records)
}

func (h *Handler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
