package notifications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brightlearn/backend/internal/middleware"
	"github.com/brightlearn/backend/pkg/response"
)

// PushRequest is the body for POST /notifications (internal modules and
// admins, e.g. a payment-completion hook).
type PushRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Kind   string    `json:"kind" binding:"required"`
	Title  string    `json:"title" binding:"required"`
	Body   string    `json:"body"`
}

// Handler handles notification HTTP endpoints.
type Handler struct {
	notifier *Notifier
	store    Store
}

// NewHandler creates a notification handler.
func NewHandler(notifier *Notifier, store Store) *Handler {
	return &Handler{notifier: notifier, store: store}
}

// Push handles POST /notifications (admin only).
func (h *Handler) Push(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	notif, err := h.notifier.Push(c.Request.Context(), req.UserID, req.Kind, req.Title, req.Body)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, notif)
}

// List handles GET /notifications for the caller.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	list, err := h.store.ListByUser(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Internal(c, "failed to list notifications")
		return
	}
	response.OK(c, list)
}
