package notifications

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/domain"
	"github.com/brightlearn/backend/internal/realtime"
)

// Inbound action names for the notifications channel.
const (
	ActionMarkAsRead       = "mark_as_read"
	ActionMarkAllRead      = "mark_all_read"
	ActionGetNotifications = "get_notifications"
)

type markAsReadReq struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

type getNotificationsReq struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Gateway is the notifications channel adapter.
type Gateway struct {
	store  Store
	fanout *realtime.Fanout
	logger *zap.Logger
}

// NewGateway creates the notifications gateway.
func NewGateway(store Store, fanout *realtime.Fanout, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{store: store, fanout: fanout, logger: logger}
}

// Channel implements realtime.ActionHandler.
func (g *Gateway) Channel() realtime.Channel { return realtime.ChannelNotifications }

// OnConnect pushes the current unread count so a reconnecting client can
// render its badge without an extra round trip.
func (g *Gateway) OnConnect(ctx context.Context, c *realtime.Conn) {
	count, err := g.store.UnreadCount(ctx, c.UserID())
	if err != nil {
		g.logger.Warn("unread count failed", zap.Error(err), zap.String("user_id", c.UserID().String()))
		return
	}
	c.Push(realtime.NewFrame(realtime.EventUnreadCount, realtime.UnreadCountPayload{Count: count}))
}

// OnDisconnect implements realtime.ActionHandler.
func (g *Gateway) OnDisconnect(ctx context.Context, c *realtime.Conn) {}

// HandleAction implements realtime.ActionHandler.
func (g *Gateway) HandleAction(ctx context.Context, c *realtime.Conn, f realtime.Frame) realtime.Frame {
	switch f.Event {
	case ActionMarkAsRead:
		return g.markAsRead(ctx, c, f.Data)
	case ActionMarkAllRead:
		return g.markAllRead(ctx, c)
	case ActionGetNotifications:
		return g.getNotifications(ctx, c, f.Data)
	default:
		return realtime.AckErr(f.Event, domain.Validationf("unknown notifications action %q", f.Event))
	}
}

func (g *Gateway) markAsRead(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req markAsReadReq
	if err := json.Unmarshal(data, &req); err != nil || req.NotificationID == uuid.Nil {
		return realtime.AckErr(ActionMarkAsRead, domain.Validationf("notification_id is required"))
	}
	if err := g.store.MarkRead(ctx, c.UserID(), req.NotificationID); err != nil {
		return realtime.AckErr(ActionMarkAsRead, err)
	}
	g.publishUnread(ctx, c.UserID())
	return realtime.AckOK(ActionMarkAsRead, nil)
}

func (g *Gateway) markAllRead(ctx context.Context, c *realtime.Conn) realtime.Frame {
	if err := g.store.MarkAllRead(ctx, c.UserID()); err != nil {
		return realtime.AckErr(ActionMarkAllRead, err)
	}
	g.publishUnread(ctx, c.UserID())
	return realtime.AckOK(ActionMarkAllRead, nil)
}

func (g *Gateway) getNotifications(ctx context.Context, c *realtime.Conn, data json.RawMessage) realtime.Frame {
	var req getNotificationsReq
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return realtime.AckErr(ActionGetNotifications, domain.Validationf("invalid pagination"))
		}
	}
	list, err := g.store.ListByUser(ctx, c.UserID(), req.Page, req.Limit)
	if err != nil {
		return realtime.AckErr(ActionGetNotifications, err)
	}
	return realtime.AckOK(ActionGetNotifications, list)
}

// publishUnread refreshes the badge on every device of the user, not just
// the one that acted.
func (g *Gateway) publishUnread(ctx context.Context, userID uuid.UUID) {
	count, err := g.store.UnreadCount(ctx, userID)
	if err != nil {
		g.logger.Warn("unread count failed", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}
	g.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelNotifications,
		Kind:        realtime.EventUnreadCount,
		TargetUsers: []uuid.UUID{userID},
		Payload:     realtime.UnreadCountPayload{Count: count},
	})
}
