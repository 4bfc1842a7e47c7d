package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/internal/realtime"
)

// Store persists notifications.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

// Notifier is the entry point other modules use to notify a user: it
// persists the notice and fans it out to the user's live notification
// connections. A user with no live connection simply finds the notice on
// next fetch.
type Notifier struct {
	store  Store
	fanout *realtime.Fanout
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(store Store, fanout *realtime.Fanout, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{store: store, fanout: fanout, logger: logger}
}

// Push stores a notification and delivers it to the user's connections.
func (n *Notifier) Push(ctx context.Context, userID uuid.UUID, kind, title, body string) (*models.Notification, error) {
	notif := &models.Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	}
	if err := n.store.Insert(ctx, notif); err != nil {
		return nil, err
	}

	n.fanout.Publish(realtime.Event{
		Channel:     realtime.ChannelNotifications,
		Kind:        realtime.EventNewNotification,
		TargetUsers: []uuid.UUID{userID},
		Payload:     realtime.NewNotificationPayload{Notification: notif},
	})
	if count, err := n.store.UnreadCount(ctx, userID); err == nil {
		n.fanout.Publish(realtime.Event{
			Channel:     realtime.ChannelNotifications,
			Kind:        realtime.EventUnreadCount,
			TargetUsers: []uuid.UUID{userID},
			Payload:     realtime.UnreadCountPayload{Count: count},
		})
	} else {
		n.logger.Warn("unread count failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
	return notif, nil
}
