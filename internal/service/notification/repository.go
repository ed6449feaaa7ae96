package notification

import (
	"context"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
)

// Repository defines the data access contract for notifications.
// Implementations must be safe for concurrent use.
type Repository interface {
	// RunInTx runs fn in one atomic unit of work. Repository calls made with
	// the context handed to fn join it.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockKey serialises concurrent units of work on the same key until the
	// surrounding transaction ends.
	LockKey(ctx context.Context, key string) error

	CreateNotification(ctx context.Context, n *domain.Notification) error

	// GetNotification returns ErrNotFound if the notification doesn't exist.
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)

	// NotificationExists reports whether a notification matching q exists.
	NotificationExists(ctx context.Context, q DedupQuery) (bool, error)

	// LatestNotification returns the most recent notification of type t whose
	// metadata matches, or nil when there is none.
	LatestNotification(ctx context.Context, t domain.NotificationType, match map[string]string) (*domain.Notification, error)

	// ListNotifications returns a recipient's notifications, newest first.
	ListNotifications(ctx context.Context, recipientID string, f ListFilter) ([]domain.Notification, error)

	MarkNotificationRead(ctx context.Context, id string, at time.Time) error

	NotificationStats(ctx context.Context, recipientID string) (domain.NotificationStats, error)

	// DeleteNotificationsBatch deletes at most limit notifications that were
	// read before readBefore or left unread since before unreadBefore.
	DeleteNotificationsBatch(ctx context.Context, readBefore, unreadBefore time.Time, limit int) (int64, error)
}

// Directory resolves recipients to mail addresses.
type Directory interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Mailer is the external delivery channel.
type Mailer interface {
	Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error)
}

// Renderer turns a notification into a subject and bodies.
type Renderer interface {
	RenderNotification(n *domain.Notification, recipient *domain.User) (subject, html, text string, err error)
}

// ListFilter controls pagination and filtering for inbox listing.
type ListFilter struct {
	UnreadOnly bool
	Type       domain.NotificationType
	Limit      int
	Offset     int
}

// DedupQuery selects earlier notifications of Type created at or after Since
// whose metadata holds every key/value in Match. An empty RecipientID
// matches any recipient.
type DedupQuery struct {
	Type        domain.NotificationType
	RecipientID string
	Match       map[string]string
	Since       time.Time
}

// Dedup is the time-window policy applied by NotifyOnce. Keys name payload
// fields identifying the entity; PerRecipient narrows the window to the
// same recipient.
type Dedup struct {
	Window       time.Duration
	Keys         []string
	PerRecipient bool
}
