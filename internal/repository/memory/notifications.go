package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// Notifications returns every stored notification, oldest first.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Notification, 0, len(s.st.notifOrder))
	for _, id := range s.st.notifOrder {
		out = append(out, s.st.notifications[id])
	}
	return out
}

// NotificationsOfType filters Notifications by type.
func (s *Store) NotificationsOfType(t domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, n := range s.Notifications() {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.notifications[n.ID]; ok {
			return fmt.Errorf("notification %s already exists", n.ID)
		}
		st.notifications[n.ID] = *n
		st.notifOrder = append(st.notifOrder, n.ID)
		return nil
	})
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	var out *domain.Notification
	err := s.view(ctx, func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return notification.ErrNotFound
		}
		out = &n
		return nil
	})
	return out, err
}

func (s *Store) NotificationExists(ctx context.Context, q notification.DedupQuery) (bool, error) {
	var found bool
	err := s.view(ctx, func(st *state) error {
		for _, id := range st.notifOrder {
			n := st.notifications[id]
			if n.Type != q.Type || n.CreatedAt.Before(q.Since) {
				continue
			}
			if q.RecipientID != "" && n.RecipientID != q.RecipientID {
				continue
			}
			if metadataMatches(n.Metadata, q.Match) {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s *Store) LatestNotification(ctx context.Context, t domain.NotificationType, match map[string]string) (*domain.Notification, error) {
	var out *domain.Notification
	err := s.view(ctx, func(st *state) error {
		for i := len(st.notifOrder) - 1; i >= 0; i-- {
			n := st.notifications[st.notifOrder[i]]
			if n.Type == t && metadataMatches(n.Metadata, match) {
				out = &n
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, f notification.ListFilter) ([]domain.Notification, error) {
	var out []domain.Notification
	err := s.view(ctx, func(st *state) error {
		skipped := 0
		for i := len(st.notifOrder) - 1; i >= 0; i-- {
			n := st.notifications[st.notifOrder[i]]
			if n.RecipientID != recipientID {
				continue
			}
			if f.UnreadOnly && n.ReadAt != nil {
				continue
			}
			if f.Type != "" && n.Type != f.Type {
				continue
			}
			if skipped < f.Offset {
				skipped++
				continue
			}
			out = append(out, n)
			if f.Limit > 0 && len(out) == f.Limit {
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, func(st *state) error {
		n, ok := st.notifications[id]
		if !ok {
			return notification.ErrNotFound
		}
		if n.ReadAt == nil {
			readAt := at
			n.ReadAt = &readAt
			st.notifications[id] = n
		}
		return nil
	})
}

func (s *Store) NotificationStats(ctx context.Context, recipientID string) (domain.NotificationStats, error) {
	var stats domain.NotificationStats
	err := s.view(ctx, func(st *state) error {
		for _, n := range st.notifications {
			if n.RecipientID != recipientID {
				continue
			}
			stats.Total++
			if n.ReadAt != nil {
				continue
			}
			stats.Unread++
			if n.Priority == domain.PriorityHigh {
				stats.HighUnread++
			}
			if strings.HasPrefix(string(n.Type), "CAMPAIGN_") {
				stats.CampaignUnread++
			}
		}
		return nil
	})
	return stats, err
}

func (s *Store) DeleteNotificationsBatch(ctx context.Context, readBefore, unreadBefore time.Time, limit int) (int64, error) {
	var deleted int64
	err := s.update(ctx, func(st *state) error {
		kept := st.notifOrder[:0:0]
		for _, id := range st.notifOrder {
			n := st.notifications[id]
			expired := (n.ReadAt != nil && n.ReadAt.Before(readBefore)) ||
				(n.ReadAt == nil && n.CreatedAt.Before(unreadBefore))
			if expired && (limit <= 0 || deleted < int64(limit)) {
				delete(st.notifications, id)
				deleted++
				continue
			}
			kept = append(kept, id)
		}
		st.notifOrder = kept
		return nil
	})
	return deleted, err
}

// metadataMatches reports whether every key of match holds the same value
// in the JSON object meta. Values compare in their printed form.
func metadataMatches(meta json.RawMessage, match map[string]string) bool {
	if len(match) == 0 {
		return true
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(meta, &fields); err != nil {
		return false
	}
	for k, want := range match {
		v, ok := fields[k]
		if !ok || v == nil || fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}
