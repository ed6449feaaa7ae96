package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/service/notification"
)

// NotificationRepo implements notification.Repository against PostgreSQL.
type NotificationRepo struct{ base }

// NewNotificationRepo creates a Postgres-backed notification repository.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo { return &NotificationRepo{base{db: db}} }

// notificationRow copies metadata out of the driver buffer on scan.
type notificationRow struct {
	ID          string     `db:"id"`
	Type        string     `db:"type"`
	RecipientID string     `db:"user_id"`
	Priority    string     `db:"priority"`
	Title       string     `db:"title"`
	Message     string     `db:"message"`
	Metadata    []byte     `db:"metadata"`
	CreatedAt   time.Time  `db:"created_at"`
	ReadAt      *time.Time `db:"read_at"`
}

func (row notificationRow) toDomain() domain.Notification {
	return domain.Notification{
		ID:          row.ID,
		Type:        domain.NotificationType(row.Type),
		RecipientID: row.RecipientID,
		Priority:    domain.Priority(row.Priority),
		Title:       row.Title,
		Message:     row.Message,
		Metadata:    json.RawMessage(row.Metadata),
		CreatedAt:   row.CreatedAt,
		ReadAt:      row.ReadAt,
	}
}

const notificationColumns = `id, type, user_id, priority, title, message, metadata, created_at, read_at`

func (r *NotificationRepo) CreateNotification(ctx context.Context, n *domain.Notification) error {
	meta := []byte(n.Metadata)
	if len(meta) == 0 {
		meta = []byte("{}")
	}
	_, err := r.q(ctx).ExecContext(ctx, `
		INSERT INTO notifications (id, type, user_id, priority, title, message, metadata, created_at, read_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	`, n.ID, n.Type, n.RecipientID, n.Priority, n.Title, n.Message, string(meta), n.CreatedAt, n.ReadAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *NotificationRepo) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, r.q(ctx), &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notification.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	n := row.toDomain()
	return &n, nil
}

// metadataClause appends one `metadata->>key = value` condition per entry of
// match, in key order, numbering placeholders after the existing args.
func metadataClause(where []string, args []interface{}, match map[string]string) ([]string, []interface{}) {
	keys := make([]string, 0, len(match))
	for k := range match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, match[k])
		where = append(where, fmt.Sprintf("metadata->>($%d::text) = $%d", len(args)-1, len(args)))
	}
	return where, args
}

func (r *NotificationRepo) NotificationExists(ctx context.Context, q notification.DedupQuery) (bool, error) {
	where := []string{"type = $1", "created_at >= $2"}
	args := []interface{}{q.Type, q.Since}
	if q.RecipientID != "" {
		args = append(args, q.RecipientID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	where, args = metadataClause(where, args, q.Match)

	var ok bool
	err := sqlx.GetContext(ctx, r.q(ctx), &ok,
		`SELECT EXISTS(SELECT 1 FROM notifications WHERE `+strings.Join(where, " AND ")+`)`, args...)
	if err != nil {
		return false, fmt.Errorf("notification exists: %w", err)
	}
	return ok, nil
}

func (r *NotificationRepo) LatestNotification(ctx context.Context, t domain.NotificationType, match map[string]string) (*domain.Notification, error) {
	where, args := metadataClause([]string{"type = $1"}, []interface{}{t}, match)

	var row notificationRow
	err := sqlx.GetContext(ctx, r.q(ctx), &row, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest notification: %w", err)
	}
	n := row.toDomain()
	return &n, nil
}

func (r *NotificationRepo) ListNotifications(ctx context.Context, recipientID string, f notification.ListFilter) ([]domain.Notification, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{recipientID}
	if f.UnreadOnly {
		where = append(where, "read_at IS NULL")
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s FROM notifications
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		notificationColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	var rows []notificationRow
	if err := sqlx.SelectContext(ctx, r.q(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := make([]domain.Notification, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.q(ctx).ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $2) WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return notification.ErrNotFound
	}
	return nil
}

func (r *NotificationRepo) NotificationStats(ctx context.Context, recipientID string) (domain.NotificationStats, error) {
	var s domain.NotificationStats
	err := sqlx.GetContext(ctx, r.q(ctx), &s, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE read_at IS NULL) AS unread,
		       COUNT(*) FILTER (WHERE read_at IS NULL AND priority = 'HIGH') AS high_priority_unread,
		       COUNT(*) FILTER (WHERE read_at IS NULL AND type LIKE 'CAMPAIGN\_%') AS campaign_unread
		FROM notifications
		WHERE user_id = $1
	`, recipientID)
	if err != nil {
		return s, fmt.Errorf("notification stats: %w", err)
	}
	return s, nil
}

func (r *NotificationRepo) DeleteNotificationsBatch(ctx context.Context, readBefore, unreadBefore time.Time, limit int) (int64, error) {
	res, err := r.q(ctx).ExecContext(ctx, `
		DELETE FROM notifications
		WHERE id IN (
			SELECT id FROM notifications
			WHERE (read_at IS NOT NULL AND read_at < $1)
			   OR (read_at IS NULL AND created_at < $2)
			LIMIT $3
		)
	`, readBefore, unreadBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return res.RowsAffected()
}
