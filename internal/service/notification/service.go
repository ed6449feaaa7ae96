package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/resource-workflow/internal/domain"
	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	purgeBatchSize  = 1000
	deliveryTimeout = 15 * time.Second
)

// DefaultThresholds are the campaign progress milestones, in percent.
var DefaultThresholds = []int{25, 50, 75, 100}

// Dispatcher creates notifications and hands them to the delivery channel.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Dispatcher struct {
	repo       Repository
	mailer     Mailer
	renderer   Renderer
	directory  Directory
	fromEmail  string
	fromName   string
	thresholds []int
	clock      func() time.Time
	newID      func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithEmail enables email delivery through m. Messages are rendered by r and
// addressed through dir.
func WithEmail(m Mailer, r Renderer, dir Directory, fromEmail, fromName string) Option {
	return func(d *Dispatcher) {
		d.mailer, d.renderer, d.directory = m, r, dir
		d.fromEmail, d.fromName = fromEmail, fromName
	}
}

// WithThresholds overrides the progress milestones.
func WithThresholds(thresholds []int) Option {
	return func(d *Dispatcher) {
		if len(thresholds) == 0 {
			return
		}
		t := append([]int(nil), thresholds...)
		sort.Ints(t)
		d.thresholds = t
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) { d.clock = clock }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(newID func() string) Option {
	return func(d *Dispatcher) { d.newID = newID }
}

// NewDispatcher creates a dispatcher backed by the given repository.
func NewDispatcher(repo Repository, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:       repo,
		thresholds: DefaultThresholds,
		clock:      time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Input describes one notification. The payload determines the type.
// A zero Priority means the type's default.
type Input struct {
	RecipientID string
	Title       string
	Message     string
	Priority    domain.Priority
	Payload     domain.NotificationPayload
}

// ProgressInput carries a campaign's current execution counters.
type ProgressInput struct {
	CampaignID   string
	CampaignName string
	RecipientID  string
	Completed    int
	Total        int
}

// Notify creates a notification unconditionally and attempts delivery.
func (d *Dispatcher) Notify(ctx context.Context, in Input) (*domain.Notification, error) {
	n, err := d.build(in)
	if err != nil {
		return nil, err
	}
	if err := d.repo.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	d.deliver(ctx, n)
	return n, nil
}

// NotifyOnce creates the notification unless an earlier one of the same type
// for the same entity falls inside the dedup window. It returns nil and no
// error when the notification was suppressed.
func (d *Dispatcher) NotifyOnce(ctx context.Context, in Input, dd Dedup) (*domain.Notification, error) {
	n, err := d.build(in)
	if err != nil {
		return nil, err
	}
	match, err := matchFields(n.Metadata, dd.Keys)
	if err != nil {
		return nil, err
	}
	q := DedupQuery{Type: n.Type, Match: match, Since: n.CreatedAt.Add(-dd.Window)}
	if dd.PerRecipient {
		q.RecipientID = n.RecipientID
	}

	var created bool
	err = d.repo.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.repo.LockKey(ctx, dedupKey(q)); err != nil {
			return err
		}
		exists, err := d.repo.NotificationExists(ctx, q)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		if err := d.repo.CreateNotification(ctx, n); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("notify once %s: %w", n.Type, err)
	}
	if !created {
		return nil, nil
	}
	d.deliver(ctx, n)
	return n, nil
}

// NotifyProgress fires a CAMPAIGN_PROGRESS notification when the campaign's
// progress has reached a threshold the last progress notification had not.
// When several thresholds were crossed at once only the highest is notified.
// It returns nil and no error when nothing was crossed.
func (d *Dispatcher) NotifyProgress(ctx context.Context, in ProgressInput) (*domain.Notification, error) {
	if in.Total <= 0 {
		return nil, nil
	}
	snap := domain.NewProgressSnapshot(in.Completed, in.Total)
	match := map[string]string{"campaign_id": in.CampaignID}

	var created *domain.Notification
	err := d.repo.RunInTx(ctx, func(ctx context.Context) error {
		if err := d.repo.LockKey(ctx, dedupKey(DedupQuery{Type: domain.NotifCampaignProgress, Match: match})); err != nil {
			return err
		}
		previous, err := d.lastThreshold(ctx, match)
		if err != nil {
			return err
		}
		threshold := crossedThreshold(d.thresholds, previous, in.Completed, in.Total)
		if threshold == 0 {
			return nil
		}

		n, err := d.build(Input{
			RecipientID: in.RecipientID,
			Title:       "Campaign progress",
			Message: fmt.Sprintf("Campaign %q reached %d%% (%d/%d companies executed)",
				in.CampaignName, threshold, snap.Completed, snap.Total),
			Payload: domain.CampaignProgressPayload{
				CampaignID:       in.CampaignID,
				CampaignName:     in.CampaignName,
				Threshold:        threshold,
				ProgressSnapshot: snap,
			},
		})
		if err != nil {
			return err
		}
		if err := d.repo.CreateNotification(ctx, n); err != nil {
			return err
		}
		created = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("notify progress %s: %w", in.CampaignID, err)
	}
	if created != nil {
		d.deliver(ctx, created)
	}
	return created, nil
}

// lastThreshold returns the threshold carried by the latest progress
// notification of the campaign, or 0.
func (d *Dispatcher) lastThreshold(ctx context.Context, match map[string]string) (int, error) {
	last, err := d.repo.LatestNotification(ctx, domain.NotifCampaignProgress, match)
	if err != nil || last == nil {
		return 0, err
	}
	p, err := last.Payload()
	if err != nil {
		return 0, err
	}
	progress, ok := p.(*domain.CampaignProgressPayload)
	if !ok {
		return 0, nil
	}
	return progress.Threshold, nil
}

// crossedThreshold returns the highest threshold t above previous that
// completed/total has reached, or 0 when there is none. The ratio is compared
// exactly so 199/200 does not reach 100. thresholds must be sorted ascending.
func crossedThreshold(thresholds []int, previous, completed, total int) int {
	for i := len(thresholds) - 1; i >= 0; i-- {
		t := thresholds[i]
		if t > previous && completed*100 >= t*total {
			return t
		}
	}
	return 0
}

// ListForRecipient returns the recipient's inbox, newest first.
func (d *Dispatcher) ListForRecipient(ctx context.Context, recipientID string, f ListFilter) ([]domain.Notification, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, ErrRecipientRequired
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultPageSize
	case f.Limit > maxPageSize:
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return d.repo.ListNotifications(ctx, recipientID, f)
}

// MarkRead stamps the read time. Only the recipient may do so; marking an
// already read notification is a no-op.
func (d *Dispatcher) MarkRead(ctx context.Context, id, userID string) (*domain.Notification, error) {
	n, err := d.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != userID {
		return nil, ErrNotRecipient
	}
	if n.ReadAt != nil {
		return n, nil
	}
	now := d.clock().UTC()
	if err := d.repo.MarkNotificationRead(ctx, id, now); err != nil {
		return nil, err
	}
	n.ReadAt = &now
	return n, nil
}

// Stats summarises the recipient's inbox.
func (d *Dispatcher) Stats(ctx context.Context, recipientID string) (domain.NotificationStats, error) {
	if strings.TrimSpace(recipientID) == "" {
		return domain.NotificationStats{}, ErrRecipientRequired
	}
	return d.repo.NotificationStats(ctx, recipientID)
}

// Purge deletes read notifications older than readAge and unread ones older
// than unreadAge, in batches. It returns the number of rows deleted.
func (d *Dispatcher) Purge(ctx context.Context, readAge, unreadAge time.Duration) (int64, error) {
	now := d.clock().UTC()
	readBefore, unreadBefore := now.Add(-readAge), now.Add(-unreadAge)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := d.repo.DeleteNotificationsBatch(ctx, readBefore, unreadBefore, purgeBatchSize)
		if err != nil {
			return total, fmt.Errorf("purge notifications: %w", err)
		}
		total += n
		if n < purgeBatchSize {
			return total, nil
		}
	}
}

func (d *Dispatcher) build(in Input) (*domain.Notification, error) {
	if strings.TrimSpace(in.RecipientID) == "" {
		return nil, ErrRecipientRequired
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrMessageRequired
	}
	if in.Payload == nil {
		return nil, ErrPayloadRequired
	}
	t := in.Payload.NotificationType()
	if !t.Valid() {
		return nil, ErrUnknownType.Wrapf("type %q", t)
	}
	priority := in.Priority
	if !priority.Valid() {
		priority = t.DefaultPriority()
	}
	meta, err := domain.EncodePayload(in.Payload)
	if err != nil {
		return nil, err
	}
	return &domain.Notification{
		ID:          d.newID(),
		Type:        t,
		RecipientID: in.RecipientID,
		Priority:    priority,
		Title:       in.Title,
		Message:     in.Message,
		Metadata:    meta,
		CreatedAt:   d.clock().UTC(),
	}, nil
}

// deliver emails n to its recipient. Failures are logged only.
func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification) {
	if d.mailer == nil || d.renderer == nil || d.directory == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	user, err := d.directory.GetUser(ctx, n.RecipientID)
	if err != nil {
		logger.Warn("[notification.Dispatcher] recipient lookup failed", "notification_id", n.ID, "user_id", n.RecipientID, "error", err)
		return
	}
	if user.Email == "" {
		return
	}
	subject, html, text, err := d.renderer.RenderNotification(n, user)
	if err != nil {
		logger.Warn("[notification.Dispatcher] render failed", "notification_id", n.ID, "type", n.Type, "error", err)
		return
	}
	res, err := d.mailer.Send(ctx, &domain.EmailMessage{
		NotificationID: n.ID,
		To:             user.Email,
		FromEmail:      d.fromEmail,
		FromName:       d.fromName,
		Subject:        subject,
		HTMLContent:    html,
		TextContent:    text,
	})
	if err != nil {
		logger.Warn("[notification.Dispatcher] email delivery failed", "notification_id", n.ID, "email", user.Email, "error", err)
		return
	}
	if res != nil {
		logger.Debug("[notification.Dispatcher] email delivered", "notification_id", n.ID, "message_id", res.MessageID)
	}
}

// matchFields extracts the dedup values for keys from encoded metadata.
func matchFields(meta json.RawMessage, keys []string) (map[string]string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(meta, &fields); err != nil {
		return nil, fmt.Errorf("read payload fields: %w", err)
	}
	match := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			return nil, ErrDedupKeyMissing.Wrapf("key %q", k)
		}
		match[k] = fmt.Sprint(v)
	}
	return match, nil
}

func dedupKey(q DedupQuery) string {
	keys := make([]string, 0, len(q.Match))
	for k := range q.Match {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(q.Type))
	for _, k := range keys {
		b.WriteString(":")
		b.WriteString(q.Match[k])
	}
	if q.RecipientID != "" {
		b.WriteString("@")
		b.WriteString(q.RecipientID)
	}
	return b.String()
}
