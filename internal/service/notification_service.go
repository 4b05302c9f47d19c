package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lostfound-api/internal/models"
	appErrors "github.com/noah-isme/lostfound-api/pkg/errors"
	"github.com/noah-isme/lostfound-api/pkg/jobs"
	"github.com/noah-isme/lostfound-api/pkg/pagination"
)

// SecurityRecipientsCacheKey holds the resolved set of security-capable recipients.
const SecurityRecipientsCacheKey = "lostfound:recipients:security"

// DeliveryJobType labels delivery jobs on the worker queue.
const DeliveryJobType = "notification.deliver"

type notificationStore interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	ListForRecipient(ctx context.Context, recipientID string, cursor *models.Cursor, limit int) ([]models.Notification, error)
	ListPending(ctx context.Context, limit int) ([]models.Notification, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id, reason string, maxAttempts int) error
	MarkOpened(ctx context.Context, id, recipientID string, at time.Time) error
	Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error)
}

type recipientDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListSecurityRecipients(ctx context.Context, legacyFallback bool, legacyAdminEmail string) ([]models.User, error)
}

type recipientCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Dispatcher hands a delivery request to the push transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification models.Notification) error
}

// Notifier enqueues notifications for interested parties. Failures are logged, never returned.
type Notifier interface {
	NotifyUsers(ctx context.Context, userIDs []string, msg Message)
	NotifySecurity(ctx context.Context, msg Message)
}

// Message is the content of a notification fanned out to one or more recipients.
type Message struct {
	Title   string
	Body    string
	Type    string
	ItemID  *string
	ClaimID *string
}

// Recipient is a notification target with its optional delivery token.
type Recipient struct {
	ID    string  `json:"id"`
	Token *string `json:"token,omitempty"`
}

// NotificationConfig tunes fan-out and relaying.
type NotificationConfig struct {
	MaxAttempts       int
	BatchSize         int
	RecipientCacheTTL time.Duration
	LegacyFallback    bool
	LegacyAdminEmail  string
}

// NotificationService persists delivery requests and relays them to the dispatcher.
type NotificationService struct {
	store      notificationStore
	users      recipientDirectory
	cache      recipientCache
	dispatcher Dispatcher
	metrics    *MetricsService
	logger     *zap.Logger
	clock      Clock
	cfg        NotificationConfig

	queue    *jobs.Queue
	inflight sync.Map
}

// NotificationServiceOption configures the service.
type NotificationServiceOption func(*NotificationService)

// WithNotificationClock overrides the time source.
func WithNotificationClock(clock Clock) NotificationServiceOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithNotificationMetrics attaches Prometheus instrumentation.
func WithNotificationMetrics(metrics *MetricsService) NotificationServiceOption {
	return func(s *NotificationService) {
		s.metrics = metrics
	}
}

// NewNotificationService constructs the service.
func NewNotificationService(store notificationStore, users recipientDirectory, cache recipientCache, dispatcher Dispatcher, cfg NotificationConfig, logger *zap.Logger, opts ...NotificationServiceOption) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LegacyAdminEmail == "" {
		cfg.LegacyAdminEmail = DefaultLegacyAdminEmail
	}
	svc := &NotificationService{
		store:      store,
		users:      users,
		cache:      cache,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      systemClock,
		cfg:        cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// UseQueue routes deliveries through a worker queue instead of dispatching inline.
// The queue must be built with DeliveryHandler as its handler.
func (s *NotificationService) UseQueue(queue *jobs.Queue) {
	s.queue = queue
}

// NotifyUsers enqueues msg for each listed user.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []string, msg Message) {
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipients", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	recipients := make([]Recipient, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, Recipient{ID: user.ID, Token: user.DeliveryToken})
	}
	s.persist(ctx, recipients, msg)
}

// NotifySecurity enqueues msg for every unblocked security-capable user.
func (s *NotificationService) NotifySecurity(ctx context.Context, msg Message) {
	recipients, err := s.SecurityRecipients(ctx)
	if err != nil {
		s.logger.Warn("failed to resolve security recipients", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	s.persist(ctx, recipients, msg)
}

// SecurityRecipients returns the security fan-out set, served from cache when possible.
func (s *NotificationService) SecurityRecipients(ctx context.Context) ([]Recipient, error) {
	var cached []Recipient
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, SecurityRecipientsCacheKey, &cached); hit {
			return cached, nil
		}
	}
	users, err := s.users.ListSecurityRecipients(ctx, s.cfg.LegacyFallback, s.cfg.LegacyAdminEmail)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list security recipients")
	}
	recipients := make([]Recipient, 0, len(users))
	for _, user := range users {
		recipients = append(recipients, Recipient{ID: user.ID, Token: user.DeliveryToken})
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, SecurityRecipientsCacheKey, recipients, s.cfg.RecipientCacheTTL)
	}
	return recipients, nil
}

// InvalidateRecipients drops the cached security set after role, blocked or token changes.
func (s *NotificationService) InvalidateRecipients(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, SecurityRecipientsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate recipient cache", zap.Error(err))
	}
}

func (s *NotificationService) persist(ctx context.Context, recipients []Recipient, msg Message) {
	if len(recipients) == 0 {
		return
	}
	now := s.clock()
	rows := make([]models.Notification, 0, len(recipients))
	counts := map[models.DeliveryStatus]int{}
	for _, recipient := range recipients {
		status := models.DeliveryPending
		if recipient.Token == nil || *recipient.Token == "" {
			status = models.DeliverySkipped
		}
		counts[status]++
		rows = append(rows, models.Notification{
			RecipientID:    recipient.ID,
			DeliveryToken:  recipient.Token,
			Title:          msg.Title,
			Body:           msg.Body,
			Type:           msg.Type,
			ItemID:         msg.ItemID,
			ClaimID:        msg.ClaimID,
			DeliveryStatus: status,
			CreatedAt:      now,
		})
	}
	if err := s.store.CreateBatch(ctx, rows); err != nil {
		s.logger.Warn("failed to enqueue notifications",
			zap.String("type", msg.Type),
			zap.Int("recipients", len(rows)),
			zap.Error(err))
		return
	}
	for status, n := range counts {
		s.metrics.RecordNotification(string(status), n)
	}
}

// Relay hands pending notifications to the dispatcher and returns how many were picked up.
func (s *NotificationService) Relay(ctx context.Context) (int, error) {
	pending, err := s.store.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, appErrors.Store(err, "failed to list pending notifications")
	}
	picked := 0
	for _, notification := range pending {
		if _, busy := s.inflight.LoadOrStore(notification.ID, struct{}{}); busy {
			continue
		}
		if s.queue == nil {
			s.deliver(ctx, notification)
			picked++
			continue
		}
		job := jobs.Job{ID: notification.ID, Type: DeliveryJobType, Payload: notification}
		if err := s.queue.Enqueue(job); err != nil {
			s.inflight.Delete(notification.ID)
			return picked, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue delivery")
		}
		picked++
	}
	return picked, nil
}

// DeliveryHandler is the jobs.Handler for the delivery queue.
func (s *NotificationService) DeliveryHandler(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected delivery payload %T", job.Payload)
	}
	s.deliver(ctx, notification)
	return nil
}

func (s *NotificationService) deliver(ctx context.Context, notification models.Notification) {
	defer s.inflight.Delete(notification.ID)
	logger := s.logger.With(zap.String("notification_id", notification.ID), zap.String("recipient_id", notification.RecipientID))

	if err := s.dispatcher.Dispatch(ctx, notification); err != nil {
		logger.Warn("notification dispatch failed", zap.Int("attempt", notification.Attempts+1), zap.Error(err))
		if markErr := s.store.MarkAttemptFailed(ctx, notification.ID, err.Error(), s.cfg.MaxAttempts); markErr != nil {
			logger.Error("failed to record dispatch failure", zap.Error(markErr))
		}
		if notification.Attempts+1 >= s.cfg.MaxAttempts {
			s.metrics.RecordNotification(string(models.DeliveryFailed), 1)
		}
		return
	}
	if err := s.store.MarkSent(ctx, notification.ID, s.clock()); err != nil {
		logger.Error("failed to mark notification sent", zap.Error(err))
		return
	}
	s.metrics.RecordNotification(string(models.DeliverySent), 1)
}

// ListForRecipient pages through a recipient's notifications, newest first.
func (s *NotificationService) ListForRecipient(ctx context.Context, recipientID, cursor string, limit int) ([]models.Notification, string, error) {
	after, err := parseCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	rows, err := s.store.ListForRecipient(ctx, recipientID, after, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", appErrors.Store(err, "failed to list notifications")
	}
	page, next := pagination.Trim(rows, limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

// MarkOpened records that the recipient opened a notification.
func (s *NotificationService) MarkOpened(ctx context.Context, id, recipientID string) error {
	if err := s.store.MarkOpened(ctx, id, recipientID, s.clock()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Store(err, "failed to mark notification opened")
	}
	return nil
}

// Stats aggregates delivery and open counts. An empty recipientID covers every recipient.
func (s *NotificationService) Stats(ctx context.Context, recipientID string) (*models.NotificationStats, error) {
	stats, err := s.store.Stats(ctx, recipientID)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load notification stats")
	}
	return stats, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
