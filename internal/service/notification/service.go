package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/sse"
)

const (
	streamEvent  = "notification"
	streamBuffer = 16
	flushTimeout = 30 * time.Second
)

// Config sizes the write queue; zero values fall back to the defaults
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	Workers       int
	QueueSize     int
}

func (c *Config) withDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
}

type NotificationServiceImpl struct {
	repo notification.Repository
	hub  *sse.Hub
	cfg  Config
	now  func() time.Time

	queue    chan notification.Notice
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewNotificationService(repo notification.Repository, hub *sse.Hub, cfg Config) notification.NotificationService {
	cfg.withDefaults()
	s := &NotificationServiceImpl{
		repo:  repo,
		hub:   hub,
		cfg:   cfg,
		now:   time.Now,
		queue: make(chan notification.Notice, cfg.QueueSize),
		done:  make(chan struct{}),
	}

	s.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go s.work(i)
	}
	slog.Info("Notification workers started", "workers", cfg.Workers, "batch_size", cfg.BatchSize)
	return s
}

func (s *NotificationServiceImpl) materialize(notice notification.Notice) *notification.Notification {
	return &notification.Notification{
		ID:           uuid.NewString(),
		UserID:       notice.UserID,
		WorkspaceID:  notice.WorkspaceID,
		Kind:         notice.Kind,
		Title:        notice.Title,
		Body:         notice.Body,
		ResourceType: notice.ResourceType,
		ResourceID:   notice.ResourceID,
		Data:         notice.Data,
		CreatedAt:    s.now(),
	}
}

// store inserts the batch and fans the stored rows out to live streams
func (s *NotificationServiceImpl) store(ctx context.Context, notices []notification.Notice) error {
	rows := make([]*notification.Notification, len(notices))
	for i, notice := range notices {
		rows[i] = s.materialize(notice)
	}
	if err := s.repo.Insert(ctx, rows...); err != nil {
		return err
	}
	for _, n := range rows {
		s.hub.Publish(sse.Event{
			ID:          n.ID,
			UserID:      n.UserID,
			WorkspaceID: n.WorkspaceID,
			Event:       streamEvent,
			Data:        n.ToResponse(),
		})
	}
	return nil
}

func (s *NotificationServiceImpl) work(worker int) {
	defer s.wg.Done()

	pending := make([]notification.Notice, 0, s.cfg.BatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := s.store(ctx, pending); err != nil {
			slog.Error("Failed to store notifications", "worker", worker, "count", len(pending), "error", err)
		}
		cancel()
		pending = pending[:0]
	}
	add := func(notice notification.Notice) {
		pending = append(pending, notice)
		if len(pending) >= s.cfg.BatchSize {
			flush()
		}
	}

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case notice := <-s.queue:
			add(notice)
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case notice := <-s.queue:
					add(notice)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Notify queues the notice; with a full queue it is written synchronously
func (s *NotificationServiceImpl) Notify(ctx context.Context, notice notification.Notice) error {
	if notice.UserID == "" {
		return nil
	}

	select {
	case s.queue <- notice:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	slog.Warn("Notification queue full, writing directly", "user_id", notice.UserID, "kind", notice.Kind)
	if err := s.store(ctx, []notification.Notice{notice}); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

func (s *NotificationServiceImpl) List(ctx context.Context, filter notification.Filter) (notification.ListResponse, error) {
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return notification.ListResponse{}, fmt.Errorf("failed to list notifications: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, filter.UserID, filter.WorkspaceID)
	if err != nil {
		return notification.ListResponse{}, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	items := make([]notification.NotificationResponse, len(rows))
	for i, n := range rows {
		items[i] = n.ToResponse()
	}
	return notification.ListResponse{Items: items, Total: total, UnreadCount: unread}, nil
}

func (s *NotificationServiceImpl) UnreadCount(ctx context.Context, userID, workspaceID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (s *NotificationServiceImpl) MarkRead(ctx context.Context, userID string, req notification.MarkReadRequest) (notification.MarkReadResponse, error) {
	updated, err := s.repo.MarkRead(ctx, userID, req.IDs, s.now())
	if err != nil {
		return notification.MarkReadResponse{}, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return notification.MarkReadResponse{Updated: updated}, nil
}

func (s *NotificationServiceImpl) MarkAllRead(ctx context.Context, userID, workspaceID string) (notification.MarkReadResponse, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID, workspaceID, s.now())
	if err != nil {
		return notification.MarkReadResponse{}, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return notification.MarkReadResponse{Updated: updated}, nil
}

func (s *NotificationServiceImpl) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if database.IsNotFound(err) {
			return notification.ErrNotificationNotFound
		}
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// Subscribe converts hub frames into typed events until ctx ends or the hub drops the client
func (s *NotificationServiceImpl) Subscribe(ctx context.Context, userID, workspaceID string) (<-chan notification.Event, func()) {
	frames, unsubscribe := s.hub.Subscribe(userID, workspaceID)
	out := make(chan notification.Event, streamBuffer)

	go func() {
		defer close(out)
		for {
			var frame sse.Event
			var ok bool
			select {
			case frame, ok = <-frames:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			payload, isNotification := frame.Data.(notification.NotificationResponse)
			if !isNotification {
				continue
			}
			select {
			case out <- notification.Event{Name: frame.Event, Notification: payload}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, unsubscribe
}

func (s *NotificationServiceImpl) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		slog.Info("Notification workers stopped")
	})
}
