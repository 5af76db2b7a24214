package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/sse"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu      sync.Mutex
	rows    []*notification.Notification
	inserts int
}

func (m *memoryRepo) Insert(_ context.Context, ns ...*notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.rows = append(m.rows, ns...)
	return nil
}

func (m *memoryRepo) matches(n *notification.Notification, userID, workspaceID string) bool {
	return n.UserID == userID && (workspaceID == "" || n.WorkspaceID == workspaceID)
}

func (m *memoryRepo) List(_ context.Context, f notification.Filter) ([]notification.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Notification
	for _, n := range m.rows {
		if m.matches(n, f.UserID, f.WorkspaceID) && (!f.UnreadOnly || n.Unread()) && (f.Kind == nil || n.Kind == *f.Kind) {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memoryRepo) CountUnread(_ context.Context, userID, workspaceID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.rows {
		if m.matches(n, userID, workspaceID) && n.Unread() {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) MarkRead(_ context.Context, userID string, ids []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, n := range m.rows {
		for _, id := range ids {
			if n.ID == id && n.UserID == userID && n.Unread() {
				n.ReadAt = &at
				updated++
			}
		}
	}
	return updated, nil
}

func (m *memoryRepo) MarkAllRead(_ context.Context, userID, workspaceID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, n := range m.rows {
		if m.matches(n, userID, workspaceID) && n.Unread() {
			n.ReadAt = &at
			updated++
		}
	}
	return updated, nil
}

func (m *memoryRepo) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func newTestService(t *testing.T, cfg Config) (notification.NotificationService, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	svc := NewNotificationService(repo, sse.NewHub(), cfg)
	t.Cleanup(svc.Stop)
	return svc, repo
}

func TestNotify_BatchesAndStreams(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, repo := newTestService(t, Config{BatchSize: 2, FlushInterval: 20 * time.Millisecond, Workers: 1})

	events, unsubscribe := svc.Subscribe(ctx, "user-1", "ws-1")
	defer unsubscribe()

	titles := []string{"Payment received", "Invoice viewed", "Invoice overdue"}
	for _, title := range titles {
		require.NoError(t, svc.Notify(ctx, notification.Notice{
			WorkspaceID:  "ws-1",
			UserID:       "user-1",
			Kind:         notification.KindPaymentReceived,
			Title:        title,
			ResourceType: "invoice",
			ResourceID:   "inv-1",
		}))
	}
	require.NoError(t, svc.Notify(ctx, notification.Notice{Title: "no recipient"}))

	require.Eventually(t, func() bool { return repo.count() == 3 }, time.Second, 5*time.Millisecond)

	var got []string
	for len(got) < 3 {
		select {
		case e := <-events:
			assert.Equal(t, "notification", e.Name)
			assert.Equal(t, "inv-1", e.Notification.ResourceID)
			got = append(got, e.Notification.Title)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for streamed notifications")
		}
	}
	assert.ElementsMatch(t, titles, got)
}

func TestSubscribe_FiltersWorkspace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc, repo := newTestService(t, Config{BatchSize: 1, FlushInterval: 10 * time.Millisecond, Workers: 1})

	events, unsubscribe := svc.Subscribe(ctx, "user-1", "ws-1")
	defer unsubscribe()

	require.NoError(t, svc.Notify(ctx, notification.Notice{WorkspaceID: "ws-2", UserID: "user-1", Title: "other"}))
	require.NoError(t, svc.Notify(ctx, notification.Notice{WorkspaceID: "ws-1", UserID: "user-1", Title: "mine"}))
	require.Eventually(t, func() bool { return repo.count() == 2 }, time.Second, 5*time.Millisecond)

	select {
	case e := <-events:
		assert.Equal(t, "mine", e.Notification.Title)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for streamed notification")
	}
	select {
	case e := <-events:
		t.Fatalf("unexpected event %q", e.Notification.Title)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotify_FullQueueLosesNothing(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewNotificationService(repo, sse.NewHub(), Config{BatchSize: 100, FlushInterval: time.Hour, Workers: 1, QueueSize: 1})

	for i := 0; i < 20; i++ {
		require.NoError(t, svc.Notify(context.Background(), notification.Notice{UserID: "user-1", Title: "n"}))
	}
	svc.Stop()
	assert.Equal(t, 20, repo.count())
}

func TestStop_DrainsQueue(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewNotificationService(repo, sse.NewHub(), Config{BatchSize: 100, FlushInterval: time.Hour, Workers: 2})

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.Notify(context.Background(), notification.Notice{UserID: "user-1", Title: "n"}))
	}
	svc.Stop()
	svc.Stop()
	assert.Equal(t, 5, repo.count())
}

func TestListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, Config{FlushInterval: time.Hour})

	repo.rows = []*notification.Notification{
		{ID: "n-1", UserID: "user-1", WorkspaceID: "ws-1", Kind: notification.KindInvoiceViewed},
		{ID: "n-2", UserID: "user-1", WorkspaceID: "ws-2", Kind: notification.KindPaymentReceived},
		{ID: "n-3", UserID: "user-2", WorkspaceID: "ws-1", Kind: notification.KindPaymentReceived},
	}

	all, err := svc.List(ctx, notification.Filter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)
	assert.Equal(t, int64(2), all.UnreadCount)

	scoped, err := svc.List(ctx, notification.Filter{UserID: "user-1", WorkspaceID: "ws-1"})
	require.NoError(t, err)
	require.Len(t, scoped.Items, 1)
	assert.Equal(t, int64(1), scoped.UnreadCount)

	marked, err := svc.MarkRead(ctx, "user-1", notification.MarkReadRequest{IDs: []string{"n-1", "n-3"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked.Updated)

	count, err := svc.UnreadCount(ctx, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	marked, err = svc.MarkAllRead(ctx, "user-1", "ws-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked.Updated)

	unread, err := svc.List(ctx, notification.Filter{UserID: "user-1", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

func TestDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t, Config{FlushInterval: time.Hour})
	err := svc.Delete(context.Background(), "user-1", "missing")
	assert.True(t, errors.Is(err, notification.ErrNotificationNotFound))
}
