package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWebhookRepo struct {
	webhook.WebhookRepository
	endpoints  map[string]webhook.Endpoint
	deliveries []webhook.Delivery
	seq        int
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{endpoints: map[string]webhook.Endpoint{}}
}

func (f *fakeWebhookRepo) CreateEndpoint(_ context.Context, ep webhook.Endpoint) (webhook.Endpoint, error) {
	f.seq++
	ep.ID = fmt.Sprintf("ep-%d", f.seq)
	f.endpoints[ep.ID] = ep
	return ep, nil
}

func (f *fakeWebhookRepo) GetEndpoint(_ context.Context, workspaceID, id string) (webhook.Endpoint, error) {
	ep, ok := f.endpoints[id]
	if !ok || ep.WorkspaceID != workspaceID {
		return webhook.Endpoint{}, pgx.ErrNoRows
	}
	return ep, nil
}

func (f *fakeWebhookRepo) ListEndpoints(_ context.Context, workspaceID string) ([]webhook.Endpoint, error) {
	var out []webhook.Endpoint
	for i := 1; i <= f.seq; i++ {
		if ep, ok := f.endpoints[fmt.Sprintf("ep-%d", i)]; ok && ep.WorkspaceID == workspaceID {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) ListActiveEndpoints(ctx context.Context, workspaceID string) ([]webhook.Endpoint, error) {
	all, _ := f.ListEndpoints(ctx, workspaceID)
	var out []webhook.Endpoint
	for _, ep := range all {
		if ep.IsActive {
			out = append(out, ep)
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) UpdateEndpoint(_ context.Context, ep webhook.Endpoint) error {
	if _, ok := f.endpoints[ep.ID]; !ok {
		return pgx.ErrNoRows
	}
	f.endpoints[ep.ID] = ep
	return nil
}

func (f *fakeWebhookRepo) DeleteEndpoint(_ context.Context, workspaceID, id string) error {
	ep, ok := f.endpoints[id]
	if !ok || ep.WorkspaceID != workspaceID {
		return pgx.ErrNoRows
	}
	delete(f.endpoints, id)
	return nil
}

func (f *fakeWebhookRepo) CreateDelivery(_ context.Context, d webhook.Delivery) error {
	d.ID = fmt.Sprintf("del-%d", len(f.deliveries)+1)
	f.deliveries = append(f.deliveries, d)
	return nil
}

// joined mirrors the endpoint join of the real query
func (f *fakeWebhookRepo) joined(d webhook.Delivery) webhook.Delivery {
	ep := f.endpoints[d.EndpointID]
	d.URL, d.Secret = ep.URL, ep.Secret
	return d
}

func (f *fakeWebhookRepo) GetDelivery(_ context.Context, workspaceID, id string) (webhook.Delivery, error) {
	for _, d := range f.deliveries {
		if d.ID == id && f.endpoints[d.EndpointID].WorkspaceID == workspaceID {
			return f.joined(d), nil
		}
	}
	return webhook.Delivery{}, pgx.ErrNoRows
}

func (f *fakeWebhookRepo) ListDeliveries(_ context.Context, endpointID string, _, _ int) ([]webhook.Delivery, int64, error) {
	var out []webhook.Delivery
	for _, d := range f.deliveries {
		if d.EndpointID == endpointID {
			out = append(out, d)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeWebhookRepo) ListDueDeliveries(_ context.Context, now time.Time, limit int) ([]webhook.Delivery, error) {
	var out []webhook.Delivery
	for _, d := range f.deliveries {
		due := d.Status == webhook.DeliveryPending || d.Status == webhook.DeliveryRetrying
		if due && !d.NextAttemptAt.After(now) && f.endpoints[d.EndpointID].IsActive && len(out) < limit {
			out = append(out, f.joined(d))
		}
	}
	return out, nil
}

func (f *fakeWebhookRepo) UpdateDelivery(_ context.Context, d webhook.Delivery) error {
	for i := range f.deliveries {
		if f.deliveries[i].ID == d.ID {
			d.URL, d.Secret = "", ""
			f.deliveries[i] = d
			return nil
		}
	}
	return pgx.ErrNoRows
}

type received struct {
	signature, event, delivery string
	body                       []byte
}

// receiver answers with the queued status codes, then 200
type receiver struct {
	mu       sync.Mutex
	statuses []int
	got      []received
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, received{
		signature: req.Header.Get(webhook.SignatureHeader),
		event:     req.Header.Get(webhook.EventHeader),
		delivery:  req.Header.Get(webhook.DeliveryHeader),
		body:      body,
	})
	status := http.StatusOK
	if len(r.statuses) > 0 {
		status, r.statuses = r.statuses[0], r.statuses[1:]
	}
	w.WriteHeader(status)
}

func setup(t *testing.T) (*WebhookServiceImpl, *fakeWebhookRepo, *receiver, *httptest.Server, *testutil.Clock) {
	t.Helper()
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	t.Cleanup(srv.Close)

	repo := newFakeWebhookRepo()
	clock := testutil.NewClock(time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC))
	svc := NewWebhookService(repo, srv.Client()).(*WebhookServiceImpl)
	svc.now = clock.Now
	return svc, repo, rcv, srv, clock
}

func TestEndpointCRUD(t *testing.T) {
	ctx := context.Background()
	svc, _, _, srv, _ := setup(t)

	_, err := svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: "ftp://nope"})
	assert.Error(t, err)
	_, err = svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL, Events: []webhook.Event{"invoice.exploded"}})
	assert.Error(t, err)

	created, err := svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.Secret, "whsec_"))
	assert.True(t, created.IsActive)
	assert.Equal(t, []webhook.Event{}, created.Events)

	list, err := svc.ListEndpoints(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Secret, "secret is only shown on create")

	updated, err := svc.UpdateEndpoint(ctx, "ws-1", created.ID, webhook.EndpointRequest{
		URL:      srv.URL + "/hooks",
		Events:   []webhook.Event{webhook.EventInvoicePaid},
		IsActive: testutil.Ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, srv.URL+"/hooks", updated.URL)

	_, err = svc.UpdateEndpoint(ctx, "ws-2", created.ID, webhook.EndpointRequest{URL: srv.URL})
	assert.ErrorIs(t, err, webhook.ErrEndpointNotFound)

	require.NoError(t, svc.DeleteEndpoint(ctx, "ws-1", created.ID))
	assert.ErrorIs(t, svc.DeleteEndpoint(ctx, "ws-1", created.ID), webhook.ErrEndpointNotFound)
}

func TestDispatchAndDeliver(t *testing.T) {
	ctx := context.Background()
	svc, repo, rcv, srv, clock := setup(t)

	all, err := svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL})
	require.NoError(t, err)
	_, err = svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL, Events: []webhook.Event{webhook.EventExpenseApproved}})
	require.NoError(t, err)

	svc.Dispatch(ctx, "ws-1", webhook.EventInvoicePaid, map[string]string{"invoice_id": "inv-1"})
	require.Len(t, repo.deliveries, 1, "only subscribed endpoints get a delivery")
	assert.Equal(t, all.ID, repo.deliveries[0].EndpointID)

	result, err := svc.ProcessPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, webhook.DeliverResult{Attempted: 1, Delivered: 1}, result)

	require.Len(t, rcv.got, 1)
	got := rcv.got[0]
	assert.Equal(t, webhook.Sign(all.Secret, got.body), got.signature)
	assert.Equal(t, "invoice.paid", got.event)
	assert.Equal(t, "del-1", got.delivery)

	var env webhook.Envelope
	require.NoError(t, json.Unmarshal(got.body, &env))
	assert.Equal(t, webhook.EventInvoicePaid, env.Event)
	assert.Equal(t, "ws-1", env.WorkspaceID)
	assert.NotEmpty(t, env.ID)

	d := repo.deliveries[0]
	assert.Equal(t, webhook.DeliveryDelivered, d.Status)
	assert.Equal(t, 200, *d.ResponseCode)

	again, err := svc.ProcessPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Zero(t, again.Attempted)
}

func TestDeliver_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	svc, repo, rcv, srv, clock := setup(t)
	rcv.statuses = []int{500, 500, 500, 500, 500}

	ep, err := svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL})
	require.NoError(t, err)
	svc.Dispatch(ctx, "ws-1", webhook.EventInvoiceSent, nil)

	result, err := svc.ProcessPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, webhook.DeliverResult{Attempted: 1, Failed: 1}, result)
	d := repo.deliveries[0]
	assert.Equal(t, webhook.DeliveryRetrying, d.Status)
	assert.Equal(t, clock.Now().Add(2*time.Minute), d.NextAttemptAt)
	assert.Equal(t, 500, *d.ResponseCode)

	result, err = svc.ProcessPendingDeliveries(ctx, clock.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, result.Attempted, "not due before the backoff elapses")

	for i := 0; i < 10 && repo.deliveries[0].Status != webhook.DeliveryFailed; i++ {
		clock.Advance(time.Hour)
		_, err := svc.ProcessPendingDeliveries(ctx, clock.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, webhook.DeliveryFailed, repo.deliveries[0].Status)
	assert.Equal(t, webhook.MaxAttempts, repo.deliveries[0].Attempts)
	assert.Len(t, rcv.got, webhook.MaxAttempts)

	t.Run("redeliver", func(t *testing.T) {
		resp, err := svc.Redeliver(ctx, "ws-1", d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.DeliveryDelivered, resp.Status)
		assert.Equal(t, 1, resp.Attempts)

		_, err = svc.Redeliver(ctx, "ws-2", d.ID)
		assert.ErrorIs(t, err, webhook.ErrDeliveryNotFound)
	})

	t.Run("list deliveries", func(t *testing.T) {
		list, total, err := svc.ListDeliveries(ctx, "ws-1", ep.ID, 1, 20)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		assert.Equal(t, webhook.DeliveryDelivered, list[0].Status)

		_, _, err = svc.ListDeliveries(ctx, "ws-2", ep.ID, 1, 20)
		assert.ErrorIs(t, err, webhook.ErrEndpointNotFound)
	})
}

func TestDeliver_ConnectionError(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, srv, clock := setup(t)

	_, err := svc.CreateEndpoint(ctx, "ws-1", webhook.EndpointRequest{URL: srv.URL})
	require.NoError(t, err)
	svc.Dispatch(ctx, "ws-1", webhook.EventInvoiceSent, nil)
	srv.Close()

	result, err := svc.ProcessPendingDeliveries(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Nil(t, repo.deliveries[0].ResponseCode)
	assert.NotEmpty(t, repo.deliveries[0].LastError)
}
