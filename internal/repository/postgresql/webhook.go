package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
)

const endpointColumns = `id, workspace_id, url, secret, events, is_active, created_at, updated_at`

type webhookRepositoryImpl struct {
	db *database.DB
}

func NewWebhookRepository(db *database.DB) webhook.WebhookRepository {
	return &webhookRepositoryImpl{db: db}
}

func scanEndpoint(row interface{ Scan(dest ...any) error }) (webhook.Endpoint, error) {
	var ep webhook.Endpoint
	var events []string
	if err := row.Scan(&ep.ID, &ep.WorkspaceID, &ep.URL, &ep.Secret, &events, &ep.IsActive, &ep.CreatedAt, &ep.UpdatedAt); err != nil {
		return webhook.Endpoint{}, err
	}
	ep.Events = make([]webhook.Event, len(events))
	for i, e := range events {
		ep.Events[i] = webhook.Event(e)
	}
	return ep, nil
}

func eventStrings(events []webhook.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func (r *webhookRepositoryImpl) listEndpoints(ctx context.Context, query string, args ...any) ([]webhook.Endpoint, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []webhook.Endpoint
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, rows.Err()
}

// CreateEndpoint implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) CreateEndpoint(ctx context.Context, ep webhook.Endpoint) (webhook.Endpoint, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO webhook_endpoints (id, workspace_id, url, secret, events, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + endpointColumns

	return scanEndpoint(q.QueryRow(ctx, query, newID(ep.ID), ep.WorkspaceID, ep.URL, ep.Secret, eventStrings(ep.Events), ep.IsActive))
}

// GetEndpoint implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) GetEndpoint(ctx context.Context, workspaceID, id string) (webhook.Endpoint, error) {
	q := GetQuerier(ctx, r.db)
	return scanEndpoint(q.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = $1 AND workspace_id = $2`, id, workspaceID))
}

// ListEndpoints implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) ListEndpoints(ctx context.Context, workspaceID string) ([]webhook.Endpoint, error) {
	return r.listEndpoints(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE workspace_id = $1 ORDER BY created_at`, workspaceID)
}

// ListActiveEndpoints implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) ListActiveEndpoints(ctx context.Context, workspaceID string) ([]webhook.Endpoint, error) {
	return r.listEndpoints(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE workspace_id = $1 AND is_active ORDER BY created_at`, workspaceID)
}

// UpdateEndpoint implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) UpdateEndpoint(ctx context.Context, ep webhook.Endpoint) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE webhook_endpoints
		SET url = $1, secret = $2, events = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5 AND workspace_id = $6
	`
	return execOne(ctx, q, query, ep.URL, ep.Secret, eventStrings(ep.Events), ep.IsActive, ep.ID, ep.WorkspaceID)
}

// DeleteEndpoint implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) DeleteEndpoint(ctx context.Context, workspaceID, id string) error {
	q := GetQuerier(ctx, r.db)
	return execOne(ctx, q, `DELETE FROM webhook_endpoints WHERE id = $1 AND workspace_id = $2`, id, workspaceID)
}

// ==================== Deliveries ====================

const deliverySelect = `
	SELECT d.id, d.endpoint_id, d.event, d.payload, d.status, d.attempts, d.response_code, d.last_error,
		   d.next_attempt_at, d.delivered_at, d.created_at,
		   e.url, e.secret
	FROM webhook_deliveries d
	JOIN webhook_endpoints e ON e.id = d.endpoint_id
`

func scanDelivery(row interface{ Scan(dest ...any) error }) (webhook.Delivery, error) {
	var d webhook.Delivery
	err := row.Scan(
		&d.ID, &d.EndpointID, &d.Event, &d.Payload, &d.Status, &d.Attempts, &d.ResponseCode, &d.LastError,
		&d.NextAttemptAt, &d.DeliveredAt, &d.CreatedAt,
		&d.URL, &d.Secret,
	)
	return d, err
}

func (r *webhookRepositoryImpl) listDeliveries(ctx context.Context, query string, args ...any) ([]webhook.Delivery, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []webhook.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// CreateDelivery implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) CreateDelivery(ctx context.Context, d webhook.Delivery) error {
	q := GetQuerier(ctx, r.db)

	nextAttempt := d.NextAttemptAt
	if nextAttempt.IsZero() {
		nextAttempt = time.Now()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, endpoint_id, event, payload, status, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newID(d.ID), d.EndpointID, d.Event, d.Payload, d.Status, nextAttempt,
	)
	return err
}

// GetDelivery implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) GetDelivery(ctx context.Context, workspaceID, id string) (webhook.Delivery, error) {
	q := GetQuerier(ctx, r.db)
	return scanDelivery(q.QueryRow(ctx, deliverySelect+` WHERE d.id = $1 AND e.workspace_id = $2`, id, workspaceID))
}

// ListDeliveries implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) ListDeliveries(ctx context.Context, endpointID string, page, limit int) ([]webhook.Delivery, int64, error) {
	q := GetQuerier(ctx, r.db)

	var total int64
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_deliveries WHERE endpoint_id = $1`, endpointID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(page, limit)
	deliveries, err := r.listDeliveries(ctx, deliverySelect+`
		WHERE d.endpoint_id = $1
		ORDER BY d.created_at DESC
		LIMIT $2 OFFSET $3`, endpointID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return deliveries, total, nil
}

// ListDueDeliveries implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]webhook.Delivery, error) {
	return r.listDeliveries(ctx, deliverySelect+`
		WHERE d.status IN ('pending', 'retrying') AND d.next_attempt_at <= $1 AND e.is_active
		ORDER BY d.next_attempt_at
		LIMIT $2`, now, limit)
}

// UpdateDelivery implements webhook.WebhookRepository.
func (r *webhookRepositoryImpl) UpdateDelivery(ctx context.Context, d webhook.Delivery) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE webhook_deliveries
		SET status = $1, attempts = $2, response_code = $3, last_error = $4, next_attempt_at = $5, delivered_at = $6
		WHERE id = $7
	`
	return execOne(ctx, q, query, d.Status, d.Attempts, d.ResponseCode, d.LastError, d.NextAttemptAt, d.DeliveredAt, d.ID)
}
