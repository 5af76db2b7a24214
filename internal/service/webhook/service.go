package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/utils"
)

const (
	secretPrefix  = "whsec_"
	secretBytes   = 24
	deliveryBatch = 100
	// maxErrorBody bounds how much of an error response is read
	maxErrorBody = 512
)

type WebhookServiceImpl struct {
	webhook.WebhookRepository
	client *http.Client
	now    func() time.Time
}

// NewWebhookService builds the outbound webhook service. A nil client uses one with the delivery timeout.
func NewWebhookService(webhookRepo webhook.WebhookRepository, client *http.Client) webhook.WebhookService {
	if client == nil {
		client = &http.Client{Timeout: webhook.DeliveryTimeout}
	}
	return &WebhookServiceImpl{
		WebhookRepository: webhookRepo,
		client:            client,
		now:               time.Now,
	}
}

// Dispatch implements webhook.Dispatcher. Deliveries are queued and sent by ProcessPendingDeliveries.
func (s *WebhookServiceImpl) Dispatch(ctx context.Context, workspaceID string, event webhook.Event, data any) {
	endpoints, err := s.ListActiveEndpoints(ctx, workspaceID)
	if err != nil {
		slog.Error("Failed to list webhook endpoints", "workspace_id", workspaceID, "event", event, "error", err)
		return
	}

	now := s.now()
	var payload []byte
	for i := range endpoints {
		if !endpoints[i].Subscribes(event) {
			continue
		}
		if payload == nil {
			payload, err = json.Marshal(webhook.Envelope{
				ID:          uuid.NewString(),
				Event:       event,
				WorkspaceID: workspaceID,
				CreatedAt:   now.UTC(),
				Data:        data,
			})
			if err != nil {
				slog.Error("Failed to encode webhook payload", "event", event, "error", err)
				return
			}
		}

		err := s.CreateDelivery(ctx, webhook.Delivery{
			EndpointID:    endpoints[i].ID,
			Event:         event,
			Payload:       payload,
			Status:        webhook.DeliveryPending,
			NextAttemptAt: now,
		})
		if err != nil {
			slog.Error("Failed to queue webhook delivery", "endpoint_id", endpoints[i].ID, "event", event, "error", err)
		}
	}
}

// CreateEndpoint implements webhook.WebhookService. The secret is only returned here.
func (s *WebhookServiceImpl) CreateEndpoint(ctx context.Context, workspaceID string, req webhook.EndpointRequest) (webhook.EndpointResponse, error) {
	if err := req.Validate(); err != nil {
		return webhook.EndpointResponse{}, err
	}

	token, err := utils.RandomToken(secretBytes)
	if err != nil {
		return webhook.EndpointResponse{}, err
	}
	ep := webhook.Endpoint{
		WorkspaceID: workspaceID,
		URL:         strings.TrimSpace(req.URL),
		Secret:      secretPrefix + token,
		Events:      orEmpty(req.Events),
		IsActive:    true,
	}
	if req.IsActive != nil {
		ep.IsActive = *req.IsActive
	}

	created, err := s.WebhookRepository.CreateEndpoint(ctx, ep)
	if err != nil {
		return webhook.EndpointResponse{}, fmt.Errorf("failed to create webhook endpoint: %w", err)
	}
	slog.Info("Webhook endpoint created", "endpoint_id", created.ID, "workspace_id", workspaceID)
	return created.ToResponse(true), nil
}

// ListEndpoints implements webhook.WebhookService.
func (s *WebhookServiceImpl) ListEndpoints(ctx context.Context, workspaceID string) ([]webhook.EndpointResponse, error) {
	endpoints, err := s.WebhookRepository.ListEndpoints(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]webhook.EndpointResponse, 0, len(endpoints))
	for i := range endpoints {
		out = append(out, endpoints[i].ToResponse(false))
	}
	return out, nil
}

func (s *WebhookServiceImpl) endpoint(ctx context.Context, workspaceID, id string) (webhook.Endpoint, error) {
	ep, err := s.GetEndpoint(ctx, workspaceID, id)
	if err != nil {
		if database.IsNotFound(err) {
			return webhook.Endpoint{}, webhook.ErrEndpointNotFound
		}
		return webhook.Endpoint{}, fmt.Errorf("failed to get webhook endpoint: %w", err)
	}
	return ep, nil
}

// UpdateEndpoint implements webhook.WebhookService.
func (s *WebhookServiceImpl) UpdateEndpoint(ctx context.Context, workspaceID, id string, req webhook.EndpointRequest) (webhook.EndpointResponse, error) {
	if err := req.Validate(); err != nil {
		return webhook.EndpointResponse{}, err
	}

	ep, err := s.endpoint(ctx, workspaceID, id)
	if err != nil {
		return webhook.EndpointResponse{}, err
	}
	ep.URL = strings.TrimSpace(req.URL)
	ep.Events = orEmpty(req.Events)
	if req.IsActive != nil {
		ep.IsActive = *req.IsActive
	}

	if err := s.WebhookRepository.UpdateEndpoint(ctx, ep); err != nil {
		if database.IsNotFound(err) {
			return webhook.EndpointResponse{}, webhook.ErrEndpointNotFound
		}
		return webhook.EndpointResponse{}, fmt.Errorf("failed to update webhook endpoint: %w", err)
	}
	return ep.ToResponse(false), nil
}

// DeleteEndpoint implements webhook.WebhookService.
func (s *WebhookServiceImpl) DeleteEndpoint(ctx context.Context, workspaceID, id string) error {
	if err := s.WebhookRepository.DeleteEndpoint(ctx, workspaceID, id); err != nil {
		if database.IsNotFound(err) {
			return webhook.ErrEndpointNotFound
		}
		return fmt.Errorf("failed to delete webhook endpoint: %w", err)
	}
	return nil
}

// ListDeliveries implements webhook.WebhookService.
func (s *WebhookServiceImpl) ListDeliveries(ctx context.Context, workspaceID, endpointID string, page, limit int) ([]webhook.DeliveryResponse, int64, error) {
	if _, err := s.endpoint(ctx, workspaceID, endpointID); err != nil {
		return nil, 0, err
	}

	deliveries, total, err := s.WebhookRepository.ListDeliveries(ctx, endpointID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	out := make([]webhook.DeliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		out = append(out, deliveries[i].ToResponse())
	}
	return out, total, nil
}

// Redeliver implements webhook.WebhookService. The delivery starts over with a fresh attempt budget and is sent now.
func (s *WebhookServiceImpl) Redeliver(ctx context.Context, workspaceID, deliveryID string) (webhook.DeliveryResponse, error) {
	d, err := s.GetDelivery(ctx, workspaceID, deliveryID)
	if err != nil {
		if database.IsNotFound(err) {
			return webhook.DeliveryResponse{}, webhook.ErrDeliveryNotFound
		}
		return webhook.DeliveryResponse{}, fmt.Errorf("failed to get webhook delivery: %w", err)
	}

	d.Status = webhook.DeliveryPending
	d.Attempts = 0
	d.ResponseCode = nil
	d.LastError = ""
	d.DeliveredAt = nil
	d.NextAttemptAt = s.now()

	if err := s.attempt(ctx, &d); err != nil {
		return webhook.DeliveryResponse{}, err
	}
	return d.ToResponse(), nil
}

// ProcessPendingDeliveries implements webhook.WebhookService.
func (s *WebhookServiceImpl) ProcessPendingDeliveries(ctx context.Context, now time.Time) (webhook.DeliverResult, error) {
	result := webhook.DeliverResult{}

	deliveries, err := s.ListDueDeliveries(ctx, now, deliveryBatch)
	if err != nil {
		return result, fmt.Errorf("failed to list due deliveries: %w", err)
	}

	for i := range deliveries {
		d := &deliveries[i]
		result.Attempted++
		if err := s.attempt(ctx, d); err != nil {
			slog.Error("Failed to save webhook delivery", "delivery_id", d.ID, "error", err)
		}
		if d.Status == webhook.DeliveryDelivered {
			result.Delivered++
		} else {
			result.Failed++
		}
	}

	if result.Attempted > 0 {
		slog.Info("Webhook deliveries processed", "attempted", result.Attempted, "delivered", result.Delivered, "failed", result.Failed)
	}
	return result, nil
}

// attempt posts the delivery once and saves the outcome
func (s *WebhookServiceImpl) attempt(ctx context.Context, d *webhook.Delivery) error {
	code, err := s.post(ctx, d)
	now := s.now()
	switch {
	case err != nil:
		d.RegisterFailure(now, nil, err.Error())
	case code < 200 || code >= 300:
		d.RegisterFailure(now, &code, fmt.Sprintf("endpoint responded with status %d", code))
	default:
		d.RegisterSuccess(now, code)
	}

	if d.Status == webhook.DeliveryFailed {
		slog.Warn("Webhook delivery failed permanently", "delivery_id", d.ID, "endpoint_id", d.EndpointID, "attempts", d.Attempts, "error", d.LastError)
	}

	if err := s.UpdateDelivery(ctx, *d); err != nil {
		return fmt.Errorf("failed to update webhook delivery: %w", err)
	}
	return nil
}

func (s *WebhookServiceImpl) post(ctx context.Context, d *webhook.Delivery) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, webhook.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "InvoiceFlow-Webhooks/1.0")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign(d.Secret, d.Payload))
	req.Header.Set(webhook.EventHeader, string(d.Event))
	req.Header.Set(webhook.DeliveryHeader, d.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if len(body) > 0 {
			slog.Debug("Webhook endpoint error body", "delivery_id", d.ID, "status", resp.StatusCode, "body", string(body))
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
