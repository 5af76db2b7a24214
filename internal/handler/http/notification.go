package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/response"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

const keepaliveInterval = 30 * time.Second

type NotificationHandler interface {
	List(w http.ResponseWriter, r *http.Request)
	UnreadCount(w http.ResponseWriter, r *http.Request)
	MarkRead(w http.ResponseWriter, r *http.Request)
	MarkAllRead(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type notificationHandlerImpl struct {
	notificationService notification.NotificationService
	jwtService          jwt.Service
}

func NewNotificationHandler(notificationService notification.NotificationService, jwtService jwt.Service) NotificationHandler {
	return &notificationHandlerImpl{
		notificationService: notificationService,
		jwtService:          jwtService,
	}
}

// List accepts workspace_id, kind and unread to narrow the inbox
func (h *notificationHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	filter := notification.Filter{
		UserID:      middleware.UserID(r.Context()),
		WorkspaceID: r.URL.Query().Get("workspace_id"),
		UnreadOnly:  getBoolQueryParam(r, "unread", false),
		Page:        page,
		Limit:       limit,
	}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind := notification.Kind(k)
		if !kind.IsValid() {
			response.BadRequest(w, "Unknown notification kind", nil)
			return
		}
		filter.Kind = &kind
	}

	list, err := h.notificationService.List(r.Context(), filter)
	if err != nil {
		slog.Error("List notifications error", "error", err)
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMeta(w, list, response.NewMeta(page, limit, list.Total))
}

func (h *notificationHandlerImpl) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notificationService.UnreadCount(r.Context(), middleware.UserID(r.Context()), r.URL.Query().Get("workspace_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, notification.UnreadCountResponse{UnreadCount: count})
}

func (h *notificationHandlerImpl) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req notification.MarkReadRequest
	if !decodeJSON(w, r, &req, "MarkRead") {
		return
	}
	if errs := validator.Struct(&req); len(errs) > 0 {
		response.ValidationError(w, errs.ToMap())
		return
	}

	result, err := h.notificationService.MarkRead(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *notificationHandlerImpl) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	result, err := h.notificationService.MarkAllRead(r.Context(), middleware.UserID(r.Context()), r.URL.Query().Get("workspace_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, result)
}

func (h *notificationHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.Delete(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Notification deleted", nil)
}

// StreamToken issues the short-lived token EventSource passes in the query string
func (h *notificationHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	token, expiresIn, err := h.jwtService.GenerateSSEToken(middleware.UserID(r.Context()))
	if err != nil {
		slog.Error("Failed to issue stream token", "error", err)
		response.InternalServerError(w, "Failed to issue stream token")
		return
	}
	response.Success(w, notification.StreamTokenResponse{Token: token, ExpiresIn: expiresIn})
}

// writeFrame writes one server-sent event and flushes it to the client
func writeFrame(w http.ResponseWriter, f http.Flusher, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	f.Flush()
	return nil
}

func (h *notificationHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.Unauthorized(w, "Missing token")
		return
	}
	userID, err := h.jwtService.ValidateSSEToken(token)
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	workspaceID := r.URL.Query().Get("workspace_id")
	events, unsubscribe := h.notificationService.Subscribe(r.Context(), userID, workspaceID)
	defer unsubscribe()

	if err := writeFrame(w, flusher, "connected", map[string]string{"user_id": userID, "workspace_id": workspaceID}); err != nil {
		return
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		var err error
		select {
		case event, open := <-events:
			if !open {
				return
			}
			err = writeFrame(w, flusher, event.Name, event.Notification)
		case now := <-keepalive.C:
			err = writeFrame(w, flusher, "ping", map[string]int64{"timestamp": now.Unix()})
		case <-r.Context().Done():
			return
		}
		if err != nil {
			slog.Debug("Notification stream closed", "user_id", userID, "error", err)
			return
		}
	}
}
