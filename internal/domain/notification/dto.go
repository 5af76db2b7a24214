package notification

import "time"

// Filter selects notifications of one user; an empty WorkspaceID spans every workspace
type Filter struct {
	UserID      string
	WorkspaceID string
	Kind        *Kind
	UnreadOnly  bool
	Page        int
	Limit       int
}

type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=100,dive,uuid"`
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

type NotificationResponse struct {
	ID           string         `json:"id"`
	WorkspaceID  string         `json:"workspace_id,omitempty"`
	Kind         Kind           `json:"kind"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Unread       bool           `json:"unread"`
	ReadAt       *time.Time     `json:"read_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (n Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:           n.ID,
		WorkspaceID:  n.WorkspaceID,
		Kind:         n.Kind,
		Title:        n.Title,
		Body:         n.Body,
		ResourceType: n.ResourceType,
		ResourceID:   n.ResourceID,
		Data:         n.Data,
		Unread:       n.Unread(),
		ReadAt:       n.ReadAt,
		CreatedAt:    n.CreatedAt,
	}
}

// ListResponse is one page of notifications plus the unread badge for the same scope
type ListResponse struct {
	Items       []NotificationResponse `json:"items"`
	Total       int64                  `json:"-"`
	UnreadCount int64                  `json:"unread_count"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

type StreamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Event is one frame written to a notification stream
type Event struct {
	Name         string
	Notification NotificationResponse
}
