package webhook

import (
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

type EndpointRequest struct {
	URL      string  `json:"url" validate:"required,max=2000"`
	Events   []Event `json:"events"`
	IsActive *bool   `json:"is_active"`
}

func (r *EndpointRequest) Validate() error {
	errs := validator.Struct(r)
	if r.URL != "" && !validator.IsValidHTTPURL(r.URL) {
		errs.Add("url", "url must be an absolute http or https URL")
	}
	for i, e := range r.Events {
		if !e.IsValid() {
			errs.Add("events["+validator.Itoa(i)+"]", "unknown event "+string(e))
		}
	}
	return errs.OrNil()
}

type EndpointResponse struct {
	ID        string  `json:"id"`
	URL       string  `json:"url"`
	Secret    string  `json:"secret,omitempty"`
	Events    []Event `json:"events"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
}

// ToResponse hides the secret unless withSecret is set
func (ep *Endpoint) ToResponse(withSecret bool) EndpointResponse {
	resp := EndpointResponse{
		ID:        ep.ID,
		URL:       ep.URL,
		Events:    ep.Events,
		IsActive:  ep.IsActive,
		CreatedAt: ep.CreatedAt.Format(time.RFC3339),
	}
	if withSecret {
		resp.Secret = ep.Secret
	}
	return resp
}

type DeliveryResponse struct {
	ID            string         `json:"id"`
	Event         Event          `json:"event"`
	Status        DeliveryStatus `json:"status"`
	Attempts      int            `json:"attempts"`
	ResponseCode  *int           `json:"response_code,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
	NextAttemptAt string         `json:"next_attempt_at"`
	DeliveredAt   *string        `json:"delivered_at,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

func (d *Delivery) ToResponse() DeliveryResponse {
	resp := DeliveryResponse{
		ID:            d.ID,
		Event:         d.Event,
		Status:        d.Status,
		Attempts:      d.Attempts,
		ResponseCode:  d.ResponseCode,
		LastError:     d.LastError,
		NextAttemptAt: d.NextAttemptAt.Format(time.RFC3339),
		CreatedAt:     d.CreatedAt.Format(time.RFC3339),
	}
	if d.DeliveredAt != nil {
		s := d.DeliveredAt.Format(time.RFC3339)
		resp.DeliveredAt = &s
	}
	return resp
}

// Envelope is the JSON body posted to endpoints
type Envelope struct {
	ID          string    `json:"id"`
	Event       Event     `json:"event"`
	WorkspaceID string    `json:"workspace_id"`
	CreatedAt   time.Time `json:"created_at"`
	Data        any       `json:"data"`
}

type DeliverResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}
