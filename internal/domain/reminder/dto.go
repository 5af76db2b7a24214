package reminder

import (
	"strings"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

type RuleRequest struct {
	Name         string  `json:"name" validate:"required,max=255"`
	Trigger      Trigger `json:"trigger_type" validate:"required,oneof=before_due on_due after_due"`
	DaysDelta    int     `json:"days_delta" validate:"gte=0,lte=365"`
	IsActive     *bool   `json:"is_active"`
	EmailSubject string  `json:"email_subject" validate:"required,max=255"`
	EmailBody    string  `json:"email_body" validate:"required,max=10000"`
}

func (r *RuleRequest) Validate() error {
	errs := validator.Struct(r)
	if r.Trigger == TriggerOnDue && r.DaysDelta != 0 {
		errs.Add("days_delta", "days_delta must be 0 for on_due rules")
	}
	return errs.OrNil()
}

func (r *RuleRequest) Apply(rule *Rule) {
	rule.Name = strings.TrimSpace(r.Name)
	rule.Trigger = r.Trigger
	rule.DaysDelta = r.DaysDelta
	rule.IsActive = true
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	rule.EmailSubject = r.EmailSubject
	rule.EmailBody = r.EmailBody
}

type RuleResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Trigger      Trigger `json:"trigger_type"`
	DaysDelta    int     `json:"days_delta"`
	IsActive     bool    `json:"is_active"`
	EmailSubject string  `json:"email_subject"`
	EmailBody    string  `json:"email_body"`
	CreatedAt    string  `json:"created_at"`
}

func (r *Rule) ToResponse() RuleResponse {
	return RuleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Trigger:      r.Trigger,
		DaysDelta:    r.DaysDelta,
		IsActive:     r.IsActive,
		EmailSubject: r.EmailSubject,
		EmailBody:    r.EmailBody,
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}

type ProcessResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}
