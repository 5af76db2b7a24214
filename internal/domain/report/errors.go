package report

import "errors"

var (
	ErrInvalidDateRange   = errors.New("end date must not be before start date")
	ErrUnknownReportType  = errors.New("unknown report type")
	ErrInvalidGroupBy     = errors.New("group_by must be day, week or month")
	ErrSharedLinkNotFound = errors.New("shared report link not found")
	ErrSharedLinkExpired  = errors.New("shared report link has expired")
	ErrSharedLinkInactive = errors.New("shared report link is no longer active")
	ErrPasswordRequired   = errors.New("shared report link requires a password")
	ErrInvalidPassword    = errors.New("invalid shared report password")
)
