package estimate

import "errors"

var (
	ErrEstimateNotFound   = errors.New("estimate not found")
	ErrNotDraft           = errors.New("only draft estimates can be changed")
	ErrCannotSend         = errors.New("estimate cannot be sent in its current status")
	ErrCannotRespond      = errors.New("estimate can no longer be approved or declined")
	ErrAlreadyInvoiced    = errors.New("estimate already converted to invoice")
	ErrCannotConvert      = errors.New("void or declined estimates cannot be converted")
	ErrClientNotFound     = errors.New("client not found")
	ErrClientEmailMissing = errors.New("client has no email address")
	ErrPDFUnavailable     = errors.New("estimate PDF is not available")
)
