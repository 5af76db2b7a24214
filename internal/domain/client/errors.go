package client

import "errors"

var (
	ErrClientNotFound    = errors.New("client not found")
	ErrClientHasInvoices = errors.New("client has invoices and cannot be deleted")
)
