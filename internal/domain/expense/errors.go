package expense

import "errors"

var (
	ErrExpenseNotFound         = errors.New("expense not found")
	ErrCategoryNotFound        = errors.New("expense category not found")
	ErrCategoryNameExists      = errors.New("expense category name already exists")
	ErrVendorNotFound          = errors.New("vendor not found")
	ErrVendorNameExists        = errors.New("vendor name already exists")
	ErrAttachmentNotFound      = errors.New("attachment not found")
	ErrInvalidTransition       = errors.New("expense status does not allow this action")
	ErrNotEditable             = errors.New("billed or reimbursed expenses cannot be changed")
	ErrRejectionReasonRequired = errors.New("rejection reason is required")
	ErrNotBillable             = errors.New("expense is not billable")
	ErrAlreadyBilled           = errors.New("expense is already billed")
	ErrInvoiceNotDraft         = errors.New("expenses can only be billed to draft invoices")
	ErrAttachmentTooLarge      = errors.New("attachment exceeds 10 MB")
	ErrAttachmentType          = errors.New("attachment type not allowed")
)
