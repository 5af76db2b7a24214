package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/auth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/estimate"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invitation"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/mfa"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/payment"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/reminder"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/report"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/webhook"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/validator"
)

var (
	notFound = []error{
		user.ErrUserNotFound,
		workspace.ErrWorkspaceNotFound,
		workspace.ErrMemberNotFound,
		invitation.ErrInvitationNotFound,
		client.ErrClientNotFound,
		invoice.ErrInvoiceNotFound,
		invoice.ErrClientNotFound,
		estimate.ErrEstimateNotFound,
		estimate.ErrClientNotFound,
		payment.ErrPaymentNotFound,
		recurring.ErrScheduleNotFound,
		recurring.ErrExecutionNotFound,
		expense.ErrExpenseNotFound,
		expense.ErrCategoryNotFound,
		expense.ErrVendorNotFound,
		expense.ErrAttachmentNotFound,
		report.ErrSharedLinkNotFound,
		reminder.ErrRuleNotFound,
		webhook.ErrEndpointNotFound,
		webhook.ErrDeliveryNotFound,
		notification.ErrNotificationNotFound,
	}

	conflict = []error{
		user.ErrUserEmailExists,
		user.ErrUsernameExists,
		user.ErrOAuthProviderIDExists,
		auth.ErrEmailAlreadyVerified,
		workspace.ErrAlreadyMember,
		workspace.ErrSlugTaken,
		invitation.ErrInvitationAlreadyUsed,
		invitation.ErrCannotRevokeAccepted,
		invitation.ErrNotPending,
		client.ErrClientHasInvoices,
		invoice.ErrInvalidTransition,
		invoice.ErrNotDraft,
		invoice.ErrCannotSend,
		invoice.ErrCannotRecordPayment,
		invoice.ErrDuplicateNumber,
		estimate.ErrNotDraft,
		estimate.ErrCannotSend,
		estimate.ErrCannotRespond,
		estimate.ErrAlreadyInvoiced,
		estimate.ErrCannotConvert,
		payment.ErrInvoiceNotPayable,
		recurring.ErrScheduleNotActive,
		recurring.ErrScheduleNotPaused,
		recurring.ErrScheduleClosed,
		recurring.ErrScheduleNotRunnable,
		recurring.ErrScheduleNotEditable,
		recurring.ErrAlreadyGenerated,
		expense.ErrCategoryNameExists,
		expense.ErrVendorNameExists,
		expense.ErrInvalidTransition,
		expense.ErrNotEditable,
		expense.ErrAlreadyBilled,
		expense.ErrInvoiceNotDraft,
		mfa.ErrAlreadyEnabled,
	}

	badRequest = []error{
		workspace.ErrInvalidRole,
		workspace.ErrCannotAssignOwner,
		workspace.ErrCannotChangeOwner,
		workspace.ErrCannotRemoveOwner,
		workspace.ErrOwnerCannotLeave,
		workspace.ErrInvalidLogoType,
		workspace.ErrUnsupportedGateway,
		invitation.ErrInviteOwnerRole,
		invoice.ErrPaymentExceedsAmountDue,
		invoice.ErrInvalidPaymentAmount,
		invoice.ErrReasonRequired,
		invoice.ErrClientEmailMissing,
		estimate.ErrClientEmailMissing,
		payment.ErrIdempotencyKeyRequired,
		payment.ErrAmountMustMatchDue,
		payment.ErrUnknownProvider,
		payment.ErrInvalidPayload,
		payment.ErrMissingEventID,
		payment.ErrMissingReference,
		recurring.ErrClientNotInWorkspace,
		recurring.ErrNoExecution,
		expense.ErrRejectionReasonRequired,
		expense.ErrNotBillable,
		expense.ErrAttachmentType,
		report.ErrInvalidDateRange,
		report.ErrUnknownReportType,
		report.ErrInvalidGroupBy,
		mfa.ErrNotSetUp,
		mfa.ErrNotEnabled,
		auth.ErrInvalidOAuthState,
		auth.ErrPasswordNotSet,
	}

	unauthorized = []error{
		auth.ErrInvalidCredentials,
		auth.ErrInvalidToken,
		auth.ErrTokenExpired,
		auth.ErrRefreshTokenRevoked,
		auth.ErrInvalidMFACode,
		mfa.ErrInvalidCode,
		mfa.ErrInvalidPassword,
		payment.ErrInvalidSignature,
		report.ErrPasswordRequired,
		report.ErrInvalidPassword,
	}

	forbidden = []error{
		auth.ErrEmailNotVerified,
		auth.ErrAccountLocked,
		auth.ErrNoWorkspace,
		workspace.ErrNotAMember,
		invitation.ErrEmailMismatch,
	}

	gone = []error{
		invitation.ErrInvitationExpired,
		invitation.ErrInvitationRevoked,
		report.ErrSharedLinkExpired,
		report.ErrSharedLinkInactive,
	}

	unavailable = []error{
		payment.ErrProviderNotConfigured,
		payment.ErrProviderUnavailable,
		auth.ErrOAuthNotConfigured,
		invoice.ErrPDFUnavailable,
		estimate.ErrPDFUnavailable,
		pdf.ErrPDFDisabled,
	}
)

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case matches(err, notFound):
		NotFound(w, err.Error())
	case matches(err, conflict):
		Conflict(w, err.Error())
	case matches(err, badRequest):
		BadRequest(w, err.Error(), nil)
	case matches(err, unauthorized):
		Unauthorized(w, err.Error())
	case matches(err, forbidden):
		Forbidden(w, err.Error())
	case matches(err, gone):
		Gone(w, err.Error())
	case matches(err, unavailable):
		ServiceUnavailable(w, err.Error())
	case errors.Is(err, payment.ErrRateLimited):
		TooManyRequests(w, err.Error())
	case errors.Is(err, payment.ErrAmountMismatch), errors.Is(err, payment.ErrCurrencyMismatch):
		UnprocessableEntity(w, err.Error())
	case errors.Is(err, workspace.ErrLogoTooLarge), errors.Is(err, expense.ErrAttachmentTooLarge):
		PayloadTooLarge(w, err.Error())

	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
