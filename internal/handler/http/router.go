package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http/middleware"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
)

// RouterConfig carries the cross-cutting pieces of the router
type RouterConfig struct {
	Logger      *slog.Logger
	CORSOrigins []string
	UploadsDir  string // served under /uploads when set

	Limiter           middleware.Limiter
	LoginRateLimit    int
	LoginRateWindow   time.Duration
	WebhookRateLimit  int
	WebhookRateWindow time.Duration
}

// Handlers groups every HTTP handler mounted by NewRouter
type Handlers struct {
	Auth         AuthHandler
	MFA          MFAHandler
	Workspace    WorkspaceHandler
	Invitation   InvitationHandler
	Client       ClientHandler
	Invoice      InvoiceHandler
	Estimate     EstimateHandler
	Payment      PaymentHandler
	Recurring    RecurringHandler
	Expense      ExpenseHandler
	Report       ReportHandler
	Reminder     ReminderHandler
	Webhook      WebhookHandler
	Notification NotificationHandler
	Public       PublicHandler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, members middleware.MembershipSource, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", idempotencyHeader, reportPasswordHeader},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "Retry-After"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
		// the SSE stream would otherwise log only when the client disconnects
		Skip: func(req *http.Request, respStatus int) bool {
			return req.URL.Path == "/api/v1/notifications/stream"
		},
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	loginLimit := middleware.RateLimit(cfg.Limiter, "ratelimit:login", cfg.LoginRateLimit, cfg.LoginRateWindow)
	webhookLimit := middleware.RateLimit(cfg.Limiter, "ratelimit:webhook", cfg.WebhookRateLimit, cfg.WebhookRateWindow)
	ws := middleware.NewWorkspaceMiddleware(members)
	perm := middleware.RequirePermission

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/verify-email", h.Auth.VerifyEmail)
			r.Post("/resend-verification", h.Auth.ResendVerification)
			r.Post("/refresh", h.Auth.RefreshToken)
			r.With(loginLimit).Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/reset-password", h.Auth.ResetPassword)
			r.Route("/oauth/callback", func(r chi.Router) {
				r.Get("/google", h.Auth.OAuthCallbackGoogle)
			})

			r.Route("/login", func(r chi.Router) {
				r.With(loginLimit).Post("/", h.Auth.Login)
				r.With(loginLimit).Post("/mfa", h.Auth.LoginMFA)
				r.Route("/oauth", func(r chi.Router) {
					r.Get("/google", h.Auth.LoginWithGoogle)
				})
			})
		})

		// Token-addressed pages for clients
		r.Route("/public", func(r chi.Router) {
			r.Get("/invoices/{token}", h.Public.GetInvoice)
			r.Get("/invoices/{token}/pdf", h.Public.InvoicePDF)
			r.Get("/estimates/{token}", h.Public.GetEstimate)
			r.Post("/estimates/{token}/approve", h.Public.ApproveEstimate)
			r.Post("/estimates/{token}/decline", h.Public.DeclineEstimate)
			r.Get("/reports/{token}", h.Public.GetSharedReport)
			r.Get("/invitations/{token}", h.Invitation.GetInvitationByToken)
		})

		r.With(webhookLimit).Post("/webhooks/{provider}", h.Payment.Webhook)

		// Authenticated with a short-lived query token
		r.Get("/notifications/stream", h.Notification.Stream)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", h.Auth.Me)
				r.Put("/", h.Auth.UpdateProfile)
				r.Post("/password", h.Auth.ChangePassword)
				r.Post("/logout", h.Auth.Logout)
				r.Get("/security-events", h.Auth.SecurityEvents)
				r.Get("/workspaces", h.Workspace.ListMine)
				r.Post("/workspaces/switch", h.Auth.SwitchWorkspace)
				r.Get("/invitations", h.Invitation.ListMyInvitations)
				r.Post("/invitations/{token}/accept", h.Invitation.AcceptInvitation)

				r.Route("/mfa", func(r chi.Router) {
					r.Get("/", h.MFA.Status)
					r.Post("/setup", h.MFA.Setup)
					r.Post("/enable", h.MFA.Enable)
					r.Post("/disable", h.MFA.Disable)
					r.Post("/recovery-codes", h.MFA.RegenerateRecoveryCodes)
				})
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.Notification.List)
				r.Get("/unread-count", h.Notification.UnreadCount)
				r.Post("/read", h.Notification.MarkRead)
				r.Post("/read-all", h.Notification.MarkAllRead)
				r.Delete("/{id}", h.Notification.Delete)
				r.Post("/stream-token", h.Notification.StreamToken)
			})

			// Requires membership of the workspace in the token
			r.Group(func(r chi.Router) {
				r.Use(ws.RequireMembership)

				r.Route("/workspace", func(r chi.Router) {
					r.Get("/", h.Workspace.GetCurrent)
					r.Get("/members", h.Workspace.ListMembers)
					r.Post("/leave", h.Workspace.Leave)

					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionWorkspaceManage))
						r.Put("/", h.Workspace.Update)
						r.Post("/logo", h.Workspace.UploadLogo)
					})
					r.With(perm(workspace.PermissionMemberRole)).Put("/members/{userID}", h.Workspace.UpdateMemberRole)
					r.With(perm(workspace.PermissionMemberManage)).Delete("/members/{userID}", h.Workspace.RemoveMember)
				})

				r.Route("/invitations", func(r chi.Router) {
					r.Use(perm(workspace.PermissionMemberManage))
					r.Get("/", h.Invitation.List)
					r.Post("/", h.Invitation.Create)
					r.Delete("/{id}", h.Invitation.Revoke)
					r.Post("/{id}/resend", h.Invitation.Resend)
				})

				r.Route("/clients", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionInvoiceView))
						r.Get("/", h.Client.List)
						r.Get("/{id}", h.Client.Get)
						r.Get("/{id}/notes", h.Client.ListNotes)
						r.Get("/{id}/statement", h.Client.Statement)
					})
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionClientManage))
						r.Post("/", h.Client.Create)
						r.Put("/{id}", h.Client.Update)
						r.Delete("/{id}", h.Client.Delete)
						r.Post("/{id}/notes", h.Client.AddNote)
					})
				})

				r.Route("/invoices", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionInvoiceView))
						r.Get("/", h.Invoice.List)
						r.Get("/{id}", h.Invoice.Get)
						r.Get("/{id}/pdf", h.Invoice.PDF)
						r.Get("/{id}/activity", h.Invoice.Activity)
					})
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionInvoiceManage))
						r.Post("/", h.Invoice.Create)
						r.Put("/{id}", h.Invoice.Update)
						r.Delete("/{id}", h.Invoice.Delete)
						r.Post("/{id}/duplicate", h.Invoice.Duplicate)
						r.Post("/{id}/send", h.Invoice.Send)
						r.Post("/{id}/status", h.Invoice.Transition)
						r.Post("/{id}/public-token", h.Invoice.RegeneratePublicToken)
					})
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionInvoiceVoid))
						r.Post("/{id}/void", h.Invoice.Void)
						r.Post("/{id}/write-off", h.Invoice.WriteOff)
					})
					r.With(perm(workspace.PermissionPaymentView)).Get("/{id}/payments", h.Invoice.ListPayments)
					r.With(perm(workspace.PermissionPaymentRecord)).Post("/{id}/payments", h.Invoice.RecordPayment)
				})

				r.Route("/estimates", func(r chi.Router) {
					r.With(perm(workspace.PermissionInvoiceView)).Get("/", h.Estimate.List)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}", h.Estimate.Get)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}/pdf", h.Estimate.PDF)
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionEstimate))
						r.Post("/", h.Estimate.Create)
						r.Put("/{id}", h.Estimate.Update)
						r.Delete("/{id}", h.Estimate.Delete)
						r.Post("/{id}/send", h.Estimate.Send)
						r.Post("/{id}/convert", h.Estimate.Convert)
					})
				})

				r.Route("/payments", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionPaymentView))
						r.Get("/", h.Payment.List)
						r.Get("/transactions", h.Payment.Transactions)
						r.Get("/{id}", h.Payment.Get)
						r.Get("/{id}/audit-logs", h.Payment.AuditLogs)
					})
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionPaymentRecord))
						r.Post("/initialize", h.Payment.Initialize)
						r.Post("/{id}/reconcile", h.Payment.Reconcile)
					})
				})

				r.Route("/recurring", func(r chi.Router) {
					r.With(perm(workspace.PermissionInvoiceView)).Get("/", h.Recurring.List)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}", h.Recurring.Get)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}/executions", h.Recurring.Executions)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}/retry-plan", h.Recurring.RetryPlan)
					r.With(perm(workspace.PermissionInvoiceView)).Get("/{id}/audit-logs", h.Recurring.AuditLogs)
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionRecurringManage))
						r.Post("/", h.Recurring.Create)
						r.Put("/{id}", h.Recurring.Update)
						r.Post("/{id}/pause", h.Recurring.Pause)
						r.Post("/{id}/resume", h.Recurring.Resume)
						r.Post("/{id}/cancel", h.Recurring.Cancel)
						r.Post("/{id}/run", h.Recurring.RunNow)
					})
				})

				r.Route("/expenses", func(r chi.Router) {
					r.Use(perm(workspace.PermissionExpenseManage))
					r.Get("/", h.Expense.List)
					r.Post("/", h.Expense.Create)
					r.Get("/summary", h.Expense.Summary)
					r.Get("/profit-and-loss", h.Expense.ProfitAndLoss)
					r.Get("/{id}", h.Expense.Get)
					r.Put("/{id}", h.Expense.Update)
					r.Delete("/{id}", h.Expense.Delete)
					r.Post("/{id}/submit", h.Expense.Submit)
					r.Post("/{id}/bill", h.Expense.Bill)
					r.Get("/{id}/attachments", h.Expense.ListAttachments)
					r.Post("/{id}/attachments", h.Expense.UploadAttachment)
					r.Delete("/{id}/attachments/{attachmentID}", h.Expense.RemoveAttachment)
					r.Get("/{id}/audit-logs", h.Expense.AuditLogs)

					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionExpenseApprove))
						r.Post("/{id}/approve", h.Expense.Approve)
						r.Post("/{id}/reject", h.Expense.Reject)
						r.Post("/{id}/reimburse", h.Expense.Reimburse)
					})
				})

				r.Route("/expense-categories", func(r chi.Router) {
					r.Use(perm(workspace.PermissionExpenseManage))
					r.Get("/", h.Expense.ListCategories)
					r.Post("/", h.Expense.CreateCategory)
					r.Put("/{id}", h.Expense.UpdateCategory)
					r.Delete("/{id}", h.Expense.DeleteCategory)
				})

				r.Route("/vendors", func(r chi.Router) {
					r.Use(perm(workspace.PermissionExpenseManage))
					r.Get("/", h.Expense.ListVendors)
					r.Post("/", h.Expense.CreateVendor)
					r.Get("/{id}", h.Expense.GetVendor)
					r.Put("/{id}", h.Expense.UpdateVendor)
					r.Delete("/{id}", h.Expense.DeleteVendor)
				})

				r.Route("/reports", func(r chi.Router) {
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionReportsShare))
						r.Get("/shared", h.Report.ListSharedLinks)
						r.Post("/shared", h.Report.CreateSharedLink)
						r.Delete("/shared/{id}", h.Report.DeactivateSharedLink)
					})
					r.Group(func(r chi.Router) {
						r.Use(perm(workspace.PermissionReportsView))
						r.Get("/{type}", h.Report.Run)
						r.Get("/{type}/export", h.Report.ExportCSV)
					})
				})

				r.Route("/reminders", func(r chi.Router) {
					r.Use(perm(workspace.PermissionReminderManage))
					r.Get("/", h.Reminder.List)
					r.Post("/", h.Reminder.Create)
					r.Post("/defaults", h.Reminder.SeedDefaults)
					r.Put("/{id}", h.Reminder.Update)
					r.Delete("/{id}", h.Reminder.Delete)
				})

				r.Route("/webhook-endpoints", func(r chi.Router) {
					r.Use(perm(workspace.PermissionWebhookManage))
					r.Get("/", h.Webhook.ListEndpoints)
					r.Post("/", h.Webhook.CreateEndpoint)
					r.Put("/{id}", h.Webhook.UpdateEndpoint)
					r.Delete("/{id}", h.Webhook.DeleteEndpoint)
					r.Get("/{id}/deliveries", h.Webhook.ListDeliveries)
					r.Post("/deliveries/{deliveryID}/redeliver", h.Webhook.Redeliver)
				})
			})
		})
	})
	return r
}
