package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/notification"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	appHTTP "github.com/invoiceflow/invoiceflow-backend-go/internal/handler/http"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cache"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/cron"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/email"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/gateway"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/jwt"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/oauth"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/pdf"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/sse"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/storage"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/repository/postgresql"
	authService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/auth"
	clientService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/client"
	estimateService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/estimate"
	expenseService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/service/file"
	invitationService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/invitation"
	invoiceService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/invoice"
	mfaService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/mfa"
	notificationService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/notification"
	paymentService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/payment"
	recurringService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/recurring"
	reminderService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/reminder"
	reportService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/report"
	webhookService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/webhook"
	workspaceService "github.com/invoiceflow/invoiceflow-backend-go/internal/service/workspace"
)

// Store is the shared key-value store: Redis when reachable, in-process otherwise
type Store interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	InvalidateWorkspace(ctx context.Context, workspaceID string) error
}

// App holds the wired services shared by the API server and the CLI
type App struct {
	Config *config.Config
	DB     *database.DB
	Store  Store

	JWT           jwt.Service
	Workspaces    workspace.WorkspaceService
	Notifications notification.NotificationService
	Jobs          *cron.BillingJobs

	handlers appHTTP.Handlers
	closers  []func()
}

// New connects to the database and the cache and wires every service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.NewPostgreSQLDB(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, db.Close)

	a.Store, err = a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) newStore(ctx context.Context) (Store, error) {
	client, err := cache.NewClient(ctx, a.Config.Redis)
	if err != nil {
		if a.Config.App.Env == "production" {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Warn("Redis unavailable, using in-memory cache", "addr", a.Config.Redis.Addr(), "error", err)
		return cache.NewMemoryStore(), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return cache.NewStore(client, "invoiceflow:"), nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	tx := postgresql.NewTransactor(a.DB)

	// Repositories
	userRepo := postgresql.NewUserRepository(a.DB)
	tokenRepo := postgresql.NewTokenRepository(a.DB)
	refreshRepo := postgresql.NewRefreshTokenRepository(a.DB)
	eventRepo := postgresql.NewSecurityEventRepository(a.DB)
	mfaRepo := postgresql.NewMFARepository(a.DB)
	workspaceRepo := postgresql.NewWorkspaceRepository(a.DB)
	invitationRepo := postgresql.NewInvitationRepository(a.DB)
	clientRepo := postgresql.NewClientRepository(a.DB)
	invoiceRepo := postgresql.NewInvoiceRepository(a.DB)
	estimateRepo := postgresql.NewEstimateRepository(a.DB)
	paymentRepo := postgresql.NewPaymentRepository(a.DB)
	scheduleRepo := postgresql.NewScheduleRepository(a.DB)
	expenseRepo := postgresql.NewExpenseRepository(a.DB)
	categoryRepo := postgresql.NewCategoryRepository(a.DB)
	vendorRepo := postgresql.NewVendorRepository(a.DB)
	attachmentRepo := postgresql.NewAttachmentRepository(a.DB)
	reportRepo := postgresql.NewReportRepository(a.DB)
	reminderRepo := postgresql.NewReminderRepository(a.DB)
	webhookRepo := postgresql.NewWebhookRepository(a.DB)
	notificationRepo := postgresql.NewNotificationRepository(a.DB)

	// Infrastructure
	jwtSvc, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration, cfg.JWT.RefreshExpiration, cfg.App.Env == "production")
	if err != nil {
		return fmt.Errorf("failed to initialize jwt service: %w", err)
	}
	a.JWT = jwtSvc

	fileStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Type, err)
	}
	fileSvc := file.NewFileService(fileStorage)

	emailSvc, err := email.NewEmailService(cfg.SMTP)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	renderer := pdf.New(cfg.PDF)
	googleSvc := oauth.NewGoogleService(cfg.OAuth2Google)
	gateways := gateway.NewFromConfig(cfg)

	// Services
	notifSvc := notificationService.NewNotificationService(notificationRepo, sse.NewHub(), notificationService.Config{})
	a.Notifications = notifSvc
	a.closers = append(a.closers, notifSvc.Stop)

	webhookSvc := webhookService.NewWebhookService(webhookRepo, &http.Client{Timeout: cfg.Security.OutboundWebhookWait})
	reportSvc := reportService.NewReportService(reportRepo, a.Store, scheduleRepo)

	workspaceSvc := workspaceService.NewWorkspaceService(tx, workspaceRepo, categoryRepo, reminderRepo, fileSvc)
	a.Workspaces = workspaceSvc
	mfaSvc := mfaService.NewMFAService(userRepo, mfaRepo, eventRepo)
	authSvc := authService.NewAuthService(tx, authService.Repositories{
		Users:         userRepo,
		Tokens:        tokenRepo,
		RefreshTokens: refreshRepo,
		Events:        eventRepo,
		MFA:           mfaRepo,
		Workspaces:    workspaceRepo,
	}, workspaceSvc, mfaSvc, jwtSvc, googleSvc, emailSvc, authService.Options{
		FrontendURL:      cfg.App.FrontendURL,
		MaxLoginAttempts: cfg.Security.MaxLoginAttempts,
		LockoutDuration:  cfg.Security.LockoutDuration,
	})
	invitationSvc := invitationService.NewInvitationService(tx, invitationRepo, workspaceRepo, userRepo, emailSvc, cfg.Invitation.BaseURL, cfg.Invitation.ExpiryDays)
	clientSvc := clientService.NewClientService(clientRepo, workspaceRepo, invoiceRepo, paymentRepo)

	invoiceSvc := invoiceService.NewInvoiceService(tx, invoiceService.Repositories{
		Invoices:   invoiceRepo,
		Clients:    clientRepo,
		Workspaces: workspaceRepo,
	}, webhookSvc, notifSvc, reportSvc, emailSvc, renderer, fileSvc, cfg.App.FrontendURL)
	estimateSvc := estimateService.NewEstimateService(tx, estimateRepo, clientRepo, workspaceRepo, invoiceSvc,
		webhookSvc, notifSvc, emailSvc, renderer, fileSvc, cfg.App.FrontendURL)
	recurringSvc := recurringService.NewRecurringService(tx, recurringService.Repositories{
		Schedules:  scheduleRepo,
		Clients:    clientRepo,
		Workspaces: workspaceRepo,
		Users:      userRepo,
	}, invoiceSvc, notifSvc, emailSvc)
	paymentSvc := paymentService.NewPaymentService(tx, paymentRepo, invoiceSvc, workspaceRepo, paymentService.Dependencies{
		Gateways:    gateways,
		Idempotency: a.Store,
		Limiter:     a.Store,
		Webhooks:    webhookSvc,
		Notifier:    notifSvc,
		Recurring:   recurringSvc,
		Reports:     reportSvc,
		Email:       emailSvc,
	})
	expenseSvc := expenseService.NewExpenseService(tx, expenseService.Repositories{
		Expenses:    expenseRepo,
		Categories:  categoryRepo,
		Vendors:     vendorRepo,
		Attachments: attachmentRepo,
		Clients:     clientRepo,
		Workspaces:  workspaceRepo,
	}, invoiceSvc, fileSvc, reportSvc)
	reminderSvc := reminderService.NewReminderService(reminderRepo, invoiceRepo, workspaceRepo, emailSvc, cfg.App.FrontendURL)

	a.Jobs = cron.NewBillingJobs(recurringSvc, invoiceSvc, estimateSvc, reminderSvc, paymentSvc, webhookSvc, invitationSvc)

	secureCookies := cfg.App.Env == "production"
	a.handlers = appHTTP.Handlers{
		Auth:         appHTTP.NewAuthHandler(jwtSvc, authSvc, cfg.App.FrontendURL, secureCookies),
		MFA:          appHTTP.NewMFAHandler(mfaSvc),
		Workspace:    appHTTP.NewWorkspaceHandler(workspaceSvc),
		Invitation:   appHTTP.NewInvitationHandler(invitationSvc),
		Client:       appHTTP.NewClientHandler(clientSvc),
		Invoice:      appHTTP.NewInvoiceHandler(invoiceSvc, paymentSvc),
		Estimate:     appHTTP.NewEstimateHandler(estimateSvc),
		Payment:      appHTTP.NewPaymentHandler(paymentSvc),
		Recurring:    appHTTP.NewRecurringHandler(recurringSvc),
		Expense:      appHTTP.NewExpenseHandler(expenseSvc),
		Report:       appHTTP.NewReportHandler(reportSvc),
		Reminder:     appHTTP.NewReminderHandler(reminderSvc),
		Webhook:      appHTTP.NewWebhookHandler(webhookSvc),
		Notification: appHTTP.NewNotificationHandler(notifSvc, jwtSvc),
		Public:       appHTTP.NewPublicHandler(invoiceSvc, estimateSvc, reportSvc),
	}
	return nil
}

// Router builds the HTTP API
func (a *App) Router(logger *slog.Logger) http.Handler {
	cfg := a.Config
	rc := appHTTP.RouterConfig{
		Logger:            logger,
		CORSOrigins:       cfg.App.CORSOrigins,
		Limiter:           a.Store,
		LoginRateLimit:    cfg.Security.MaxLoginAttempts * 2,
		LoginRateWindow:   cfg.Security.LockoutDuration,
		WebhookRateLimit:  cfg.Security.WebhookRateLimit,
		WebhookRateWindow: cfg.Security.WebhookRateWindow,
	}
	if cfg.Storage.Type == "local" {
		rc.UploadsDir = cfg.Storage.BasePath
	}
	return appHTTP.NewRouter(rc, a.JWT, a.Workspaces, a.handlers)
}

// Close stops background workers and releases connections in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
