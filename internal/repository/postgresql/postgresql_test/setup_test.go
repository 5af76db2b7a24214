package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	sharedOnce sync.Once
	sharedDB   *database.DB
	sharedErr  error
)

// tables lists every table truncated between tests, children first
var tables = []string{
	"webhook_deliveries", "webhook_endpoints", "notifications", "reminder_logs", "reminder_rules",
	"report_access_logs", "shared_report_links", "expense_audit_logs", "expense_attachments", "expenses",
	"vendors", "expense_categories", "recurring_audit_logs", "payment_attempts", "schedule_executions",
	"recurring_schedules", "payment_recoveries", "payment_reconciliations", "webhook_events",
	"payment_audit_logs", "transactions", "payments", "invoice_activities", "invoice_items", "invoices",
	"estimate_activities", "estimate_items", "estimates", "client_notes", "clients", "document_sequences", "invitations",
	"workspace_members", "workspaces", "mfa_profiles", "security_events", "refresh_tokens", "user_tokens", "users",
}

// connectionString returns TEST_DATABASE_URL or starts a throwaway postgres container
func connectionString(ctx context.Context) (string, error) {
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn, nil
	}

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoiceflow_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}
	return container.ConnectionString(ctx, "sslmode=disable")
}

// setupDB returns a migrated database shared by the package and truncates it for t
func setupDB(t *testing.T) *database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	sharedOnce.Do(func() {
		ctx := context.Background()
		dsn, err := connectionString(ctx)
		if err != nil {
			sharedErr = err
			return
		}

		migrator, err := database.NewMigrator(strings.Replace(dsn, "postgres://", "pgx5://", 1))
		if err != nil {
			sharedErr = err
			return
		}
		defer migrator.Close()
		if err := migrator.Up(); err != nil {
			sharedErr = err
			return
		}

		sharedDB, sharedErr = database.NewPostgreSQLDB(dsn)
	})
	if sharedErr != nil {
		t.Skipf("database unavailable: %v", sharedErr)
	}

	truncateAll(t, sharedDB)
	return sharedDB
}

func truncateAll(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	require.NoError(t, err)
}
