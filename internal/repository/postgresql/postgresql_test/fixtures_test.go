package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/client"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/user"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/repository/postgresql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db        *database.DB
	user      user.User
	workspace workspace.Workspace
	client    client.Client
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := setupDB(t)
	ctx := context.Background()

	hash := "$2a$10$abcdefghijklmnopqrstuv"
	u, err := postgresql.NewUserRepository(db).Create(ctx, user.User{
		Email:        "owner@example.com",
		Username:     "owner",
		PasswordHash: &hash,
		FirstName:    "Ada",
	})
	require.NoError(t, err)

	wsRepo := postgresql.NewWorkspaceRepository(db)
	ws, err := wsRepo.Create(ctx, workspace.Workspace{Name: "Acme", Slug: "acme", OwnerID: u.ID})
	require.NoError(t, err)
	_, err = wsRepo.AddMember(ctx, workspace.Member{WorkspaceID: ws.ID, UserID: u.ID, Role: workspace.RoleOwner})
	require.NoError(t, err)

	c, err := postgresql.NewClientRepository(db).Create(ctx, client.Client{
		WorkspaceID: ws.ID,
		Name:        "Globex",
		Email:       "billing@globex.test",
		Currency:    "USD",
		Tags:        []string{"vip"},
	})
	require.NoError(t, err)

	return fixture{db: db, user: u, workspace: ws, client: c}
}

func (f fixture) invoice(t *testing.T, number string, status invoice.Status, due time.Time, total string) invoice.Invoice {
	t.Helper()
	amount := decimal.RequireFromString(total)
	inv, err := postgresql.NewInvoiceRepository(f.db).Create(context.Background(), invoice.Invoice{
		WorkspaceID:   f.workspace.ID,
		ClientID:      f.client.ID,
		CreatedBy:     &f.user.ID,
		InvoiceNumber: number,
		Status:        status,
		SourceType:    invoice.SourceManual,
		IssueDate:     due.AddDate(0, 0, -30),
		DueDate:       due,
		Currency:      "USD",
		ExchangeRate:  decimal.NewFromInt(1),
		Subtotal:      amount,
		TotalAmount:   amount,
		AmountDue:     amount,
		TaxMode:       invoice.TaxExclusive,
		DiscountType:  invoice.DiscountFlat,
		PublicToken:   "tok-" + number,
		Items: []invoice.Item{{
			Description:  "Consulting",
			Quantity:     decimal.NewFromInt(1),
			UnitPrice:    amount,
			DiscountType: invoice.DiscountFlat,
			Subtotal:     amount,
			Total:        amount,
		}},
	})
	require.NoError(t, err)
	return inv
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
