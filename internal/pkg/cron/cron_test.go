package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/invoice"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/recurring"
)

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler()
	var order []string
	s.Register(Job{Name: "a", Every: time.Hour, Run: func(ctx context.Context) error {
		order = append(order, "a")
		return errors.New("boom")
	}})
	s.Register(Job{Name: "b", Every: time.Minute, Run: func(ctx context.Context) error {
		order = append(order, "b")
		panic("unexpected")
	}})
	s.Register(Job{Name: "c", Every: time.Minute, Run: func(ctx context.Context) error {
		order = append(order, "c")
		return nil
	}})

	err := s.RunOnce(context.Background())
	assert.Equal(t, []string{"a", "b", "c"}, order, "a failing job does not stop the next one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "b: panic: unexpected")

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, time.Minute, jobs[1].Every)
}

func TestScheduler_TimeoutBoundsRun(t *testing.T) {
	s := NewScheduler()
	s.Register(Job{Name: "slow", Every: time.Hour, Timeout: 10 * time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler()
	ran := make(chan struct{}, 1)
	s.Register(Job{Name: "tick", Every: time.Hour, Run: func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})

	s.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
	s.Stop()
	s.Stop()
}

func TestBillingJobs_Registered(t *testing.T) {
	s := NewScheduler()
	NewBillingJobs(nil, nil, nil, nil, nil, nil, nil).RegisterJobs(s)

	names := make([]string, 0)
	for _, job := range s.Jobs() {
		assert.Positive(t, job.Every, job.Name)
		assert.Positive(t, job.Timeout, job.Name)
		assert.Less(t, job.Timeout, job.Every, job.Name)
		names = append(names, job.Name)
	}
	assert.Contains(t, names, JobDeliverWebhooks)
	assert.Contains(t, names, JobReconcilePayments)
	assert.Len(t, names, 9)
}

type fakeInvoices struct {
	invoice.InvoiceService
	day     time.Time
	flagged []invoice.Invoice
}

func (f *fakeInvoices) MarkOverdue(ctx context.Context, day time.Time) ([]invoice.Invoice, error) {
	f.day = day
	return f.flagged, nil
}

type fakeRecurring struct {
	recurring.RecurringService
	failures []string
}

func (f *fakeRecurring) RecordPaymentFailure(ctx context.Context, invoiceID, errorCode, message string) error {
	f.failures = append(f.failures, invoiceID+":"+errorCode)
	return nil
}

func TestBillingJobs_MarkOverdue(t *testing.T) {
	due := time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)
	invoices := &fakeInvoices{flagged: []invoice.Invoice{
		{ID: "inv-1", InvoiceNumber: "INV-2025-0001", SourceType: invoice.SourceRecurring, DueDate: due},
		{ID: "inv-2", InvoiceNumber: "INV-2025-0002", SourceType: invoice.SourceManual, DueDate: due},
	}}
	rec := &fakeRecurring{}

	jobs := NewBillingJobs(rec, invoices, nil, nil, nil, nil, nil)
	jobs.now = func() time.Time { return time.Date(2025, 5, 2, 15, 30, 0, 0, time.UTC) }

	n, err := jobs.MarkOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), invoices.day)
	assert.Equal(t, []string{"inv-1:OVERDUE"}, rec.failures)
}
