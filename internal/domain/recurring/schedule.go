package recurring

import (
	"fmt"
	"math"
	"time"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/money"
	"github.com/shopspring/decimal"
)

// DateOnly truncates t to midnight UTC
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addMonths adds n calendar months and clamps to the last day of the target month
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// CalculateNextRunDate returns the run date following from
func (s *Schedule) CalculateNextRunDate(from time.Time) time.Time {
	base := DateOnly(from)
	switch s.IntervalType {
	case IntervalWeekly:
		return base.AddDate(0, 0, 7)
	case IntervalBiweekly:
		return base.AddDate(0, 0, 14)
	case IntervalMonthly:
		next := addMonths(base, 1)
		if s.AnchorDay != nil && *s.AnchorDay > 0 {
			day := min(*s.AnchorDay, 28)
			next = time.Date(next.Year(), next.Month(), day, 0, 0, 0, 0, time.UTC)
		}
		return next
	case IntervalQuarterly:
		return addMonths(base, 3)
	case IntervalYearly:
		return addMonths(base, 12)
	case IntervalCustom:
		if s.CustomIntervalDays != nil && *s.CustomIntervalDays > 0 {
			return base.AddDate(0, 0, *s.CustomIntervalDays)
		}
	}
	return base.AddDate(0, 0, DefaultCustomDays)
}

func daysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}

// ProratedAmount returns the amount billed for a run on runDate and whether it was prorated.
// Runs whose distance from the previous run matches the cadence bill the full base amount.
func (s *Schedule) ProratedAmount(runDate time.Time) (decimal.Decimal, bool) {
	if !s.ProrationEnabled || s.LastRunDate == nil {
		return s.BaseAmount, false
	}

	last := DateOnly(*s.LastRunDate)
	expected := daysBetween(last, s.CalculateNextRunDate(last))
	actual := daysBetween(last, runDate)
	if expected <= 0 || actual <= 0 || actual == expected {
		return s.BaseAmount, false
	}

	amount := s.BaseAmount.Mul(decimal.NewFromInt(int64(actual))).Div(decimal.NewFromInt(int64(expected)))
	return money.Round(amount), true
}

// IdempotencyKey identifies the execution of a schedule for one run date
func IdempotencyKey(scheduleID string, runDate time.Time) string {
	return fmt.Sprintf("%s-%s", scheduleID, DateOnly(runDate).Format(time.DateOnly))
}

// InvoiceNumber is the number given to the invoice generated on runDate
func (s *Schedule) InvoiceNumber(runDate time.Time) string {
	return fmt.Sprintf("REC-%d-%s", s.ScheduleNumber, DateOnly(runDate).Format("20060102"))
}

// DueDate is the due date of the invoice generated on runDate
func (s *Schedule) DueDate(runDate time.Time) time.Time {
	return DateOnly(runDate).AddDate(0, 0, s.PaymentTermsDays)
}

// IsDue reports whether the schedule should run on day
func (s *Schedule) IsDue(day time.Time) bool {
	return s.Status == StatusActive && !DateOnly(s.NextRunDate).After(DateOnly(day))
}

// HasEnded reports whether the schedule passed its end date or reached its occurrence cap
func (s *Schedule) HasEnded(day time.Time) bool {
	if s.EndDate != nil && DateOnly(day).After(DateOnly(*s.EndDate)) {
		return true
	}
	return s.MaxOccurrences != nil && s.TotalInvoicesGenerated >= *s.MaxOccurrences
}

// CanRetry reports whether another payment retry may be scheduled
func (s *Schedule) CanRetry() bool {
	return s.RetryEnabled && s.CurrentRetryCount < s.MaxRetryAttempts
}

// RetryDelayHours is int(interval * backoff^retry_count)
func (s *Schedule) RetryDelayHours() int {
	return retryDelay(s.RetryIntervalHours, s.RetryBackoffMultiplier, s.CurrentRetryCount)
}

func retryDelay(intervalHours int, backoff decimal.Decimal, count int) int {
	b, _ := backoff.Float64()
	return int(float64(intervalHours) * math.Pow(b, float64(count)))
}

// RetryStep is one planned retry
type RetryStep struct {
	Attempt    int `json:"attempt"`
	DelayHours int `json:"delay_hours"`
}

// RetrySchedule lists every retry delay from the first attempt.
// The first delay is the interval, each next one is multiplied by the backoff.
func (s *Schedule) RetrySchedule() []RetryStep {
	steps := make([]RetryStep, 0, s.MaxRetryAttempts)
	for i := 0; i < s.MaxRetryAttempts; i++ {
		steps = append(steps, RetryStep{
			Attempt:    i + 1,
			DelayHours: retryDelay(s.RetryIntervalHours, s.RetryBackoffMultiplier, i),
		})
	}
	return steps
}

// ==================== State transitions ====================

// Pause is allowed from active only
func (s *Schedule) Pause(now time.Time, reason string) error {
	if s.Status != StatusActive {
		return ErrScheduleNotActive
	}
	s.Status = StatusPaused
	s.PausedAt = &now
	s.PauseReason = reason
	return nil
}

// Resume is allowed from paused only; a next run date in the past is moved to today
func (s *Schedule) Resume(today time.Time) error {
	if s.Status != StatusPaused {
		return ErrScheduleNotPaused
	}
	s.Status = StatusActive
	s.PausedAt = nil
	s.PauseReason = ""
	if DateOnly(s.NextRunDate).Before(DateOnly(today)) {
		s.NextRunDate = DateOnly(today)
	}
	return nil
}

// Cancel is terminal and rejected for schedules already cancelled or completed
func (s *Schedule) Cancel(now time.Time, reason string) error {
	if s.Status == StatusCancelled || s.Status == StatusCompleted {
		return ErrScheduleClosed
	}
	s.Status = StatusCancelled
	s.CancelledAt = &now
	s.CancellationReason = reason
	return nil
}

// MarkGenerated advances the schedule after an invoice was generated on runDate
func (s *Schedule) MarkGenerated(runDate time.Time, amount decimal.Decimal) {
	run := DateOnly(runDate)
	s.LastRunDate = &run
	s.NextRunDate = s.CalculateNextRunDate(run)
	s.TotalInvoicesGenerated++
	s.TotalAmountBilled = s.TotalAmountBilled.Add(amount)
	if s.MaxOccurrences != nil && s.TotalInvoicesGenerated >= *s.MaxOccurrences {
		s.Status = StatusCompleted
	}
}

// RegisterFailure records a failed payment of the execution's invoice.
// The first failing execution stays the retry target until it is settled.
// It returns true when a retry was scheduled and false when retries are exhausted.
func (s *Schedule) RegisterFailure(now time.Time, executionID string) bool {
	if s.DunningExecutionID == nil {
		s.DunningExecutionID = &executionID
	}
	if !s.CanRetry() {
		s.Status = StatusFailed
		s.NextRetryAt = nil
		return false
	}
	s.CurrentRetryCount++
	next := now.Add(time.Duration(s.RetryDelayHours()) * time.Hour)
	s.NextRetryAt = &next
	return true
}

// RegisterSuccess clears the retry state
func (s *Schedule) RegisterSuccess() {
	s.CurrentRetryCount = 0
	s.NextRetryAt = nil
	s.DunningExecutionID = nil
	s.FailureNotificationSent = false
}

// InDunning reports whether executionID is the execution the retries chase.
// Without a target every execution counts.
func (s *Schedule) InDunning(executionID string) bool {
	return s.DunningExecutionID == nil || *s.DunningExecutionID == executionID
}
