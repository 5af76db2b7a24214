package recurring

import "errors"

var (
	ErrScheduleNotFound     = errors.New("recurring schedule not found")
	ErrScheduleNotActive    = errors.New("only active schedules can be paused")
	ErrScheduleNotPaused    = errors.New("only paused schedules can be resumed")
	ErrScheduleClosed       = errors.New("schedule is already cancelled or completed")
	ErrScheduleNotRunnable  = errors.New("only active schedules can be run")
	ErrScheduleNotEditable  = errors.New("cancelled or completed schedules cannot be edited")
	ErrAlreadyGenerated     = errors.New("invoice already generated for this run date")
	ErrNotDue               = errors.New("schedule is not due")
	ErrExecutionNotFound    = errors.New("schedule execution not found")
	ErrNoExecution          = errors.New("schedule has no successful execution to attach the payment to")
	ErrClientNotInWorkspace = errors.New("client does not belong to this workspace")
)
