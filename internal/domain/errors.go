package domain

import "fmt"

// The engine surfaces failures as typed error values so callers can branch on
// kind with errors.As. No component recovers silently from a division by zero
// or retries; retry belongs to the orchestration layer.

// ValidationError reports malformed input data (budgets, dates, percent complete)
type ValidationError struct {
	Scope  string // task or project ID
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %q: %s", e.Scope, e.Reason)
}

// MissingActualCostError reports an absent actual cost where one is required.
// Actual cost is external ground truth and is never derived internally.
type MissingActualCostError struct {
	TaskID string
}

func (e *MissingActualCostError) Error() string {
	return fmt.Sprintf("actual cost missing for task %q", e.TaskID)
}

// ConsistencyError reports a violated aggregate invariant, e.g. a project
// budget that does not equal the sum of task budgets.
type ConsistencyError struct {
	Scope  string
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency violation in %q: %s", e.Scope, e.Reason)
}

// InsufficientHistoryError reports that rate-based forecasting is impossible
// because no calendar time has elapsed since project start.
type InsufficientHistoryError struct {
	ProjectID   string
	ElapsedDays float64
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for project %q: %.2f elapsed days", e.ProjectID, e.ElapsedDays)
}

// InvalidTrialCountError reports a Monte Carlo trial count below 1
type InvalidTrialCountError struct {
	Trials int
}

func (e *InvalidTrialCountError) Error() string {
	return fmt.Sprintf("invalid trial count %d: must be >= 1", e.Trials)
}

// MalformedCorrelationMatrixError reports a correlation matrix that is not
// symmetric positive semi-definite (or does not match the task count)
type MalformedCorrelationMatrixError struct {
	Reason string
}

func (e *MalformedCorrelationMatrixError) Error() string {
	return fmt.Sprintf("malformed correlation matrix: %s", e.Reason)
}

// UnknownParameterError reports a sensitivity parameter name that was never registered
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown sensitivity parameter %q", e.Name)
}

// PartialSimulationError reports a simulation cut short by its wall-clock
// budget. Result carries the trials that did complete; a Monte Carlo run
// degrades gracefully with fewer trials, so partial output is surfaced
// instead of discarded.
type PartialSimulationError struct {
	Completed int
	Requested int
	Result    *SimulationResult
}

func (e *PartialSimulationError) Error() string {
	return fmt.Sprintf("simulation timed out after %d of %d trials", e.Completed, e.Requested)
}
