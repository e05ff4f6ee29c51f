package service

import (
	"errors"

	"taskforge-sync-server/internal/repository"
)

var (
	ErrConflictNotFound  = errors.New("conflict not found")
	ErrNotAutoResolvable = errors.New("conflict is not auto-resolvable")
	ErrNotUndoable       = errors.New("resolution is no longer undoable")
	ErrDeviceRevoked     = errors.New("device has been revoked")
)

// StaleDecisionError rejects a decision made against a revision set the
// document has since moved past. Detection has already been re-run when this
// is returned.
type StaleDecisionError struct {
	DocumentID string
}

func (e *StaleDecisionError) Error() string {
	return "decision references stale revisions for document " + e.DocumentID
}

// DecisionError reports an unusable external decision (wrong strategy for the
// conflict, missing field choices). Never retried: the caller must submit a
// corrected decision.
type DecisionError struct {
	Reason string
	Cause  error
}

func (e *DecisionError) Error() string {
	if e.Cause != nil {
		return "invalid decision: " + e.Cause.Error()
	}
	return "invalid decision: " + e.Reason
}

func (e *DecisionError) Unwrap() error { return e.Cause }

// ValidationError reports a merged document that failed structural checks.
// The conflict stays queued; resolution can be retried with another strategy.
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string {
	return "merged document failed validation: " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// IsRetryable separates transient failures (persistence hiccups, write-back
// races) from errors that will repeat identically until a human intervenes.
func IsRetryable(err error) bool {
	var decision *DecisionError
	var validation *ValidationError
	var stale *StaleDecisionError
	switch {
	case errors.As(err, &decision),
		errors.As(err, &validation),
		errors.As(err, &stale),
		errors.Is(err, ErrConflictNotFound),
		errors.Is(err, ErrNotAutoResolvable),
		errors.Is(err, ErrNotUndoable):
		return false
	case errors.Is(err, repository.ErrSuperseded):
		return true
	default:
		return true
	}
}
