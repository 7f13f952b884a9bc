package storage

import "errors"

// Storage error constants
var (
	// ErrNotFound is a generic "not found" error
	ErrNotFound = errors.New("not found")

	// ErrLogNotFound is returned when a log record is not found
	ErrLogNotFound = errors.New("log record not found")

	// ErrAlertNotFound is returned when an alert is not found
	ErrAlertNotFound = errors.New("alert not found")

	// ErrCaseNotFound is returned when a case is not found
	ErrCaseNotFound = errors.New("case not found")

	// ErrCommentNotFound is returned when a case comment is not found
	ErrCommentNotFound = errors.New("comment not found")

	// ErrHostNotFound is returned when a host is not found
	ErrHostNotFound = errors.New("host not found")

	// ErrRuleNotFound is returned when a rule is not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrObservableNotFound is returned when unlinking an observable that
	// is not attached to the case
	ErrObservableNotFound = errors.New("observable not found")

	// ErrDuplicateObservable is returned when linking an observable whose
	// (case_id, type, value) triple already exists on the case
	ErrDuplicateObservable = errors.New("observable already linked to case")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("constraint violation")
)
