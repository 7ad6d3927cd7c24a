package database

import "errors"

// Validation failures surfaced to callers. All are recoverable 4xx-style
// outcomes checked with errors.Is; none triggers an internal retry.
var (
	ErrNotFound                   = errors.New("record not found")
	ErrConcurrentModification     = errors.New("record was modified concurrently")
	ErrIllegalTransition          = errors.New("illegal status transition")
	ErrBookingNotEditable         = errors.New("booking is no longer editable")
	ErrUnauthorized               = errors.New("actor is not allowed to perform this operation")
	ErrInvalidState               = errors.New("booking is not in the required status")
	ErrSelfApprovalForbidden      = errors.New("requester cannot approve their own booking")
	ErrDuplicateAssignment        = errors.New("booking already has an assignment")
	ErrIncompleteManualAssignment = errors.New("manual assignment requires both vehicle and driver")
	ErrResourceUnavailable        = errors.New("resource is unavailable for the requested window")
	ErrNoAvailableResource        = errors.New("no available resource for the requested window")
	ErrUnknownResource            = errors.New("unknown resource")
	ErrInvalidWindow              = errors.New("trip window is invalid")
	ErrPastWindow                 = errors.New("trip window starts in the past")
	ErrWindowTooFar               = errors.New("trip window starts too far in the future")
)
