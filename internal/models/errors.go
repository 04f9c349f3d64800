package models

import "errors"

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrPlanNotCompoundable = errors.New("plan does not allow compounding")
	ErrPlanInactive        = errors.New("plan is not active")
	ErrInvalidPlan         = errors.New("invalid plan configuration")
	ErrPoolClosed          = errors.New("pool investment window closed")
	ErrPoolOverLimit       = errors.New("pool capacity exceeded")
	ErrInvalidState        = errors.New("invalid state for this action")
	ErrBusy                = errors.New("resource busy, try again")
	ErrNotFound            = errors.New("not found")
	ErrHoliday             = errors.New("not available on holidays")
	ErrIntegrity           = errors.New("ledger integrity violation")
)

// IsRetryable reports whether the operation may succeed if repeated.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsValidation reports errors caused by the request itself.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInsufficientBalance, ErrInvalidAmount, ErrPlanNotCompoundable, ErrPlanInactive,
		ErrInvalidPlan, ErrPoolClosed, ErrPoolOverLimit, ErrHoliday,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
