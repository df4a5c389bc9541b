package ledger

import "errors"

// Error definitions for zero-tolerance error handling. Precondition
// violations and invariant violations both abort the whole operation; the
// distinction matters to callers deciding whether a retry can ever succeed.
var (
	// Precondition violations
	ErrZeroAmount            = errors.New("amount must be positive")
	ErrShutdown              = errors.New("vault is in emergency shutdown")
	ErrTvlCapExceeded        = errors.New("deposit would exceed TVL cap")
	ErrNotRegistered         = errors.New("strategy is not registered")
	ErrAlreadyRegistered     = errors.New("strategy is already registered")
	ErrInvalidStrategy       = errors.New("strategy is invalid")
	ErrAllocationOverflow    = errors.New("aggregate allocation exceeds 100%")
	ErrInvalidQueue          = errors.New("withdrawal queue is invalid")
	ErrInvalidBPS            = errors.New("basis points value is invalid")
	ErrProtectedAsset        = errors.New("cannot sweep the managed asset")
	ErrInsufficientShares    = errors.New("share balance is insufficient")
	ErrInsufficientAllowance = errors.New("share allowance is insufficient")

	// Invariant violations
	ErrLossTooHigh      = errors.New("reported loss exceeds strategy allocation")
	ErrWithdrawMaxLoss  = errors.New("withdrawal loss exceeds configured tolerance")
	ErrExcessWithdrawal = errors.New("strategy returned more than its allocation")

	// Authorization / concurrency
	ErrUnauthorized  = errors.New("caller is not authorized")
	ErrReentrantCall = errors.New("reentrant call rejected")

	// Construction
	ErrInvalidConfig = errors.New("ledger configuration is invalid")
)
