package types

// VaultParameters holds the tunable policy knobs for a vault instance.
type VaultParameters struct {
	// WithdrawMaxLossBPS is the slippage tolerance, in basis points, for
	// withdrawals that must pull capital from strategies.
	WithdrawMaxLossBPS uint64

	// ProfitUnlockSeconds is the window over which reported profit unlocks
	// into the share price. 0 disables profit locking.
	ProfitUnlockSeconds uint64

	// TvlCap is the maximum managed value, as an integer string. "0" means
	// unlimited.
	TvlCap string
}
