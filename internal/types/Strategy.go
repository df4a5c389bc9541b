/*

This file contains the per-strategy bookkeeping types shared by the ledger,
the state store, and the web layer.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// StrategyParams is the vault-side record for a registered strategy.
// A record is created at registration and zeroed (never deleted) on revocation;
// Activation.IsZero() is the sentinel for "not registered".
type StrategyParams struct {
	Activation time.Time   `json:"activation"`  // Registration timestamp; zero means unregistered
	AllocBPS   uint64      `json:"alloc_bps"`   // Target share of managed assets, in basis points
	Allocated  sdkmath.Int `json:"allocated"`   // Capital currently lent to the strategy
	Gains      sdkmath.Int `json:"gains"`       // Lifetime reported gains, monotonic
	Losses     sdkmath.Int `json:"losses"`      // Lifetime reported losses, monotonic
	LastReport time.Time   `json:"last_report"` // Timestamp of the strategy's last report
}

// StrategyReportRecord is one reconciliation event, persisted per report call.
type StrategyReportRecord struct {
	RecordID  int64       `json:"record_id,omitempty"` // Auto-incremented by DB
	Strategy  string      `json:"strategy"`
	Gain      sdkmath.Int `json:"gain"`
	Loss      sdkmath.Int `json:"loss"`
	Repayment sdkmath.Int `json:"repayment"` // Capital the strategy actually returned
	Credit    sdkmath.Int `json:"credit"`    // Capital the vault pushed to the strategy
	Debt      sdkmath.Int `json:"debt"`      // Outstanding debt after the report
	Allocated sdkmath.Int `json:"allocated"` // Strategy allocation after the report
	AllocBPS  uint64      `json:"alloc_bps"`
	Timestamp time.Time   `json:"timestamp"`
}
