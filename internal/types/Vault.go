/*

This file contains snapshot types describing the vault's state at a point in
time, used for persistence and the dashboard API.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// StrategySnapshot is the per-strategy slice of a VaultSnapshot.
type StrategySnapshot struct {
	Address    string      `json:"address"`
	AllocBPS   uint64      `json:"alloc_bps"`
	Allocated  sdkmath.Int `json:"allocated"`
	Gains      sdkmath.Int `json:"gains"`
	Losses     sdkmath.Int `json:"losses"`
	LastReport time.Time   `json:"last_report"`
}

// VaultSnapshot captures the full accounting state of the vault.
type VaultSnapshot struct {
	SnapshotID        int64              `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	Timestamp         time.Time          `json:"timestamp"`
	Asset             string             `json:"asset"`
	TotalSupply       sdkmath.Int        `json:"total_supply"`
	TotalAssets       sdkmath.Int        `json:"total_assets"`
	IdleAssets        sdkmath.Int        `json:"idle_assets"` // On-hand balance, not lent out
	TotalAllocated    sdkmath.Int        `json:"total_allocated"`
	TotalAllocBPS     uint64             `json:"total_alloc_bps"`
	LockedProfit      sdkmath.Int        `json:"locked_profit"`
	PricePerFullShare string             `json:"price_per_full_share"` // Decimal string
	EmergencyShutdown bool               `json:"emergency_shutdown"`
	WithdrawalQueue   []string           `json:"withdrawal_queue"`
	Strategies        []StrategySnapshot `json:"strategies"`
}
