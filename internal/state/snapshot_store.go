// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq" // PostgreSQL driver with array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/msv/internal/types"
)

// SaveVaultSnapshot saves a complete vault snapshot to the database.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	strategiesJSON, err := json.Marshal(snapshot.Strategies)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal strategies: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			snapshot_timestamp, asset,
			total_supply, total_assets, idle_assets, total_allocated, total_alloc_bps,
			locked_profit, price_per_full_share, emergency_shutdown,
			withdrawal_queue, strategies
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.Timestamp, snapshot.Asset,
		snapshot.TotalSupply.String(), snapshot.TotalAssets.String(), snapshot.IdleAssets.String(),
		snapshot.TotalAllocated.String(), snapshot.TotalAllocBPS,
		snapshot.LockedProfit.String(), snapshot.PricePerFullShare, snapshot.EmergencyShutdown,
		pq.Array(snapshot.WithdrawalQueue), strategiesJSON,
	).Scan(&snapshotID)

	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Str("total_assets", snapshot.TotalAssets.String()).
		Str("price_per_full_share", snapshot.PricePerFullShare).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}

// GetRecentSnapshots returns the most recent vault snapshots, newest first.
func GetRecentSnapshots(limit int) ([]types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT snapshot_id, snapshot_timestamp, asset,
		       total_supply, total_assets, idle_assets, total_allocated, total_alloc_bps,
		       locked_profit, price_per_full_share, emergency_shutdown,
		       withdrawal_queue, strategies
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []types.VaultSnapshot
	for rows.Next() {
		var (
			s                                                           types.VaultSnapshot
			ts                                                          time.Time
			supply, totalAssets, idle, allocated, lockedProfit, price   string
			queue                                                       pq.StringArray
			strategiesJSON                                              []byte
		)
		if err := rows.Scan(
			&s.SnapshotID, &ts, &s.Asset,
			&supply, &totalAssets, &idle, &allocated, &s.TotalAllocBPS,
			&lockedProfit, &price, &s.EmergencyShutdown,
			&queue, &strategiesJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vault snapshot row: %w", err)
		}
		s.Timestamp = ts
		s.PricePerFullShare = price
		s.WithdrawalQueue = []string(queue)
		if s.TotalSupply, err = parseIntColumn("total_supply", supply); err != nil {
			return nil, err
		}
		if s.TotalAssets, err = parseIntColumn("total_assets", totalAssets); err != nil {
			return nil, err
		}
		if s.IdleAssets, err = parseIntColumn("idle_assets", idle); err != nil {
			return nil, err
		}
		if s.TotalAllocated, err = parseIntColumn("total_allocated", allocated); err != nil {
			return nil, err
		}
		if s.LockedProfit, err = parseIntColumn("locked_profit", lockedProfit); err != nil {
			return nil, err
		}
		if len(strategiesJSON) > 0 {
			if err := json.Unmarshal(strategiesJSON, &s.Strategies); err != nil {
				return nil, fmt.Errorf("failed to unmarshal strategies: %w", err)
			}
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return snapshots, nil
}

// GetVaultSummary aggregates headline figures for the dashboard.
func GetVaultSummary() (map[string]interface{}, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	snapshots, err := GetRecentSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return map[string]interface{}{"snapshots": 0}, nil
	}
	latest := snapshots[0]

	var reportCount int
	if err := DB.QueryRow(`SELECT COUNT(*) FROM strategy_reports;`).Scan(&reportCount); err != nil {
		return nil, fmt.Errorf("failed to count strategy reports: %w", err)
	}

	return map[string]interface{}{
		"asset":                latest.Asset,
		"total_assets":         latest.TotalAssets.String(),
		"total_supply":         latest.TotalSupply.String(),
		"price_per_full_share": latest.PricePerFullShare,
		"total_allocated":      latest.TotalAllocated.String(),
		"total_alloc_bps":      latest.TotalAllocBPS,
		"emergency_shutdown":   latest.EmergencyShutdown,
		"strategy_count":       len(latest.Strategies),
		"report_count":         reportCount,
		"as_of":                latest.Timestamp,
	}, nil
}
