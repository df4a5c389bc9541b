// ./internal/state/report_store.go
package state

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/msv/internal/types"
)

// SaveStrategyReport persists one strategy reconciliation event.
func SaveStrategyReport(record types.StrategyReportRecord) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `
		INSERT INTO strategy_reports (
			report_timestamp, strategy, gain, loss, repayment, credit, debt, allocated, alloc_bps
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING record_id;
	`

	var recordID int64
	err := DB.QueryRow(
		query,
		record.Timestamp, record.Strategy,
		record.Gain.String(), record.Loss.String(), record.Repayment.String(),
		record.Credit.String(), record.Debt.String(), record.Allocated.String(),
		record.AllocBPS,
	).Scan(&recordID)

	if err != nil {
		return 0, fmt.Errorf("failed to save strategy report: %w", err)
	}

	log.Debug().
		Int64("record_id", recordID).
		Str("strategy", record.Strategy).
		Msg("Strategy report saved to database")

	return recordID, nil
}

// GetRecentReports returns the most recent strategy reports, newest first.
func GetRecentReports(limit int) ([]types.StrategyReportRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT record_id, report_timestamp, strategy, gain, loss, repayment, credit, debt, allocated, alloc_bps
		FROM strategy_reports
		ORDER BY report_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy reports: %w", err)
	}
	defer rows.Close()

	var records []types.StrategyReportRecord
	for rows.Next() {
		var (
			r                                               types.StrategyReportRecord
			ts                                              time.Time
			gain, loss, repayment, credit, debt, allocated string
		)
		if err := rows.Scan(&r.RecordID, &ts, &r.Strategy, &gain, &loss, &repayment, &credit, &debt, &allocated, &r.AllocBPS); err != nil {
			return nil, fmt.Errorf("failed to scan strategy report row: %w", err)
		}
		r.Timestamp = ts
		if r.Gain, err = parseIntColumn("gain", gain); err != nil {
			return nil, err
		}
		if r.Loss, err = parseIntColumn("loss", loss); err != nil {
			return nil, err
		}
		if r.Repayment, err = parseIntColumn("repayment", repayment); err != nil {
			return nil, err
		}
		if r.Credit, err = parseIntColumn("credit", credit); err != nil {
			return nil, err
		}
		if r.Debt, err = parseIntColumn("debt", debt); err != nil {
			return nil, err
		}
		if r.Allocated, err = parseIntColumn("allocated", allocated); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return records, nil
}

// parseIntColumn converts a NUMERIC column back into an sdkmath.Int.
func parseIntColumn(column, value string) (sdkmath.Int, error) {
	parsed, ok := sdkmath.NewIntFromString(value)
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("column %s holds non-integer value %q", column, value)
	}
	return parsed, nil
}
