/*

Keeper drives the vault on a schedule: it harvests every registered
strategy, persists the resulting report records, and stores a full vault
snapshot after each cycle.

The ledger itself is single-threaded; the keeper owns the mutex that
serializes harvest cycles against API reads.

*/

package keeper

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/elys-network/msv/internal/ledger"
	"github.com/elys-network/msv/internal/logger"
	"github.com/elys-network/msv/internal/state"
	"github.com/elys-network/msv/internal/strategy"
	"github.com/elys-network/msv/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig  = errors.New("keeper configuration is invalid")
	ErrAlreadyStarted = errors.New("keeper is already started")
)

// Config holds the dependencies for a new Keeper.
type Config struct {
	Ledger     *ledger.Ledger
	Strategies []strategy.Harvester

	// HarvestCron is the schedule for harvest cycles, in standard 5-field
	// cron syntax.
	HarvestCron string

	// PersistState controls whether cycles write reports and snapshots to
	// the database.
	PersistState bool
}

// Keeper owns the harvest schedule and the persistence of cycle results.
type Keeper struct {
	log        zerolog.Logger
	mu         sync.Mutex
	ledger     *ledger.Ledger
	strategies []strategy.Harvester
	cronSpec   string
	persist    bool
	scheduler  *cron.Cron
}

// NewKeeper creates a keeper with validated configuration.
func NewKeeper(cfg Config) (*Keeper, error) {
	if cfg.Ledger == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("ledger cannot be nil"))
	}
	if cfg.HarvestCron == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("harvest cron spec cannot be empty"))
	}
	for i, s := range cfg.Strategies {
		if s == nil {
			return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("strategy at index %d is nil", i))
		}
	}

	return &Keeper{
		log:        logger.GetForComponent("keeper"),
		ledger:     cfg.Ledger,
		strategies: cfg.Strategies,
		cronSpec:   cfg.HarvestCron,
		persist:    cfg.PersistState,
	}, nil
}

// Start schedules harvest cycles. Returns once the scheduler is running.
func (k *Keeper) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.scheduler != nil {
		return ErrAlreadyStarted
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(k.cronSpec, func() {
		if err := k.RunCycle(); err != nil {
			k.log.Error().Err(err).Msg("Harvest cycle failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid harvest cron spec %q: %w", k.cronSpec, err)
	}

	scheduler.Start()
	k.scheduler = scheduler

	k.log.Info().
		Str("cron", k.cronSpec).
		Int("strategies", len(k.strategies)).
		Msg("Keeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (k *Keeper) Stop() {
	k.mu.Lock()
	scheduler := k.scheduler
	k.scheduler = nil
	k.mu.Unlock()

	if scheduler != nil {
		ctx := scheduler.Stop()
		<-ctx.Done()
		k.log.Info().Msg("Keeper stopped")
	}
}

// RunCycle harvests every strategy once and persists the outcome.
func (k *Keeper) RunCycle() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	cycleID := uuid.New().String()
	cycleLog := k.log.With().Str("cycle_id", cycleID).Logger()
	cycleLog.Info().Msg("Starting harvest cycle")

	var failures []error
	for _, strat := range k.strategies {
		if err := k.harvestOne(cycleLog, strat); err != nil {
			cycleLog.Error().Err(err).Str("strategy", strat.Address()).Msg("Strategy harvest failed")
			failures = append(failures, fmt.Errorf("strategy %s: %w", strat.Address(), err))
		}
	}

	k.persistSnapshot(cycleLog)

	snapshot := k.ledger.Snapshot()
	cycleLog.Info().
		Str("total_assets", snapshot.TotalAssets.String()).
		Str("total_allocated", snapshot.TotalAllocated.String()).
		Str("price_per_full_share", snapshot.PricePerFullShare).
		Int("failures", len(failures)).
		Msg("Harvest cycle complete")

	return errors.Join(failures...)
}

// harvestOne runs a single strategy's harvest and records the observed
// reconciliation deltas.
func (k *Keeper) harvestOne(cycleLog zerolog.Logger, strat strategy.Harvester) error {
	before, err := k.ledger.StrategyParams(strat.Address())
	if err != nil {
		return fmt.Errorf("pre-harvest lookup failed: %w", err)
	}

	if err := strat.Harvest(); err != nil {
		return err
	}

	after, err := k.ledger.StrategyParams(strat.Address())
	if err != nil {
		return fmt.Errorf("post-harvest lookup failed: %w", err)
	}
	available, err := k.ledger.AvailableCapital(strat.Address())
	if err != nil {
		return fmt.Errorf("post-harvest capital lookup failed: %w", err)
	}
	debt := sdkmath.ZeroInt()
	if available.IsNegative() {
		debt = available.Neg()
	}

	record := buildReportRecord(before, after, debt, strat.Address())
	cycleLog.Info().
		Str("strategy", record.Strategy).
		Str("gain", record.Gain.String()).
		Str("loss", record.Loss.String()).
		Str("credit", record.Credit.String()).
		Str("repayment", record.Repayment.String()).
		Str("allocated", record.Allocated.String()).
		Msg("Strategy harvested")

	if k.persist {
		if _, err := state.SaveStrategyReport(record); err != nil {
			cycleLog.Warn().Err(err).Str("strategy", record.Strategy).Msg("Failed to persist strategy report")
		}
	}
	return nil
}

// buildReportRecord derives the reconciliation deltas between two
// bookkeeping snapshots of the same strategy. debt is the allocation excess
// still owed back after the report.
func buildReportRecord(before, after types.StrategyParams, debt sdkmath.Int, addr string) types.StrategyReportRecord {
	gain := after.Gains.Sub(before.Gains)
	loss := after.Losses.Sub(before.Losses)

	credit := sdkmath.ZeroInt()
	repayment := sdkmath.ZeroInt()
	allocDelta := after.Allocated.Sub(before.Allocated)
	if allocDelta.IsPositive() {
		credit = allocDelta
	} else {
		// Allocation shrank by loss absorption plus actual debt repayment.
		returned := allocDelta.Neg().Sub(loss)
		if returned.IsPositive() {
			repayment = returned
		}
	}

	return types.StrategyReportRecord{
		Strategy:  addr,
		Gain:      gain,
		Loss:      loss,
		Repayment: repayment,
		Credit:    credit,
		Debt:      debt,
		Allocated: after.Allocated,
		AllocBPS:  after.AllocBPS,
		Timestamp: after.LastReport,
	}
}

func (k *Keeper) persistSnapshot(cycleLog zerolog.Logger) {
	if !k.persist {
		return
	}
	if _, err := state.SaveVaultSnapshot(k.ledger.Snapshot()); err != nil {
		cycleLog.Warn().Err(err).Msg("Failed to persist vault snapshot")
	}
}

// Snapshot returns the vault state under the keeper's lock, making it safe
// to serve from the API while cycles run.
func (k *Keeper) Snapshot() types.VaultSnapshot {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.ledger.Snapshot()
}
