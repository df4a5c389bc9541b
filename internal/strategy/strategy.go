package strategy

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/msv/internal/bank"
	"github.com/elys-network/msv/internal/logger"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidConfig = errors.New("strategy configuration is invalid")
	ErrNoVault       = errors.New("strategy has no vault to report to")
)

// Capability is the contract every yield strategy exposes to the vault.
// This is the full surface the vault core depends on; how a strategy
// generates yield behind it is its own business.
//
// Test doubles implement this interface directly.
type Capability interface {
	// Address returns the strategy's bank account, used as its stable
	// identity in the vault's registry and withdrawal queue.
	Address() string

	// Want returns the denom the strategy operates on. Must equal the
	// vault's managed asset at registration.
	Want() string

	// Vault returns the address of the vault this strategy serves. Must
	// equal the registering vault's own address at registration.
	Vault() string

	// Withdraw recalls up to amount of capital back to the vault,
	// best-effort. The returned loss is the shortfall between what was
	// requested and what the strategy could actually recover.
	Withdraw(amount sdkmath.Int) (loss sdkmath.Int, err error)

	// BalanceOf returns the strategy's total managed value, idle plus
	// deployed.
	BalanceOf() sdkmath.Int
}

// Reporter is the vault-side entry point a strategy reconciles through.
// Implemented by the vault ledger; declared here so strategies do not depend
// on the ledger package.
type Reporter interface {
	Report(strategy string, roi sdkmath.Int, repayment sdkmath.Int) (debt sdkmath.Int, err error)
}

// Harvester is a strategy the keeper can drive on a schedule.
type Harvester interface {
	Capability
	Harvest() error
}

// IdleStrategy is the reference strategy implementation: it accepts
// allocated capital and simply holds it in its bank account. Zero yield,
// zero loss. Useful as a liquidity buffer and as the baseline in tests.
type IdleStrategy struct {
	log     zerolog.Logger
	bank    *bank.Ledger
	address string
	want    string
	vault   string
	report  Reporter
}

// IdleConfig holds the dependencies for an IdleStrategy.
type IdleConfig struct {
	Bank    *bank.Ledger
	Address string
	Want    string
	Vault   string // Vault's bank address
	Report  Reporter
}

// NewIdleStrategy creates an IdleStrategy with validated configuration.
func NewIdleStrategy(cfg IdleConfig) (*IdleStrategy, error) {
	if cfg.Bank == nil {
		return nil, errors.Join(ErrInvalidConfig, errors.New("bank cannot be nil"))
	}
	if cfg.Address == "" || cfg.Want == "" || cfg.Vault == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("address, want and vault are required"))
	}
	return &IdleStrategy{
		log:     logger.GetForComponent("strategy_idle"),
		bank:    cfg.Bank,
		address: cfg.Address,
		want:    cfg.Want,
		vault:   cfg.Vault,
		report:  cfg.Report,
	}, nil
}

func (s *IdleStrategy) Address() string { return s.address }
func (s *IdleStrategy) Want() string    { return s.want }
func (s *IdleStrategy) Vault() string   { return s.vault }

// BalanceOf returns the strategy's holdings; everything is idle here.
func (s *IdleStrategy) BalanceOf() sdkmath.Int {
	return s.bank.BalanceOf(s.want, s.address)
}

// Withdraw sends up to amount back to the vault. The idle strategy never
// deploys capital, so the only possible loss is a balance shortfall.
func (s *IdleStrategy) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: withdraw amount %s", ErrInvalidConfig, amount)
	}
	sendable := sdkmath.MinInt(amount, s.BalanceOf())
	if sendable.IsPositive() {
		if _, err := s.bank.Transfer(s.want, s.address, s.vault, sendable); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("idle strategy withdraw transfer failed: %w", err)
		}
	}
	loss := amount.Sub(sendable)
	return loss, nil
}

// Harvest reconciles with the vault: zero roi, full idle balance offered as
// repayment. The vault takes only what the strategy actually owes.
func (s *IdleStrategy) Harvest() error {
	if s.report == nil {
		return ErrNoVault
	}
	debt, err := s.report.Report(s.address, sdkmath.ZeroInt(), s.BalanceOf())
	if err != nil {
		return fmt.Errorf("idle strategy report failed: %w", err)
	}
	s.log.Debug().
		Str("strategy", s.address).
		Str("remaining_debt", debt.String()).
		Msg("Harvest reconciled with vault")
	return nil
}
